package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-orchestrator/internal/domain"
)

func TestShouldExpand(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     bool
	}{
		{"broad database question", "What database options does Render offer?", true},
		{"broad pricing question", "What plans are available?", true},
		{"specific how-to", "How do I configure a database connection string?", false},
		{"troubleshooting", "error connecting to my database plan", false},
		{"no broad term", "Does Render support Docker?", false},
		{
			"long detailed question",
			"What is the exact retention period for point in time recovery backups on the professional workspace database plan offering?",
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldExpand(tt.question))
		})
	}
}

func expanderWithResponse(text string) *QueryExpander {
	return NewQueryExpander(&stubChatModel{
		name: "stub",
		complete: func(domain.ChatRequest) (*domain.ChatResult, error) {
			return &domain.ChatResult{Text: text, InputTokens: 200, OutputTokens: 80}, nil
		},
	}, testLogger())
}

func TestQueryExpander_OriginalAlwaysFirst(t *testing.T) {
	x := expanderWithResponse(`["rephrased original", "variation one", "variation two"]`)

	out, err := x.Expand(context.Background(), "What database plans exist?")
	require.NoError(t, err)

	require.Len(t, out.Variations, 3)
	assert.Equal(t, "What database plans exist?", out.Variations[0])
	// At most two generated variations are kept.
	assert.Equal(t, "rephrased original", out.Variations[1])
	assert.Equal(t, "variation one", out.Variations[2])
}

func TestQueryExpander_StripsCodeFences(t *testing.T) {
	x := expanderWithResponse("```json\n[\"a variation\"]\n```")

	out, err := x.Expand(context.Background(), "question")
	require.NoError(t, err)
	require.Len(t, out.Variations, 2)
	assert.Equal(t, "a variation", out.Variations[1])
}

func TestQueryExpander_ParseFailureFallsBackWithCost(t *testing.T) {
	x := expanderWithResponse("not json at all")

	out, err := x.Expand(context.Background(), "the question")
	require.NoError(t, err)

	assert.Equal(t, []string{"the question"}, out.Variations)
	// The model call happened, so its cost is still charged.
	assert.InDelta(t, domain.AuxModelCost(200, 80), out.CostUSD, 1e-12)
}

func TestQueryExpander_ProviderErrorPropagates(t *testing.T) {
	x := NewQueryExpander(&stubChatModel{
		name: "stub",
		complete: func(domain.ChatRequest) (*domain.ChatResult, error) {
			return nil, &domain.ProviderError{Provider: "openai"}
		},
	}, testLogger())

	_, err := x.Expand(context.Background(), "question")
	require.Error(t, err)
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `["a"]`, stripCodeFences("```json\n[\"a\"]\n```"))
	assert.Equal(t, `["a"]`, stripCodeFences("```\n[\"a\"]\n```"))
	assert.Equal(t, `["a"]`, stripCodeFences(`["a"]`))
}
