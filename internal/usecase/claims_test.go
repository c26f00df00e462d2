package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-orchestrator/internal/domain"
)

func TestParseClaims(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{
			name:  "object with claims array",
			input: `{"claims": ["claim one", "claim two"]}`,
			want:  []string{"claim one", "claim two"},
		},
		{
			name:  "claims key with stray whitespace",
			input: "{\"\\nclaims\": [\"claim one\"]}",
			want:  []string{"claim one"},
		},
		{
			name:  "bare array",
			input: `["claim one", "claim two"]`,
			want:  []string{"claim one", "claim two"},
		},
		{
			name:  "first list-valued field fallback",
			input: `{"facts": ["claim one"]}`,
			want:  []string{"claim one"},
		},
		{
			name:  "fenced json",
			input: "```json\n{\"claims\": [\"claim one\"]}\n```",
			want:  []string{"claim one"},
		},
		{
			name:    "object with no list field",
			input:   `{"note": "nothing here"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			input:   "plain text",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClaims(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				var parseErr *domain.ParseError
				assert.ErrorAs(t, err, &parseErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClaimsExtractor_Extract(t *testing.T) {
	var captured domain.ChatRequest
	extractor := NewClaimsExtractor(&stubChatModel{
		name: "gpt-4o-mini",
		complete: func(req domain.ChatRequest) (*domain.ChatResult, error) {
			captured = req
			return &domain.ChatResult{
				Text:         `{"claims": ["Render supports Node.js 20"]}`,
				InputTokens:  300,
				OutputTokens: 40,
			}, nil
		},
	}, testLogger())

	out, err := extractor.Extract(context.Background(), "Some generated answer about Node.js support.")
	require.NoError(t, err)

	assert.Equal(t, []string{"Render supports Node.js 20"}, out.Claims)
	assert.InDelta(t, domain.AuxModelCost(300, 40), out.CostUSD, 1e-12)
	assert.True(t, captured.JSONMode)
	assert.Equal(t, 4000, captured.MaxTokens)
	assert.Equal(t, 0.1, captured.Temperature)
}

func TestClaimsExtractor_UnparseableResponseYieldsZeroClaims(t *testing.T) {
	extractor := NewClaimsExtractor(&stubChatModel{
		name: "gpt-4o-mini",
		complete: func(domain.ChatRequest) (*domain.ChatResult, error) {
			return &domain.ChatResult{Text: "garbage", InputTokens: 10, OutputTokens: 5}, nil
		},
	}, testLogger())

	out, err := extractor.Extract(context.Background(), "answer")
	require.NoError(t, err)
	assert.Empty(t, out.Claims)
	assert.Greater(t, out.CostUSD, 0.0)
}
