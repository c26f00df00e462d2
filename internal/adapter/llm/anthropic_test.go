package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"qa-orchestrator/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicChat_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-sonnet-4-20250514", req.Model)
		assert.Equal(t, 2000, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "Render deploys on every push."},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 120, "output_tokens": 30},
		})
	}))
	defer server.Close()

	client := NewAnthropicChat("test-key", "claude-sonnet-4-20250514", 100, 10)
	client.BaseURL = server.URL

	result, err := client.Complete(context.Background(), domain.ChatRequest{
		Prompt:      "how do deploys work",
		MaxTokens:   2000,
		Temperature: 0.3,
	})
	require.NoError(t, err)

	assert.Equal(t, "Render deploys on every push.", result.Text)
	assert.Equal(t, 120, result.InputTokens)
	assert.Equal(t, 30, result.OutputTokens)
	assert.False(t, result.Truncated)
}

func TestAnthropicChat_Complete_JoinsTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "Part one. "},
				{"type": "text", "text": "Part two."},
			},
			"stop_reason": "max_tokens",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 10},
		})
	}))
	defer server.Close()

	client := NewAnthropicChat("test-key", "claude-sonnet-4-20250514", 100, 10)
	client.BaseURL = server.URL

	result, err := client.Complete(context.Background(), domain.ChatRequest{Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "Part one. Part two.", result.Text)
	assert.True(t, result.Truncated)
}

func TestAnthropicChat_Complete_ServerErrorIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewAnthropicChat("test-key", "claude-sonnet-4-20250514", 100, 10)
	client.BaseURL = server.URL

	_, err := client.Complete(context.Background(), domain.ChatRequest{Prompt: "q"})
	require.Error(t, err)

	var provErr *domain.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "anthropic", provErr.Provider)
}
