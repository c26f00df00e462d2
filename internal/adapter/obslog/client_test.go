package obslog

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

func TestClient_FetchByTraceID_TransposesColumns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/query", r.URL.Path)
		assert.Equal(t, "Bearer read-token", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("sql"), "abc123")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"columns": []map[string]any{
				{"name": "message", "values": []any{"stage started", "stage finished"}},
				{"name": "level", "values": []any{"info", "info"}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "read-token")

	logs, err := client.FetchByTraceID(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, "abc123", logs.TraceID)
	assert.Equal(t, 2, logs.RecordCount)
	require.Len(t, logs.Logs, 2)
	assert.Equal(t, "stage started", logs.Logs[0]["message"])
	assert.Equal(t, "info", logs.Logs[1]["level"])
}

func TestClient_FetchByTraceID_MissingToken(t *testing.T) {
	client := NewClient("http://localhost:1", "")

	_, err := client.FetchByTraceID(context.Background(), "abc123")
	require.Error(t, err)

	var confErr *domain.ConfigurationError
	require.True(t, errors.As(err, &confErr))
	assert.Equal(t, "LOGS_READ_TOKEN", confErr.Setting)
}

func TestClient_FetchByTraceID_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-token")

	_, err := client.FetchByTraceID(context.Background(), "abc123")
	require.Error(t, err)

	var provErr *domain.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "obslog", provErr.Provider)
}
