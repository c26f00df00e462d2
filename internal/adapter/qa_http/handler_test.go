package qa_http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-orchestrator/internal/adapter/obslog"
	"qa-orchestrator/internal/domain"
	"qa-orchestrator/internal/usecase"
)

type stubPipeline struct {
	run    *domain.PipelineRun
	err    error
	events []usecase.StreamEvent
}

func (s *stubPipeline) Execute(context.Context, string) (*domain.PipelineRun, error) {
	return s.run, s.err
}

func (s *stubPipeline) Stream(context.Context, string) <-chan usecase.StreamEvent {
	events := make(chan usecase.StreamEvent, len(s.events))
	for _, event := range s.events {
		events <- event
	}
	close(events)
	return events
}

type stubDocuments struct {
	domain.DocumentStore
	count int
	err   error
}

func (s *stubDocuments) Count(context.Context) (int, error) { return s.count, s.err }

type stubSessions struct {
	sessions map[string]*domain.Session
	stats    *domain.SessionStats
	deleted  int
}

func (s *stubSessions) Save(context.Context, *domain.PipelineRun) (string, error) {
	return "saved", nil
}

func (s *stubSessions) Get(_ context.Context, id string) (*domain.Session, error) {
	return s.sessions[id], nil
}

func (s *stubSessions) List(_ context.Context, limit int) ([]domain.Session, error) {
	var out []domain.Session
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubSessions) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func (s *stubSessions) DeleteAll(context.Context) (int, error) { return s.deleted, nil }

func (s *stubSessions) Stats(context.Context) (*domain.SessionStats, error) {
	return s.stats, nil
}

type stubLogFetcher struct {
	logs *obslog.TraceLogs
	err  error
}

func (s *stubLogFetcher) FetchByTraceID(context.Context, string) (*obslog.TraceLogs, error) {
	return s.logs, s.err
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(context.Context) error { return s.err }

func newTestHandler(pipeline QAPipeline, sessions domain.SessionStore, logs TraceLogFetcher) *Handler {
	if sessions == nil {
		sessions = &stubSessions{sessions: map[string]*domain.Session{}}
	}
	if logs == nil {
		logs = &stubLogFetcher{}
	}
	return NewHandler(
		pipeline,
		&stubDocuments{count: 42},
		sessions,
		logs,
		&stubPinger{},
		StatsConfig{
			EmbeddingModel:      "text-embedding-3-small",
			EmbeddingDimensions: 1536,
			TopK:                20,
			QualityThreshold:    85,
			MaxIterations:       1,
		},
		slog.New(slog.NewJSONHandler(io.Discard, nil)),
	)
}

func doRequest(t *testing.T, h *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.Register(e)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Ask(t *testing.T) {
	run := domain.NewPipelineRun("What plans does Render offer?")
	run.Answer = "the answer"
	run.QualityScore = 92
	h := newTestHandler(&stubPipeline{run: run}, nil, nil)

	rec := doRequest(t, h, http.MethodPost, "/ask", `{"question": "What plans does Render offer?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.PipelineRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "the answer", got.Answer)
	assert.Equal(t, 92.0, got.QualityScore)
	assert.Equal(t, "saved", got.SessionID)
}

func TestHandler_Ask_QuestionTooShort(t *testing.T) {
	h := newTestHandler(&stubPipeline{}, nil, nil)

	rec := doRequest(t, h, http.MethodPost, "/ask", `{"question": "short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least 10 characters")
}

func TestHandler_Ask_QuestionTooLong(t *testing.T) {
	h := newTestHandler(&stubPipeline{}, nil, nil)
	question := strings.Repeat("a", 501)

	rec := doRequest(t, h, http.MethodPost, "/ask", `{"question": "`+question+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at most 500 characters")
}

func TestHandler_Ask_PipelineError(t *testing.T) {
	h := newTestHandler(&stubPipeline{err: &domain.ProviderError{Provider: "openai"}}, nil, nil)

	rec := doRequest(t, h, http.MethodPost, "/ask", `{"question": "What plans does Render offer?"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_AskStream(t *testing.T) {
	run := domain.NewPipelineRun("What plans does Render offer?")
	run.Answer = "streamed answer"
	h := newTestHandler(&stubPipeline{events: []usecase.StreamEvent{
		{Kind: usecase.StreamEventKindProgress, Progress: &usecase.ProgressEvent{
			Stage: "question_embedding", Status: "started", Message: "Embedding your question...", Progress: 5,
		}},
		{Kind: usecase.StreamEventKindComplete, Result: run},
	}}, nil, nil)

	rec := doRequest(t, h, http.MethodPost, "/ask/stream", `{"question": "What plans does Render offer?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

	body := rec.Body.String()
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	require.Len(t, frames, 2)
	assert.Contains(t, frames[0], `"stage":"question_embedding"`)
	assert.Contains(t, frames[1], `"type":"complete"`)
	assert.Contains(t, frames[1], "streamed answer")
}

func TestHandler_AskStream_ErrorEvent(t *testing.T) {
	h := newTestHandler(&stubPipeline{events: []usecase.StreamEvent{
		{Kind: usecase.StreamEventKindError, Err: "provider openai: boom"},
	}}, nil, nil)

	rec := doRequest(t, h, http.MethodPost, "/ask/stream", `{"question": "What plans does Render offer?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"error"`)
}

func TestHandler_Health(t *testing.T) {
	h := newTestHandler(&stubPipeline{}, nil, nil)

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestHandler_Health_Degraded(t *testing.T) {
	h := newTestHandler(&stubPipeline{}, nil, nil)
	h.db = &stubPinger{err: assert.AnError}

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rec.Body.String(), `"database_connected":false`)
}

func TestHandler_Stats(t *testing.T) {
	sessions := &stubSessions{
		sessions: map[string]*domain.Session{},
		stats:    &domain.SessionStats{TotalSessions: 7, AvgQuality: 90.5},
	}
	h := newTestHandler(&stubPipeline{}, sessions, nil)

	rec := doRequest(t, h, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, float64(42), got["document_count"])
	assert.Equal(t, "text-embedding-3-small", got["embedding_model"])
	assert.Equal(t, float64(20), got["rag_top_k"])
	require.Contains(t, got, "sessions")
}

func TestHandler_History_LimitTooLarge(t *testing.T) {
	h := newTestHandler(&stubPipeline{}, nil, nil)

	rec := doRequest(t, h, http.MethodGet, "/history?limit=101", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Limit cannot exceed 100")
}

func TestHandler_History(t *testing.T) {
	sessions := &stubSessions{sessions: map[string]*domain.Session{
		"a": {ID: "a", Question: "q1"},
	}}
	h := newTestHandler(&stubPipeline{}, sessions, nil)

	rec := doRequest(t, h, http.MethodGet, "/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestHandler_GetSession_NotFound(t *testing.T) {
	h := newTestHandler(&stubPipeline{}, nil, nil)

	rec := doRequest(t, h, http.MethodGet, "/history/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_DeleteSession(t *testing.T) {
	sessions := &stubSessions{sessions: map[string]*domain.Session{
		"a": {ID: "a"},
	}}
	h := newTestHandler(&stubPipeline{}, sessions, nil)

	rec := doRequest(t, h, http.MethodDelete, "/history/a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	rec = doRequest(t, h, http.MethodDelete, "/history/a", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ClearHistory(t *testing.T) {
	sessions := &stubSessions{sessions: map[string]*domain.Session{}, deleted: 3}
	h := newTestHandler(&stubPipeline{}, sessions, nil)

	rec := doRequest(t, h, http.MethodDelete, "/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":3`)
}

func TestHandler_SessionLogs(t *testing.T) {
	sessions := &stubSessions{sessions: map[string]*domain.Session{
		"a": {ID: "a", TraceID: "abc123"},
		"b": {ID: "b"},
	}}

	t.Run("returns logs", func(t *testing.T) {
		logs := &stubLogFetcher{logs: &obslog.TraceLogs{TraceID: "abc123", RecordCount: 2}}
		h := newTestHandler(&stubPipeline{}, sessions, logs)

		rec := doRequest(t, h, http.MethodGet, "/sessions/a/logs", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"record_count":2`)
	})

	t.Run("session missing", func(t *testing.T) {
		h := newTestHandler(&stubPipeline{}, sessions, nil)
		rec := doRequest(t, h, http.MethodGet, "/sessions/missing/logs", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("no trace id", func(t *testing.T) {
		h := newTestHandler(&stubPipeline{}, sessions, nil)
		rec := doRequest(t, h, http.MethodGet, "/sessions/b/logs", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Trace ID not available")
	})

	t.Run("missing read token", func(t *testing.T) {
		logs := &stubLogFetcher{err: &domain.ConfigurationError{Setting: "LOGS_READ_TOKEN"}}
		h := newTestHandler(&stubPipeline{}, sessions, logs)

		rec := doRequest(t, h, http.MethodGet, "/sessions/a/logs", "")
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})
}
