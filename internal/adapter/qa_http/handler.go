package qa_http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"qa-orchestrator/internal/adapter/obslog"
	"qa-orchestrator/internal/domain"
	"qa-orchestrator/internal/usecase"
)

const (
	minQuestionLength = 10
	maxQuestionLength = 500
	maxHistoryLimit   = 100
)

// QAPipeline is the pipeline surface the handler depends on.
type QAPipeline interface {
	Execute(ctx context.Context, question string) (*domain.PipelineRun, error)
	Stream(ctx context.Context, question string) <-chan usecase.StreamEvent
}

// TraceLogFetcher retrieves exported log records for a trace.
type TraceLogFetcher interface {
	FetchByTraceID(ctx context.Context, traceID string) (*obslog.TraceLogs, error)
}

// Pinger reports database liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsConfig is the configuration slice exposed by the stats endpoint.
type StatsConfig struct {
	EmbeddingModel      string
	EmbeddingDimensions int
	TopK                int
	QualityThreshold    float64
	MaxIterations       int
}

type Handler struct {
	pipeline  QAPipeline
	documents domain.DocumentStore
	sessions  domain.SessionStore
	logs      TraceLogFetcher
	db        Pinger
	stats     StatsConfig
	logger    *slog.Logger
}

func NewHandler(
	pipeline QAPipeline,
	documents domain.DocumentStore,
	sessions domain.SessionStore,
	logs TraceLogFetcher,
	db Pinger,
	stats StatsConfig,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		pipeline:  pipeline,
		documents: documents,
		sessions:  sessions,
		logs:      logs,
		db:        db,
		stats:     stats,
		logger:    logger,
	}
}

// Register mounts every route on the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.Health)
	e.GET("/stats", h.Stats)
	e.POST("/ask", h.Ask)
	e.POST("/ask/stream", h.AskStream)
	e.GET("/history", h.History)
	e.GET("/history/:id", h.GetSession)
	e.DELETE("/history/:id", h.DeleteSession)
	e.DELETE("/history", h.ClearHistory)
	e.GET("/sessions/:id/logs", h.SessionLogs)
}

type askRequest struct {
	Question string `json:"question"`
}

func validateQuestion(question string) error {
	if len(question) < minQuestionLength {
		return &domain.ValidationError{Field: "question", Reason: fmt.Sprintf("must be at least %d characters", minQuestionLength)}
	}
	if len(question) > maxQuestionLength {
		return &domain.ValidationError{Field: "question", Reason: fmt.Sprintf("must be at most %d characters", maxQuestionLength)}
	}
	return nil
}

func (h *Handler) Root(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{
		"name":    "Render Q&A Assistant",
		"version": "1.0.0",
		"status":  "operational",
	})
}

func (h *Handler) Health(ctx echo.Context) error {
	status := "healthy"
	dbConnected := true
	if err := h.db.Ping(ctx.Request().Context()); err != nil {
		h.logger.Warn("health check database ping failed", "error", err.Error())
		status = "degraded"
		dbConnected = false
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":             status,
		"database_connected": dbConnected,
	})
}

func (h *Handler) Stats(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	docCount, err := h.documents.Count(reqCtx)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	response := map[string]any{
		"document_count":       docCount,
		"embedding_model":      h.stats.EmbeddingModel,
		"embedding_dimensions": h.stats.EmbeddingDimensions,
		"rag_top_k":            h.stats.TopK,
		"quality_threshold":    h.stats.QualityThreshold,
		"max_iterations":       h.stats.MaxIterations,
	}

	if sessionStats, err := h.sessions.Stats(reqCtx); err != nil {
		h.logger.Warn("failed to load session stats", "error", err.Error())
	} else {
		response["sessions"] = sessionStats
	}

	return ctx.JSON(http.StatusOK, response)
}

// Ask runs the pipeline to completion and returns the full result.
func (h *Handler) Ask(ctx echo.Context) error {
	var req askRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := validateQuestion(req.Question); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	h.logger.Info("received question", "question_length", len(req.Question))

	run, err := h.pipeline.Execute(ctx.Request().Context(), req.Question)
	if err != nil {
		h.logger.Error("pipeline failed", "error", err.Error())
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": fmt.Sprintf("Error processing question: %v", err),
		})
	}

	// The streaming path persists inside the pipeline; the blocking path
	// persists here. A failed save never fails the request.
	if sessionID, err := h.sessions.Save(ctx.Request().Context(), run); err != nil {
		h.logger.Warn("failed to save session", "error", err.Error())
	} else {
		run.SessionID = sessionID
	}
	return ctx.JSON(http.StatusOK, run)
}

// AskStream runs the pipeline and streams progress as Server-Sent Events,
// ending with a complete or error payload.
func (h *Handler) AskStream(ctx echo.Context) error {
	var req askRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := validateQuestion(req.Question); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	h.logger.Info("received streaming question", "question_length", len(req.Question))

	w := ctx.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for event := range h.pipeline.Stream(ctx.Request().Context(), req.Question) {
		var payload any
		switch event.Kind {
		case usecase.StreamEventKindProgress:
			payload = event.Progress
		case usecase.StreamEventKindComplete:
			payload = map[string]any{"type": "complete", "result": event.Result}
		case usecase.StreamEventKindError:
			payload = map[string]any{"type": "error", "message": event.Err}
		}

		data, err := json.Marshal(payload)
		if err != nil {
			h.logger.Error("failed to marshal stream event", "error", err.Error())
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return nil
		}
		w.Flush()
	}
	return nil
}

func (h *Handler) History(ctx echo.Context) error {
	limit := 20
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Limit cannot exceed 100"})
	}

	sessions, err := h.sessions.List(ctx.Request().Context(), limit)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (h *Handler) GetSession(ctx echo.Context) error {
	session, err := h.sessions.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if session == nil {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
	}
	return ctx.JSON(http.StatusOK, session)
}

func (h *Handler) DeleteSession(ctx echo.Context) error {
	id := ctx.Param("id")
	deleted, err := h.sessions.Delete(ctx.Request().Context(), id)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if !deleted {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Session deleted successfully",
		"session_id": id,
	})
}

func (h *Handler) ClearHistory(ctx echo.Context) error {
	count, err := h.sessions.DeleteAll(ctx.Request().Context())
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Deleted %d sessions", count),
		"count":   count,
	})
}

// SessionLogs returns the exported observability records for a session's
// trace.
func (h *Handler) SessionLogs(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	session, err := h.sessions.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if session == nil {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
	}
	if session.TraceID == "" {
		return ctx.JSON(http.StatusNotFound, map[string]string{
			"error": "Trace ID not available for this session",
		})
	}

	logs, err := h.logs.FetchByTraceID(reqCtx, session.TraceID)
	if err != nil {
		var confErr *domain.ConfigurationError
		if errors.As(err, &confErr) {
			return ctx.JSON(http.StatusNotImplemented, map[string]string{"error": confErr.Error()})
		}
		h.logger.Error("failed to fetch trace logs", "error", err.Error())
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": fmt.Sprintf("Failed to fetch logs: %v", err),
		})
	}
	return ctx.JSON(http.StatusOK, logs)
}
