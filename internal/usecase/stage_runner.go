package usecase

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"qa-orchestrator/internal/domain"
	"qa-orchestrator/internal/infra/logger"
)

// StageOutcome is what a stage function reports back on success.
type StageOutcome struct {
	CostUSD  float64
	Tokens   int
	Metadata map[string]any
}

// StageRunner wraps each pipeline stage in a trace span, times it, and
// appends the result to the run. Failed stages are recorded before the
// error propagates.
type StageRunner struct {
	tracer trace.Tracer
	logger *slog.Logger
}

func NewStageRunner(tracer trace.Tracer, logger *slog.Logger) *StageRunner {
	return &StageRunner{tracer: tracer, logger: logger}
}

func (r *StageRunner) Run(ctx context.Context, run *domain.PipelineRun, stage string, fn func(ctx context.Context) (StageOutcome, error)) error {
	ctx, span := r.tracer.Start(ctx, stage, trace.WithAttributes(
		attribute.String("span_type", "pipeline_stage"),
	))
	defer span.End()

	ctx = logger.WithStage(ctx, stage)
	start := time.Now()
	outcome, err := fn(ctx)
	durationMs := float64(time.Since(start).Microseconds()) / 1000

	span.SetAttributes(
		attribute.Float64("duration_ms", durationMs),
		attribute.Float64("cost_usd", outcome.CostUSD),
		attribute.Int("tokens_used", outcome.Tokens),
		attribute.Bool("success", err == nil),
	)

	result := domain.StageResult{
		Stage:      stage,
		Success:    err == nil,
		DurationMs: durationMs,
		CostUSD:    outcome.CostUSD,
		TokensUsed: outcome.Tokens,
		Metadata:   outcome.Metadata,
	}
	if err != nil {
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.ErrorContext(ctx, "pipeline stage failed",
			"stage", stage,
			"duration_ms", durationMs,
			"error", err.Error())
	} else {
		r.logger.InfoContext(ctx, "pipeline stage completed",
			"stage", stage,
			"duration_ms", durationMs,
			"cost_usd", outcome.CostUSD)
	}

	run.AppendStage(result)
	return err
}
