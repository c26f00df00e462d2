package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"qa-orchestrator/internal/domain"
)

// StreamEventKind discriminates the events emitted by Stream.
type StreamEventKind string

const (
	StreamEventKindProgress StreamEventKind = "progress"
	StreamEventKindComplete StreamEventKind = "complete"
	StreamEventKindError    StreamEventKind = "error"
)

// StreamEvent is one SSE payload: a progress update, the final result, or
// a terminal error.
type StreamEvent struct {
	Kind     StreamEventKind
	Progress *ProgressEvent
	Result   *domain.PipelineRun
	Err      string
}

// ProgressEvent reports one stage transition to a streaming client.
type ProgressEvent struct {
	Stage     string  `json:"stage"`
	Status    string  `json:"status"`
	Message   string  `json:"message"`
	Progress  float64 `json:"progress"`
	CostSoFar float64 `json:"cost_so_far"`
}

// PipelineOptions are the refinement loop's thresholds.
type PipelineOptions struct {
	MaxIterations      int
	QualityThreshold   float64
	AccuracyThreshold  int
	AgreementThreshold int
	GateOnAccuracy     bool
}

// Pipeline orchestrates the eight quality-controlled stages that turn a
// question into a verified answer.
type Pipeline struct {
	embedder  *CachedEmbedder
	retriever *Retriever
	generator *Generator
	extractor *ClaimsExtractor
	verifier  *Verifier
	accuracy  *AccuracyChecker
	evaluator *DualEvaluator
	sessions  domain.SessionStore
	runner    *StageRunner
	tracer    trace.Tracer
	opts      PipelineOptions
	logger    *slog.Logger
}

func NewPipeline(
	embedder *CachedEmbedder,
	retriever *Retriever,
	generator *Generator,
	extractor *ClaimsExtractor,
	verifier *Verifier,
	accuracy *AccuracyChecker,
	evaluator *DualEvaluator,
	sessions domain.SessionStore,
	runner *StageRunner,
	tracer trace.Tracer,
	opts PipelineOptions,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		extractor: extractor,
		verifier:  verifier,
		accuracy:  accuracy,
		evaluator: evaluator,
		sessions:  sessions,
		runner:    runner,
		tracer:    tracer,
		opts:      opts,
		logger:    logger,
	}
}

// Execute runs the full pipeline and blocks until the answer is accepted
// or a stage fails.
func (p *Pipeline) Execute(ctx context.Context, question string) (*domain.PipelineRun, error) {
	return p.run(ctx, question, func(ProgressEvent) bool { return true })
}

// Stream runs the pipeline in a goroutine and emits progress events as
// stages start and finish, ending with a complete or error event. The
// accepted run is persisted before the complete event is sent; a failed
// save is logged but does not fail the stream.
func (p *Pipeline) Stream(ctx context.Context, question string) <-chan StreamEvent {
	events := make(chan StreamEvent, 4)
	go func() {
		defer close(events)

		run, err := p.run(ctx, question, func(event ProgressEvent) bool {
			return p.sendEvent(ctx, events, StreamEvent{
				Kind:     StreamEventKindProgress,
				Progress: &event,
			})
		})
		if err != nil {
			p.logger.ErrorContext(ctx, "pipeline failed", "error", err.Error())
			p.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindError, Err: err.Error()})
			return
		}

		if sessionID, saveErr := p.sessions.Save(ctx, run); saveErr != nil {
			p.logger.ErrorContext(ctx, "failed to save session", "error", saveErr.Error())
		} else {
			run.SessionID = sessionID
			p.logger.InfoContext(ctx, "session saved",
				"session_id", sessionID, "trace_id", run.TraceID)
		}

		p.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindComplete, Result: run})
	}()
	return events
}

func (p *Pipeline) sendEvent(ctx context.Context, events chan<- StreamEvent, event StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- event:
		return true
	}
}

// run executes the stages in order, reporting progress through emit.
// Progress climbs to 25 through embedding and retrieval, the refinement
// loop shares the range up to 85, and acceptance lands on 95.
func (p *Pipeline) run(ctx context.Context, question string, emit func(ProgressEvent) bool) (*domain.PipelineRun, error) {
	ctx, span := p.tracer.Start(ctx, "qa_pipeline", trace.WithAttributes(
		attribute.String("question_preview", preview(question, 100)),
		attribute.Int("question_length", len(question)),
	))
	defer span.End()

	run := domain.NewPipelineRun(question)
	if sc := span.SpanContext(); sc.IsValid() {
		run.TraceID = sc.TraceID().String()
	}
	start := time.Now()

	emit(ProgressEvent{Stage: domain.StageEmbedding, Status: "started", Message: "Embedding your question...", Progress: 5})

	var embedding []float32
	err := p.runner.Run(ctx, run, domain.StageEmbedding, func(ctx context.Context) (StageOutcome, error) {
		out, err := p.embedder.Embed(ctx, question)
		if err != nil {
			return StageOutcome{}, err
		}
		embedding = out.Vector
		return StageOutcome{
			CostUSD:  out.CostUSD,
			Tokens:   out.Tokens,
			Metadata: map[string]any{"embedding_dimensions": len(out.Vector)},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	emit(ProgressEvent{Stage: domain.StageEmbedding, Status: "completed", Message: "Question embedded", Progress: 12.5, CostSoFar: run.TotalCost})

	emit(ProgressEvent{Stage: domain.StageRetrieval, Status: "started", Message: "Searching documentation...", Progress: 15, CostSoFar: run.TotalCost})

	var documents []domain.Document
	err = p.runner.Run(ctx, run, domain.StageRetrieval, func(ctx context.Context) (StageOutcome, error) {
		out, err := p.retriever.Retrieve(ctx, embedding, question)
		if err != nil {
			return StageOutcome{}, err
		}
		documents = out.Documents
		return StageOutcome{
			CostUSD: out.CostUSD,
			Metadata: map[string]any{
				"documents_retrieved": len(out.Documents),
				"queries_expanded":    out.QueryCount,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	emit(ProgressEvent{Stage: domain.StageRetrieval, Status: "completed", Message: fmt.Sprintf("Found %d relevant documents", len(documents)), Progress: 25, CostSoFar: run.TotalCost})

	run.Sources = documents
	feedback := ""

	for iteration := 1; iteration <= p.opts.MaxIterations; iteration++ {
		run.Iterations = iteration
		iterStart := 25 + float64(iteration-1)*60/float64(p.opts.MaxIterations)
		iterSpan := 60 / float64(p.opts.MaxIterations)
		at := func(fraction float64) float64 {
			progress := iterStart + fraction*iterSpan
			if progress > 95 {
				return 95
			}
			return progress
		}

		// Stage 3: answer generation
		emit(ProgressEvent{Stage: domain.IterStage("generation", iteration), Status: "started",
			Message: fmt.Sprintf("Generating answer (iteration %d)...", iteration), Progress: at(0.05), CostSoFar: run.TotalCost})
		err = p.runner.Run(ctx, run, domain.IterStage(domain.StageGeneration, iteration), func(ctx context.Context) (StageOutcome, error) {
			out, err := p.generator.Generate(ctx, question, documents, feedback)
			if err != nil {
				return StageOutcome{}, err
			}
			run.Answer = out.Answer
			return StageOutcome{
				CostUSD: out.CostUSD,
				Tokens:  out.InputTokens + out.OutputTokens,
				Metadata: map[string]any{
					"answer_length": len(out.Answer),
					"iteration":     iteration,
				},
			}, nil
		})
		if err != nil {
			return nil, err
		}
		emit(ProgressEvent{Stage: domain.IterStage("generation", iteration), Status: "completed",
			Message: "Answer generated", Progress: at(0.20), CostSoFar: run.TotalCost})

		// Stage 4: claims extraction
		emit(ProgressEvent{Stage: domain.IterStage("claims", iteration), Status: "started",
			Message: "Extracting factual claims...", Progress: at(0.30), CostSoFar: run.TotalCost})
		var claimTexts []string
		err = p.runner.Run(ctx, run, domain.IterStage(domain.StageClaims, iteration), func(ctx context.Context) (StageOutcome, error) {
			out, err := p.extractor.Extract(ctx, run.Answer)
			if err != nil {
				return StageOutcome{}, err
			}
			claimTexts = out.Claims
			return StageOutcome{
				CostUSD: out.CostUSD,
				Tokens:  out.InputTokens + out.OutputTokens,
				Metadata: map[string]any{
					"claims_extracted": len(out.Claims),
					"iteration":        iteration,
				},
			}, nil
		})
		if err != nil {
			return nil, err
		}
		emit(ProgressEvent{Stage: domain.IterStage("claims", iteration), Status: "completed",
			Message: fmt.Sprintf("Extracted %d claims", len(claimTexts)), Progress: at(0.40), CostSoFar: run.TotalCost})

		// Stage 5: claims verification
		emit(ProgressEvent{Stage: domain.IterStage("verification", iteration), Status: "started",
			Message: "Verifying claims...", Progress: at(0.50), CostSoFar: run.TotalCost})
		var verificationRate float64
		err = p.runner.Run(ctx, run, domain.IterStage(domain.StageVerification, iteration), func(ctx context.Context) (StageOutcome, error) {
			out, err := p.verifier.Verify(ctx, claimTexts)
			if err != nil {
				return StageOutcome{}, err
			}
			run.Claims = out.Claims
			verificationRate = out.VerificationRate
			verified := 0
			for _, c := range out.Claims {
				if c.Verified {
					verified++
				}
			}
			return StageOutcome{
				CostUSD: out.CostUSD,
				Metadata: map[string]any{
					"claims_verified":   verified,
					"total_claims":      len(out.Claims),
					"verification_rate": fmt.Sprintf("%.0f%%", out.VerificationRate*100),
					"iteration":         iteration,
				},
			}, nil
		})
		if err != nil {
			return nil, err
		}
		emit(ProgressEvent{Stage: domain.IterStage("verification", iteration), Status: "completed",
			Message: fmt.Sprintf("%.0f%% claims verified", verificationRate*100), Progress: at(0.60), CostSoFar: run.TotalCost})

		// Stage 6: technical accuracy
		emit(ProgressEvent{Stage: domain.IterStage("accuracy", iteration), Status: "started",
			Message: "Checking technical accuracy...", Progress: at(0.70), CostSoFar: run.TotalCost})
		var accuracyOut *AccuracyOutput
		err = p.runner.Run(ctx, run, domain.IterStage(domain.StageAccuracy, iteration), func(ctx context.Context) (StageOutcome, error) {
			out, err := p.accuracy.Check(ctx, run.Answer, run.Claims)
			if err != nil {
				return StageOutcome{}, err
			}
			accuracyOut = out
			run.AccuracyScore = out.Score
			return StageOutcome{
				CostUSD: out.CostUSD,
				Tokens:  out.InputTokens + out.OutputTokens,
				Metadata: map[string]any{
					"accuracy_score": out.Score,
					"iteration":      iteration,
				},
			}, nil
		})
		if err != nil {
			return nil, err
		}
		emit(ProgressEvent{Stage: domain.IterStage("accuracy", iteration), Status: "completed",
			Message: fmt.Sprintf("Accuracy score: %d/100", run.AccuracyScore), Progress: at(0.80), CostSoFar: run.TotalCost})

		// Stage 7: dual-model evaluation
		emit(ProgressEvent{Stage: domain.IterStage("evaluation", iteration), Status: "started",
			Message: "Evaluating quality...", Progress: at(0.85), CostSoFar: run.TotalCost})
		var evalOut *EvaluationOutput
		err = p.runner.Run(ctx, run, domain.IterStage(domain.StageEvaluation, iteration), func(ctx context.Context) (StageOutcome, error) {
			out, err := p.evaluator.Evaluate(ctx, question, run.Answer, len(documents))
			if err != nil {
				return StageOutcome{}, err
			}
			evalOut = out
			run.Evaluations = out.Evaluations
			run.QualityScore = out.AverageScore
			return StageOutcome{
				CostUSD: out.CostUSD,
				Metadata: map[string]any{
					"quality_score": fmt.Sprintf("%.1f", out.AverageScore),
					"agreement":     out.AgreementLevel,
					"iteration":     iteration,
				},
			}, nil
		})
		if err != nil {
			return nil, err
		}
		emit(ProgressEvent{Stage: domain.IterStage("evaluation", iteration), Status: "completed",
			Message: fmt.Sprintf("Quality score: %.1f/100", run.QualityScore), Progress: at(0.90), CostSoFar: run.TotalCost})

		// Stage 8: quality gate
		emit(ProgressEvent{Stage: domain.IterStage("quality_gate", iteration), Status: "started",
			Message: "Checking quality gate...", Progress: at(0.95), CostSoFar: run.TotalCost})
		var decision domain.GateDecision
		_ = p.runner.Run(ctx, run, domain.IterStage(domain.StageQualityGate, iteration), func(ctx context.Context) (StageOutcome, error) {
			decision = DecideQualityGate(GateInput{
				AverageScore:  evalOut.AverageScore,
				Evaluations:   evalOut.Evaluations,
				AccuracyScore: accuracyOut.Score,
				Errors:        accuracyOut.Errors,
				Corrections:   accuracyOut.Corrections,
				Iteration:     iteration,
			}, GateOptions{
				MaxIterations:      p.opts.MaxIterations,
				QualityThreshold:   p.opts.QualityThreshold,
				AccuracyThreshold:  p.opts.AccuracyThreshold,
				AgreementThreshold: p.opts.AgreementThreshold,
				GateOnAccuracy:     p.opts.GateOnAccuracy,
			})
			return StageOutcome{
				Metadata: map[string]any{
					"should_iterate": decision.ShouldIterate,
					"reason":         decision.Reason,
					"iteration":      iteration,
				},
			}, nil
		})

		if !decision.ShouldIterate {
			p.logger.InfoContext(ctx, "quality gate passed", "reason", decision.Reason)
			emit(ProgressEvent{Stage: domain.IterStage("quality_gate", iteration), Status: "completed",
				Message: "Quality gate passed!", Progress: 95, CostSoFar: run.TotalCost})
			break
		}

		p.logger.InfoContext(ctx, "quality gate requires iteration", "reason", decision.Reason)
		refineProgress := iterStart + iterSpan
		if refineProgress > 85 {
			refineProgress = 85
		}
		emit(ProgressEvent{Stage: domain.IterStage("quality_gate", iteration), Status: "completed",
			Message: fmt.Sprintf("Refining answer... (%s)", decision.Reason), Progress: refineProgress, CostSoFar: run.TotalCost})
		feedback = decision.Feedback
	}

	run.TotalDuration = float64(time.Since(start).Microseconds()) / 1000
	span.SetAttributes(
		attribute.Float64("total_cost_usd", run.TotalCost),
		attribute.Float64("quality_score", run.QualityScore),
		attribute.Int("accuracy_score", run.AccuracyScore),
		attribute.Int("iterations", run.Iterations),
	)
	return run, nil
}

func preview(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
