package usecase

import (
	"fmt"
	"strings"

	"qa-orchestrator/internal/domain"
)

// GateInput is everything the quality gate looks at for one iteration.
type GateInput struct {
	AverageScore  float64
	Evaluations   []domain.EvaluationResult
	AccuracyScore int
	Errors        []string
	Corrections   []string
	Iteration     int
}

// GateOptions are the gate's thresholds. GateOnAccuracy is off by default:
// accuracy scoring proved too noisy to iterate on, so the score is kept
// for monitoring only.
type GateOptions struct {
	MaxIterations      int
	QualityThreshold   float64
	AccuracyThreshold  int
	AgreementThreshold int
	GateOnAccuracy     bool
}

// DecideQualityGate decides whether to accept the answer or run another
// refinement iteration. Checks apply in priority order; the iteration cap
// always wins.
func DecideQualityGate(in GateInput, opts GateOptions) domain.GateDecision {
	if in.Iteration >= opts.MaxIterations {
		return domain.GateDecision{
			Reason: fmt.Sprintf("Maximum iterations (%d) reached", opts.MaxIterations),
		}
	}

	if in.AverageScore < opts.QualityThreshold {
		parts := []string{
			fmt.Sprintf("Quality score: %.1f/100 (threshold: %.0f)", in.AverageScore, opts.QualityThreshold),
		}
		for _, eval := range in.Evaluations {
			if float64(eval.OverallScore) < opts.QualityThreshold {
				parts = append(parts, fmt.Sprintf("\n%s feedback: %s", eval.Model, eval.Feedback))
			}
		}
		return domain.GateDecision{
			ShouldIterate: true,
			Reason:        fmt.Sprintf("Quality score %.1f below threshold %.0f", in.AverageScore, opts.QualityThreshold),
			Feedback:      strings.Join(parts, "\n"),
		}
	}

	if opts.GateOnAccuracy && in.AccuracyScore < opts.AccuracyThreshold {
		parts := []string{
			fmt.Sprintf("Accuracy score: %d/100 (threshold: %d)", in.AccuracyScore, opts.AccuracyThreshold),
		}
		if len(in.Errors) > 0 {
			parts = append(parts, "\nIdentified errors:")
			for _, e := range limitItems(in.Errors, 3) {
				parts = append(parts, "- "+e)
			}
		}
		if len(in.Corrections) > 0 {
			parts = append(parts, "\nSuggested corrections:")
			for _, c := range limitItems(in.Corrections, 3) {
				parts = append(parts, "- "+c)
			}
		}
		return domain.GateDecision{
			ShouldIterate: true,
			Reason:        fmt.Sprintf("Accuracy score %d below threshold %d", in.AccuracyScore, opts.AccuracyThreshold),
			Feedback:      strings.Join(parts, "\n"),
		}
	}

	if len(in.Evaluations) >= 2 {
		diff := in.Evaluations[0].OverallScore - in.Evaluations[1].OverallScore
		if diff < 0 {
			diff = -diff
		}
		if diff > opts.AgreementThreshold {
			return domain.GateDecision{
				ShouldIterate: true,
				Reason:        fmt.Sprintf("Evaluator disagreement too high: %d points", diff),
				Feedback: fmt.Sprintf("Evaluators disagree significantly. %s says: %s. %s says: %s",
					in.Evaluations[0].Model, in.Evaluations[0].Feedback,
					in.Evaluations[1].Model, in.Evaluations[1].Feedback),
			}
		}
	}

	return domain.GateDecision{
		Reason: fmt.Sprintf("Quality score %.1f and accuracy %d meet thresholds", in.AverageScore, in.AccuracyScore),
	}
}

func limitItems(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
