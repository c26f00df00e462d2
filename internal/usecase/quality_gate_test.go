package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"qa-orchestrator/internal/domain"
)

func gateOpts() GateOptions {
	return GateOptions{
		MaxIterations:      3,
		QualityThreshold:   85,
		AccuracyThreshold:  70,
		AgreementThreshold: 10,
	}
}

func evals(a, b int) []domain.EvaluationResult {
	return []domain.EvaluationResult{
		{Model: "gpt-4o-mini", OverallScore: a, Feedback: "feedback a"},
		{Model: "claude", OverallScore: b, Feedback: "feedback b"},
	}
}

func TestQualityGate_MaxIterationsAlwaysAccepts(t *testing.T) {
	// Even a failing score is accepted once the iteration cap is hit.
	decision := DecideQualityGate(GateInput{
		AverageScore:  40,
		Evaluations:   evals(40, 40),
		AccuracyScore: 20,
		Iteration:     3,
	}, gateOpts())

	assert.False(t, decision.ShouldIterate)
	assert.Equal(t, "Maximum iterations (3) reached", decision.Reason)
	assert.Empty(t, decision.Feedback)
}

func TestQualityGate_LowQualityIterates(t *testing.T) {
	decision := DecideQualityGate(GateInput{
		AverageScore:  78.5,
		Evaluations:   evals(80, 77),
		AccuracyScore: 95,
		Iteration:     1,
	}, gateOpts())

	assert.True(t, decision.ShouldIterate)
	assert.Equal(t, "Quality score 78.5 below threshold 85", decision.Reason)
	// Feedback merges both evaluators since both are under threshold.
	assert.Contains(t, decision.Feedback, "Quality score: 78.5/100")
	assert.Contains(t, decision.Feedback, "gpt-4o-mini feedback: feedback a")
	assert.Contains(t, decision.Feedback, "claude feedback: feedback b")
}

func TestQualityGate_AccuracyIgnoredByDefault(t *testing.T) {
	decision := DecideQualityGate(GateInput{
		AverageScore:  90,
		Evaluations:   evals(91, 89),
		AccuracyScore: 30,
		Errors:        []string{"invented plan"},
		Iteration:     1,
	}, gateOpts())

	assert.False(t, decision.ShouldIterate)
}

func TestQualityGate_AccuracyGateWhenEnabled(t *testing.T) {
	opts := gateOpts()
	opts.GateOnAccuracy = true

	decision := DecideQualityGate(GateInput{
		AverageScore:  90,
		Evaluations:   evals(91, 89),
		AccuracyScore: 30,
		Errors:        []string{"invented plan", "wrong price", "bad tier", "extra error"},
		Corrections:   []string{"fix it"},
		Iteration:     1,
	}, opts)

	assert.True(t, decision.ShouldIterate)
	assert.Equal(t, "Accuracy score 30 below threshold 70", decision.Reason)
	// At most three errors are forwarded.
	assert.Contains(t, decision.Feedback, "invented plan")
	assert.Contains(t, decision.Feedback, "bad tier")
	assert.NotContains(t, decision.Feedback, "extra error")
}

func TestQualityGate_DisagreementIterates(t *testing.T) {
	decision := DecideQualityGate(GateInput{
		AverageScore:  90,
		Evaluations:   evals(99, 81),
		AccuracyScore: 95,
		Iteration:     1,
	}, gateOpts())

	assert.True(t, decision.ShouldIterate)
	assert.Equal(t, "Evaluator disagreement too high: 18 points", decision.Reason)
	assert.Contains(t, decision.Feedback, "Evaluators disagree significantly")
}

func TestQualityGate_Accepts(t *testing.T) {
	decision := DecideQualityGate(GateInput{
		AverageScore:  92.5,
		Evaluations:   evals(94, 91),
		AccuracyScore: 95,
		Iteration:     1,
	}, gateOpts())

	assert.False(t, decision.ShouldIterate)
	assert.Equal(t, "Quality score 92.5 and accuracy 95 meet thresholds", decision.Reason)
	assert.Empty(t, decision.Feedback)
}

func TestQualityGate_QualityBeatsDisagreement(t *testing.T) {
	// Both conditions hold; the quality check has priority.
	decision := DecideQualityGate(GateInput{
		AverageScore:  70,
		Evaluations:   evals(95, 45),
		AccuracyScore: 95,
		Iteration:     1,
	}, gateOpts())

	assert.True(t, decision.ShouldIterate)
	assert.Contains(t, decision.Reason, "Quality score")
}
