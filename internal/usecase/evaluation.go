package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"qa-orchestrator/internal/domain"
)

const evaluationPrompt = `You are a quality evaluator for technical documentation answers. Evaluate the following answer on multiple criteria.

Question: %s

Answer:
%s

Source Documents Used: %d

CRITICAL: If the answer essentially says "I don't know", "I can't answer", or "information not available", it should receive very low scores (0-20) across all criteria, regardless of how politely it's written.

Please rate the answer on the following criteria (0-100 for each):

1. Technical Accuracy (30%%): Is the information correct and up-to-date? (Score 0-20 if answer says it lacks information)
2. Clarity & Organization (25%%): Is the answer well-structured and easy to understand? (Score 0-20 if answer doesn't actually provide substantive information)
3. Completeness (25%%): Does it fully address the question with specific details? (Score 0-10 if answer admits it cannot answer)
4. Developer Value (20%%): Is it actionable and useful for developers? (Score 0-10 if answer just redirects to external resources)

Provide your evaluation in this format:
TECHNICAL_ACCURACY: [0-100]
CLARITY: [0-100]
COMPLETENESS: [0-100]
DEVELOPER_VALUE: [0-100]
OVERALL: [weighted average]
FEEDBACK: [1-2 sentences of constructive feedback]`

const defaultEvalScore = 85

// EvaluationOutput is the pair of verdicts plus their aggregate.
type EvaluationOutput struct {
	Evaluations    []domain.EvaluationResult
	AverageScore   float64
	AgreementLevel string
	CostUSD        float64
}

// DualEvaluator scores an answer with two independent models and compares
// their verdicts. Disagreement is a quality signal in its own right.
type DualEvaluator struct {
	primary   domain.ChatModel
	secondary domain.ChatModel
	logger    *slog.Logger
}

func NewDualEvaluator(primary, secondary domain.ChatModel, logger *slog.Logger) *DualEvaluator {
	return &DualEvaluator{primary: primary, secondary: secondary, logger: logger}
}

// Evaluate runs both evaluators concurrently and averages their overall
// scores. The primary model's cost is billed at the auxiliary tier, the
// secondary at the generation tier.
func (d *DualEvaluator) Evaluate(ctx context.Context, question, answer string, docCount int) (*EvaluationOutput, error) {
	prompt := fmt.Sprintf(evaluationPrompt, question, answer, docCount)

	var primaryEval, secondaryEval domain.EvaluationResult
	var primaryCost, secondaryCost float64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := d.primary.Complete(gctx, domain.ChatRequest{
			Prompt:      prompt,
			MaxTokens:   500,
			Temperature: 0.1,
		})
		if err != nil {
			return err
		}
		primaryEval = parseEvaluation(result.Text, d.primary.Model())
		primaryCost = domain.AuxModelCost(result.InputTokens, result.OutputTokens)
		return nil
	})
	g.Go(func() error {
		result, err := d.secondary.Complete(gctx, domain.ChatRequest{
			Prompt:      prompt,
			MaxTokens:   500,
			Temperature: 0.1,
		})
		if err != nil {
			return err
		}
		secondaryEval = parseEvaluation(result.Text, d.secondary.Model())
		secondaryCost = domain.GenerationModelCost(result.InputTokens, result.OutputTokens)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	average := float64(primaryEval.OverallScore+secondaryEval.OverallScore) / 2
	agreement := domain.AgreementLevel(primaryEval.OverallScore, secondaryEval.OverallScore)
	totalCost := primaryCost + secondaryCost

	d.logger.InfoContext(ctx, "quality evaluated",
		"primary_score", primaryEval.OverallScore,
		"secondary_score", secondaryEval.OverallScore,
		"average_score", average,
		"agreement_level", agreement,
		"cost_usd", totalCost)

	return &EvaluationOutput{
		Evaluations:    []domain.EvaluationResult{primaryEval, secondaryEval},
		AverageScore:   average,
		AgreementLevel: agreement,
		CostUSD:        totalCost,
	}, nil
}

var scorePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// extractScore reads the first number from an evaluator line, tolerating
// formats like "85", "85/100" and "85.5". Values above 100 are capped.
func extractScore(text string) int {
	match := scorePattern.FindString(text)
	if match == "" {
		return defaultEvalScore
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return defaultEvalScore
	}
	rounded := int(math.Round(score))
	if rounded > 100 {
		return 100
	}
	return rounded
}

// parseEvaluation reads the line-labeled rubric format. Missing fields
// keep conservative defaults rather than failing the stage.
func parseEvaluation(text, model string) domain.EvaluationResult {
	eval := domain.EvaluationResult{
		Model:             model,
		OverallScore:      defaultEvalScore,
		TechnicalAccuracy: defaultEvalScore,
		Clarity:           defaultEvalScore,
		Completeness:      defaultEvalScore,
		DeveloperValue:    defaultEvalScore,
		Feedback:          "Good answer.",
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "TECHNICAL_ACCURACY:"):
			eval.TechnicalAccuracy = extractScore(strings.TrimPrefix(line, "TECHNICAL_ACCURACY:"))
		case strings.HasPrefix(line, "CLARITY:"):
			eval.Clarity = extractScore(strings.TrimPrefix(line, "CLARITY:"))
		case strings.HasPrefix(line, "COMPLETENESS:"):
			eval.Completeness = extractScore(strings.TrimPrefix(line, "COMPLETENESS:"))
		case strings.HasPrefix(line, "DEVELOPER_VALUE:"):
			eval.DeveloperValue = extractScore(strings.TrimPrefix(line, "DEVELOPER_VALUE:"))
		case strings.HasPrefix(line, "OVERALL:"):
			eval.OverallScore = extractScore(strings.TrimPrefix(line, "OVERALL:"))
		case strings.HasPrefix(line, "FEEDBACK:"):
			eval.Feedback = strings.TrimSpace(strings.TrimPrefix(line, "FEEDBACK:"))
		}
	}
	return eval
}
