package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"qa-orchestrator/internal/domain"
)

const accuracyCheckPrompt = `You are a technical accuracy reviewer for Render documentation. Your task is to evaluate the technical accuracy of an answer.

Original Answer:
%s

Extracted Claims:
%s

Verification Results:
%s

Evaluation Criteria:
- If most claims are verified (70%%+), the answer is likely accurate (score 90-100)
- CRITICAL: If the answer contains invented information (plan names, features, prices NOT in documentation), score 0-30
- Check for conflation errors (e.g., mixing workspace plans with database plans) - score 20-40 if found
- Verified claims with high similarity scores indicate strong documentation support
- Only penalize for actual technical errors or misleading information
- Minor omissions or lack of detail should not heavily penalize the score

RED FLAGS to check for:
- Invented plan names or tiers not verified by documentation
- Tables or specifications not found in source documents
- Conflating different product types:
  * CRITICAL: Treating "Hobby" or "Professional" as DATABASE plans (they're workspace plans!)
  * Database instance types are: Free, Basic-Xgb, Pro-Xgb, Accelerated-Xgb
  * Workspace plans are: Hobby, Professional (affect PITR retention, team features)
- Making up features, limits, or pricing details

Please provide:
1. An accuracy score from 0-100 (where 100 is perfectly accurate)
2. A list of any technical errors or inaccuracies you find (including hallucinations)
3. Suggestions for corrections

Format your response as:
ACCURACY_SCORE: [0-100]
ERRORS:
- [error 1 - be specific about what's wrong]
- [error 2 - indicate if it's a hallucination vs misinterpretation]
CORRECTIONS:
- [correction 1]
- [correction 2]

If there are no errors, you can omit the ERRORS and CORRECTIONS sections.`

const defaultAccuracyScore = 90

// AccuracyOutput is the reviewer's verdict plus token accounting.
type AccuracyOutput struct {
	Score        int
	Errors       []string
	Corrections  []string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// AccuracyChecker asks the generation-tier model to review an answer
// against its verified claims.
type AccuracyChecker struct {
	model  domain.ChatModel
	logger *slog.Logger
}

func NewAccuracyChecker(model domain.ChatModel, logger *slog.Logger) *AccuracyChecker {
	return &AccuracyChecker{model: model, logger: logger}
}

// Check scores the answer 0-100. A response that cannot be parsed scores
// the default; a high verification rate with no reported errors overrides
// a low score, since the reviewer is known to under-score well-supported
// answers.
func (a *AccuracyChecker) Check(ctx context.Context, answer string, claims []domain.Claim) (*AccuracyOutput, error) {
	verified := 0
	var claimLines []string
	for _, c := range claims {
		if c.Verified {
			verified++
		}
		claimLines = append(claimLines, fmt.Sprintf("- %s (verified: %t, score: %.2f)",
			c.Text, c.Verified, c.VerificationScore))
	}
	verificationSummary := fmt.Sprintf("%d/%d claims verified", verified, len(claims))

	prompt := fmt.Sprintf(accuracyCheckPrompt, answer, strings.Join(claimLines, "\n"), verificationSummary)

	result, err := a.model.Complete(ctx, domain.ChatRequest{
		Prompt:      prompt,
		MaxTokens:   1500,
		Temperature: 0.0,
	})
	if err != nil {
		return nil, err
	}

	score, errors, corrections := parseAccuracyResponse(result.Text)

	verificationRate := 0.0
	if len(claims) > 0 {
		verificationRate = float64(verified) / float64(len(claims))
	}
	if verificationRate >= 0.7 && score < 85 && len(errors) == 0 {
		a.logger.InfoContext(ctx, "boosting accuracy score to 90",
			"original_score", score,
			"verification_rate", verificationRate)
		score = defaultAccuracyScore
	}

	cost := domain.GenerationModelCost(result.InputTokens, result.OutputTokens)
	a.logger.InfoContext(ctx, "accuracy checked",
		"accuracy_score", score,
		"error_count", len(errors),
		"correction_count", len(corrections),
		"cost_usd", cost)

	return &AccuracyOutput{
		Score:        score,
		Errors:       errors,
		Corrections:  corrections,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CostUSD:      cost,
	}, nil
}

// parseAccuracyResponse reads the line-labeled review format. A missing
// or malformed score falls back to the default.
func parseAccuracyResponse(text string) (score int, errors, corrections []string) {
	score = defaultAccuracyScore

	section := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "ACCURACY_SCORE:"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "ACCURACY_SCORE:"))
			if parsed, err := strconv.Atoi(extractDigits(raw)); err == nil {
				score = parsed
			}
		case strings.HasPrefix(line, "ERRORS:"):
			section = "errors"
		case strings.HasPrefix(line, "CORRECTIONS:"):
			section = "corrections"
		case strings.HasPrefix(line, "- ") && section == "errors":
			errors = append(errors, strings.TrimPrefix(line, "- "))
		case strings.HasPrefix(line, "- ") && section == "corrections":
			corrections = append(corrections, strings.TrimPrefix(line, "- "))
		}
	}
	return score, errors, corrections
}

func extractDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
