package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"qa-orchestrator/internal/domain"
)

const claimsExtractionPrompt = `Extract all factual claims from the following answer. A factual claim is a specific, verifiable statement about Render's platform, features, pricing, or capabilities.

Answer:
%s

Extract claims as a JSON array of strings. Each claim should be:
- A single, specific fact (one sentence)
- Kept on a single line (no line breaks within the claim text)
- Independently verifiable
- Technical or product-related

IMPORTANT: Each claim must be a complete sentence on ONE line. Do NOT break claims across multiple lines.

Return a JSON object with a "claims" array:
{
  "claims": [
    "Render supports Node.js versions 14, 16, 18, and 20",
    "PostgreSQL databases include automated daily backups"
  ]
}`

// ClaimsOutput is the extracted claim texts plus token accounting.
type ClaimsOutput struct {
	Claims       []string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// ClaimsExtractor pulls verifiable factual statements out of a generated
// answer using the auxiliary model in JSON mode.
type ClaimsExtractor struct {
	model  domain.ChatModel
	logger *slog.Logger
}

func NewClaimsExtractor(model domain.ChatModel, logger *slog.Logger) *ClaimsExtractor {
	return &ClaimsExtractor{model: model, logger: logger}
}

// Extract returns the claims found in the answer. A response that cannot
// be parsed degrades to zero claims; the call cost is charged either way.
func (e *ClaimsExtractor) Extract(ctx context.Context, answer string) (*ClaimsOutput, error) {
	result, err := e.model.Complete(ctx, domain.ChatRequest{
		Prompt:      fmt.Sprintf(claimsExtractionPrompt, answer),
		MaxTokens:   4000,
		Temperature: 0.1,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	if result.Truncated {
		e.logger.WarnContext(ctx, "claims extraction response truncated",
			"output_tokens", result.OutputTokens,
			"answer_length", len(answer))
	}

	claims, parseErr := parseClaims(result.Text)
	if parseErr != nil {
		e.logger.WarnContext(ctx, "claims parse failed, continuing with zero claims",
			"error", parseErr.Error())
		claims = nil
	}

	cost := domain.AuxModelCost(result.InputTokens, result.OutputTokens)
	if len(claims) == 0 && len(answer) > 100 {
		e.logger.WarnContext(ctx, "zero claims extracted from substantial answer",
			"answer_length", len(answer))
	} else {
		e.logger.InfoContext(ctx, "claims extracted",
			"claim_count", len(claims),
			"cost_usd", cost)
	}

	return &ClaimsOutput{
		Claims:       claims,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CostUSD:      cost,
	}, nil
}

// parseClaims accepts the formats the model is known to emit: an object
// with a "claims" array (keys may carry stray whitespace), a bare array,
// or an object whose first list-valued field holds the claims.
func parseClaims(content string) ([]string, error) {
	content = stripCodeFences(content)

	var object map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &object); err == nil {
		if raw, ok := lookupNormalized(object, "claims"); ok {
			return decodeClaimList(raw)
		}
		for _, raw := range object {
			if claims, err := decodeClaimList(raw); err == nil {
				return claims, nil
			}
		}
		return nil, &domain.ParseError{
			Stage: domain.StageClaims,
			Err:   fmt.Errorf("no list-valued field in object"),
		}
	}

	var array []string
	if err := json.Unmarshal([]byte(content), &array); err == nil {
		return array, nil
	}

	return nil, &domain.ParseError{
		Stage: domain.StageClaims,
		Err:   fmt.Errorf("response is neither object nor array"),
	}
}

func lookupNormalized(object map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	for k, v := range object {
		if strings.TrimSpace(k) == key {
			return v, true
		}
	}
	return nil, false
}

func decodeClaimList(raw json.RawMessage) ([]string, error) {
	var claims []string
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}
