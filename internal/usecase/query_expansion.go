package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"qa-orchestrator/internal/domain"
)

const queryExpansionPrompt = `You are a search query expert for Render's cloud platform documentation.

Given a user's question, generate 2-3 alternative phrasings that would help retrieve comprehensive documentation from different angles.

Original question: %s

Guidelines:
1. **Product Coverage**: If the question is about a general category (e.g., "databases"), explicitly mention ALL relevant products:
   - Databases: mention both "Postgres" AND "Key Value"
   - Services: mention "web services", "workers", "cron jobs"
   - Storage: mention "Postgres storage", "disk storage", "persistent volumes"

2. **Terminology Variations**: Use synonyms and alternative terms:
   - database/datastore
   - plan/tier/instance type
   - pricing/cost/billing
   - backup/recovery/restore

3. **Different Aspects**: Approach from different angles:
   - Features/capabilities
   - Configuration/setup
   - Pricing/plans
   - Limitations/restrictions

4. **Specificity Balance**: Mix general and specific queries:
   - One broad query (covers category)
   - One or two specific queries (target specific products)

Return ONLY a JSON array of 2-3 questions. The first should be the original question (possibly slightly rephrased), followed by 1-2 variations.

Format: ["original or slightly rephrased", "variation 1", "variation 2"]

Example:
Input: "What database plans does Render offer?"
Output: [
  "What database plans and tiers are available on Render?",
  "What are the Postgres instance types and pricing?",
  "What Key Value datastore plans does Render provide?"
]`

var broadTerms = []string{
	"database", "plan", "tier", "option", "service",
	"storage", "backup", "monitoring", "scaling",
	"pricing", "cost", "feature", "capability",
}

var specificIndicators = []string{
	"how do i", "how to", "error", "troubleshoot",
	"specific", "exactly", "step by step",
}

// ShouldExpand reports whether a question is broad enough to benefit from
// multi-query retrieval. Specific or long questions are retrieved as-is.
func ShouldExpand(question string) bool {
	lower := strings.ToLower(question)

	hasBroadTerm := false
	for _, term := range broadTerms {
		if strings.Contains(lower, term) {
			hasBroadTerm = true
			break
		}
	}

	isSpecific := false
	for _, indicator := range specificIndicators {
		if strings.Contains(lower, indicator) {
			isSpecific = true
			break
		}
	}

	isDetailed := len(strings.Fields(question)) > 15

	return hasBroadTerm && !(isSpecific || isDetailed)
}

// ExpansionOutput is the variation list plus the model cost of producing it.
type ExpansionOutput struct {
	Variations []string
	CostUSD    float64
}

// QueryExpander generates query variations with the auxiliary model.
type QueryExpander struct {
	model  domain.ChatModel
	logger *slog.Logger
}

func NewQueryExpander(model domain.ChatModel, logger *slog.Logger) *QueryExpander {
	return &QueryExpander{model: model, logger: logger}
}

// Expand returns up to three queries: the original question always comes
// first, followed by at most two model-generated variations. A response
// that fails to parse degrades to the original question alone; the call
// cost is charged either way.
func (x *QueryExpander) Expand(ctx context.Context, question string) (*ExpansionOutput, error) {
	result, err := x.model.Complete(ctx, domain.ChatRequest{
		Prompt:      fmt.Sprintf(queryExpansionPrompt, question),
		MaxTokens:   300,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	cost := domain.AuxModelCost(result.InputTokens, result.OutputTokens)
	content := stripCodeFences(result.Text)

	var parsed []string
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		parseErr := &domain.ParseError{Stage: domain.StageRetrieval, Err: err}
		x.logger.WarnContext(ctx, "query expansion parse failed, using original question",
			"error", parseErr.Error())
		return &ExpansionOutput{Variations: []string{question}, CostUSD: cost}, nil
	}

	if len(parsed) > 2 {
		parsed = parsed[:2]
	}
	variations := append([]string{question}, parsed...)

	x.logger.InfoContext(ctx, "query expanded",
		"num_variations", len(variations),
		"cost_usd", cost)

	return &ExpansionOutput{Variations: variations, CostUSD: cost}, nil
}

// stripCodeFences removes a surrounding markdown code block if present.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
