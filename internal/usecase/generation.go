package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"qa-orchestrator/internal/domain"
)

const answerGenerationPrompt = `You are a helpful technical assistant specializing in Render's cloud platform. Your role is to provide accurate, clear, and actionable answers to developer questions.

Context from Render documentation:
%s

User Question: %s

%s

⚠️ CRITICAL: NO HEDGING ALLOWED ⚠️
You have been provided with 20 documents of relevant context. If the answer is in the context, STATE IT CONFIDENTLY.
DO NOT use these phrases unless information is genuinely 100%% absent:
- ❌ "doesn't specify"
- ❌ "doesn't include"
- ❌ "doesn't provide details"
- ❌ "doesn't mention"
- ❌ "not specified"
- ❌ "information not available"

If you see plan names, tiers, limits, or features in the context → STATE THEM DIRECTLY.
If you found the answer → BE CONFIDENT. Don't apologize or hedge.

CRITICAL ANTI-HALLUCINATION RULES:
1. ONLY use information explicitly stated in the provided documentation above
2. Do NOT invent, assume, or extrapolate information not in the context
3. Do NOT conflate different types of things - ESPECIALLY:
   - **Workspace Plans** (Hobby, Professional) ≠ **Database Instance Types** (Free, Basic, Pro, Accelerated)
   - When asked about "database plans", answer about BOTH Postgres AND Key Value (both are datastores)
   - Workspace plans affect team features and PITR retention, NOT database/datastore specs
4. If you mention specific plan names, tiers, features, or pricing - they MUST appear verbatim in the provided context
5. **ANTI-HEDGING RULE**: If information IS in the context, state it confidently without hedging
   - Check ALL 20 documents thoroughly before claiming anything is missing
   - If you found plans/features/limits in context → State them directly
   - Only use "not specified" if you checked all docs and found nothing
6. Do NOT create tables, lists, or specifications unless the information is explicitly in the provided documents

TERMINOLOGY MAPPING:
- "Database" or "datastore" questions → Cover BOTH Postgres AND Key Value instances
- "Plans" or "tiers" → Instance types (Free, Basic, Starter, Pro, Accelerated, etc.)
- "Storage" → Can mean disk for Postgres OR persistence for Key Value

EXAMPLES OF CORRECT BEHAVIOR:
❌ BAD: "The documentation doesn't specify Key Value plans" (when render.yaml shows plan: free, plan: starter, plan: pro)
✅ GOOD: "Key Value offers Free, Starter (default), and Pro instance types as seen in the render.yaml examples"

❌ BAD: "No pricing information is provided" (when you see text like "Free instance type" or "$0.30 per GB")
✅ GOOD: "Storage is billed at $0.30 per GB per month. Free instances are available for testing."

❌ BAD: "The provided documentation doesn't include..." (when the info IS in one of the 20 documents)
✅ GOOD: State the facts confidently based on what you found in the documents

VALIDATION CHECKLIST before answering:
- [ ] Every specific claim I make appears in the provided context
- [ ] I haven't mixed up different product types (workspace vs database vs service vs key-value)
- [ ] I haven't invented plan names, features, or specifications
- [ ] If I list options or tiers, they're quoted from the documentation
- [ ] I checked ALL 20 documents thoroughly before claiming information is missing
- [ ] I am NOT using hedging language like "doesn't specify" when the info IS in the context

Please provide a comprehensive answer that:
1. Uses ONLY information from the provided context
2. States facts CONFIDENTLY when they appear in the documentation (no unnecessary hedging!)
3. Lists specific plans, tiers, features, and limits found in the context
4. Only says "not specified" if genuinely absent from ALL 20 documents after thorough review

**PRICING & PLANS INSTRUCTIONS (CRITICAL):**
When answering questions about pricing, plans, tiers, or costs:
1. **PRIORITIZE documents with "Source: https://render.com/pricing"** - These contain authoritative pricing tables
2. Look for documents titled "Render [Service] Pricing" (e.g., "Render Postgres Pricing", "Render Key Value Pricing")
3. These pricing tables have the complete, accurate plan names, tiers, RAM, CPU, connection limits, and $ pricing
4. Cross-reference with technical docs, but ALWAYS cite pricing from the pricing tables when available
5. If pricing tables show a plan (e.g., "Standard | $32/month | 1 GB"), state it confidently - don't say it's "not specified"

Example: For "What Key Value plans exist?", check documents from render.com/pricing FIRST before checking other docs.

Answer:`

const refinementFeedbackBlock = `
Feedback from quality check:
%s

⚠️ CRITICAL: When revising, DO NOT:
- Invent features not explicitly in the provided context
- Assume features from one product apply to another (e.g., Postgres features ≠ Key Value features)
- Add plan names/tiers not mentioned in the documentation
- Generalize "both support X" unless BOTH products explicitly support X in the context

✅ DO:
- ONLY add details that are explicitly in the provided documents
- Keep product-specific features separate (clearly label "Postgres:" vs "Key Value:")
- If adding details about a feature, quote the relevant doc section
- When in doubt, be LESS comprehensive but MORE accurate

Please revise your answer based on this feedback while maintaining strict accuracy.`

// GenerationOutput is the drafted answer plus token accounting.
type GenerationOutput struct {
	Answer       string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Generator drafts answers with the primary generation model, grounded on
// the retrieved context only.
type Generator struct {
	model     domain.ChatModel
	maxTokens int
	logger    *slog.Logger
}

func NewGenerator(model domain.ChatModel, maxTokens int, logger *slog.Logger) *Generator {
	return &Generator{model: model, maxTokens: maxTokens, logger: logger}
}

// Generate drafts an answer from the retrieved documents. A non-empty
// feedback string marks a refinement iteration and is folded into the
// prompt with revision constraints.
func (g *Generator) Generate(ctx context.Context, question string, documents []domain.Document, feedback string) (*GenerationOutput, error) {
	g.logger.InfoContext(ctx, "generating answer",
		"num_documents", len(documents),
		"question_length", len(question),
		"has_feedback", feedback != "",
		"model", g.model.Model())

	feedbackText := ""
	if feedback != "" {
		feedbackText = fmt.Sprintf(refinementFeedbackBlock, feedback)
	}

	prompt := fmt.Sprintf(answerGenerationPrompt, formatContext(documents), question, feedbackText)

	result, err := g.model.Complete(ctx, domain.ChatRequest{
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	cost := domain.GenerationModelCost(result.InputTokens, result.OutputTokens)
	g.logger.InfoContext(ctx, "answer generated",
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"cost_usd", cost,
		"answer_length", len(result.Text))

	return &GenerationOutput{
		Answer:       result.Text,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CostUSD:      cost,
	}, nil
}

// formatContext renders the documents as numbered blocks with their title
// and source, so the model can cite them.
func formatContext(documents []domain.Document) string {
	parts := make([]string, 0, len(documents))
	for i, doc := range documents {
		parts = append(parts, fmt.Sprintf("[Document %d] %s\nSource: %s\nContent: %s\n",
			i+1, doc.Title(), doc.Source, doc.Content))
	}
	return strings.Join(parts, "\n\n")
}
