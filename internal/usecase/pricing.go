package usecase

import (
	"context"
	"strings"

	"qa-orchestrator/internal/domain"
)

const (
	pricingSource = "https://render.com/pricing"
	// injectedPricingScore ranks injected tables above nearly all organic
	// results without claiming a perfect match.
	injectedPricingScore = 0.95
)

var pricingKeywords = []string{
	"pricing", "price", "cost", "costs",
	"plan", "plans", "tier", "tiers",
	"instance type", "instance types",
	"$", "dollar", "monthly", "per month",
	"how much", "what does it cost",
}

// freeTierIndicators exclude questions about the free offering, which the
// pricing tables do not cover.
var freeTierIndicators = []string{"free tier", "free instance"}

// productPricingTables maps product mentions to the pricing tables that
// cover them. Ordered so injection order is stable.
var productPricingTables = []struct {
	keyword string
	titles  []string
}{
	{"postgres", []string{"Render Postgres Pricing"}},
	{"postgresql", []string{"Render Postgres Pricing"}},
	{"database", []string{"Render Postgres Pricing", "Render Key Value Pricing"}},
	{"datastore", []string{"Render Postgres Pricing", "Render Key Value Pricing"}},
	{"key value", []string{"Render Key Value Pricing"}},
	{"keyvalue", []string{"Render Key Value Pricing"}},
	{"redis", []string{"Render Key Value Pricing"}},
	{"valkey", []string{"Render Key Value Pricing"}},
	{"web service", []string{"Render Web Services Pricing"}},
	{"private service", []string{"Render Web Services Pricing"}},
	{"background worker", []string{"Render Web Services Pricing"}},
	{"cron", []string{"Render Cron Jobs Pricing"}},
	{"cron job", []string{"Render Cron Jobs Pricing"}},
}

var allPricingTables = []string{
	"Render Postgres Pricing",
	"Render Key Value Pricing",
	"Render Web Services Pricing",
	"Render Cron Jobs Pricing",
}

var defaultPricingTables = []string{
	"Render Postgres Pricing",
	"Render Key Value Pricing",
}

// isPricingQuestion reports whether the question asks about paid plans.
func isPricingQuestion(question string) bool {
	lower := strings.ToLower(question)
	for _, indicator := range freeTierIndicators {
		if strings.Contains(lower, indicator) {
			return false
		}
	}
	for _, keyword := range pricingKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// detectPricingTables maps a pricing question to the table titles to
// inject. Product mentions win; only when no product is named do instance
// type questions get every table and anything else the database tables.
func detectPricingTables(question string) []string {
	lower := strings.ToLower(question)

	seen := make(map[string]bool)
	var tables []string
	for _, entry := range productPricingTables {
		if !strings.Contains(lower, entry.keyword) {
			continue
		}
		for _, title := range entry.titles {
			if !seen[title] {
				seen[title] = true
				tables = append(tables, title)
			}
		}
	}
	if len(tables) > 0 {
		return tables
	}

	if strings.Contains(lower, "instance type") {
		return allPricingTables
	}
	return defaultPricingTables
}

// injectPricingTables prepends the relevant pricing tables for pricing
// questions. Tables are injected even when search already surfaced a copy:
// fusion rescales organic scores to RRF values, so only the injected copy
// carries the fixed high score. Fetch failures are logged and skipped;
// injection never fails retrieval.
func (r *Retriever) injectPricingTables(ctx context.Context, question string, documents []domain.Document) []domain.Document {
	if !isPricingQuestion(question) {
		return documents
	}

	var injected []domain.Document
	for _, title := range detectPricingTables(question) {
		doc, err := r.store.FetchByTitleAndSource(ctx, title, pricingSource)
		if err != nil {
			r.logger.WarnContext(ctx, "pricing table fetch failed",
				"title", title, "error", err.Error())
			continue
		}
		if doc == nil {
			r.logger.WarnContext(ctx, "pricing table not found", "title", title)
			continue
		}

		doc.SimilarityScore = injectedPricingScore
		if doc.Metadata == nil {
			doc.Metadata = map[string]string{}
		}
		if doc.Metadata["section"] == "" {
			doc.Metadata["section"] = title
		}
		injected = append(injected, *doc)
	}

	if len(injected) == 0 {
		return documents
	}

	r.logger.InfoContext(ctx, "pricing tables injected", "count", len(injected))
	return append(injected, documents...)
}
