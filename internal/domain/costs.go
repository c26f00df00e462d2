package domain

// Cost per 1M tokens in USD. The pipeline treats the hosted models as three
// pricing tiers: embedding, auxiliary (expansion/extraction/one evaluator)
// and generation (answers, accuracy review, second evaluator).
const (
	EmbeddingCostPerM        = 0.02
	AuxInputCostPerM         = 0.15
	AuxOutputCostPerM        = 0.60
	GenerationInputCostPerM  = 3.00
	GenerationOutputCostPerM = 15.00

	// Flat per-call charge for a document store query.
	StoreQueryCost = 0.0001
)

// EmbeddingCost returns the USD cost of embedding the given token count.
func EmbeddingCost(tokens int) float64 {
	return float64(tokens) / 1_000_000 * EmbeddingCostPerM
}

// AuxModelCost returns the USD cost of an auxiliary-tier chat call.
func AuxModelCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1_000_000*AuxInputCostPerM +
		float64(outputTokens)/1_000_000*AuxOutputCostPerM
}

// GenerationModelCost returns the USD cost of a generation-tier chat call.
func GenerationModelCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1_000_000*GenerationInputCostPerM +
		float64(outputTokens)/1_000_000*GenerationOutputCostPerM
}
