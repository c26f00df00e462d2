package domain

// Agreement buckets for the dual evaluator.
const (
	AgreementHigh   = "high"
	AgreementMedium = "medium"
	AgreementLow    = "low"
)

// EvaluationResult holds one evaluator's rubric scores. Two are produced
// per iteration, one per model provider; they are averaged but never merged.
type EvaluationResult struct {
	Model             string `json:"model"`
	OverallScore      int    `json:"overall_score"`
	TechnicalAccuracy int    `json:"technical_accuracy"`
	Clarity           int    `json:"clarity"`
	Completeness      int    `json:"completeness"`
	DeveloperValue    int    `json:"developer_value"`
	Feedback          string `json:"feedback"`
}

// AgreementLevel classifies how closely two overall scores match.
func AgreementLevel(a, b int) string {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 5:
		return AgreementHigh
	case diff <= 15:
		return AgreementMedium
	default:
		return AgreementLow
	}
}
