package domain

import "fmt"

// Stage names used for tracing and stage results. Stages executed inside the
// refinement loop carry an _iter_N suffix (see IterStage).
const (
	StageEmbedding    = "question_embedding"
	StageRetrieval    = "rag_retrieval"
	StageGeneration   = "answer_generation"
	StageClaims       = "claims_extraction"
	StageVerification = "claims_verification"
	StageAccuracy     = "technical_accuracy"
	StageEvaluation   = "quality_evaluation"
	StageQualityGate  = "quality_gate"
)

// IterStage suffixes a stage name with the iteration it ran in.
func IterStage(name string, iteration int) string {
	return fmt.Sprintf("%s_iter_%d", name, iteration)
}

// StageResult records the outcome of one executed pipeline stage.
// The orchestrator appends results in strict execution order.
type StageResult struct {
	Stage      string         `json:"stage"`
	Success    bool           `json:"success"`
	DurationMs float64        `json:"duration_ms"`
	CostUSD    float64        `json:"cost_usd"`
	TokensUsed int            `json:"tokens_used,omitempty"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// GateDecision is the quality gate's verdict for one iteration. Feedback is
// non-empty exactly when ShouldIterate is true.
type GateDecision struct {
	ShouldIterate bool
	Reason        string
	Feedback      string
}
