package domain

import "time"

// PipelineRun aggregates the state of one answer request: the ordered stage
// results, running cost total, iteration counter and the final answer
// artifacts. Lifecycle is strictly request-scoped.
type PipelineRun struct {
	Question      string             `json:"question"`
	Answer        string             `json:"answer"`
	Sources       []Document         `json:"sources"`
	Claims        []Claim            `json:"claims"`
	QualityScore  float64            `json:"quality_score"`
	AccuracyScore int                `json:"accuracy_score"`
	Evaluations   []EvaluationResult `json:"evaluations"`
	Iterations    int                `json:"iterations"`
	TotalCost     float64            `json:"total_cost"`
	TotalDuration float64            `json:"total_duration_ms"`
	Stages        []StageResult      `json:"stages"`
	Timestamp     time.Time          `json:"timestamp"`
	SessionID     string             `json:"session_id,omitempty"`
	TraceID       string             `json:"trace_id,omitempty"`
}

// NewPipelineRun starts a run for the given question with the iteration
// counter at 1.
func NewPipelineRun(question string) *PipelineRun {
	return &PipelineRun{
		Question:   question,
		Iterations: 1,
		Timestamp:  time.Now().UTC(),
	}
}

// AppendStage records a stage result and accumulates its cost. Results are
// append-only and kept in execution order.
func (r *PipelineRun) AppendStage(result StageResult) {
	r.Stages = append(r.Stages, result)
	r.TotalCost += result.CostUSD
}
