package domain

import (
	"context"
	"time"
)

// DocumentStore is the persistence contract the pipeline retrieves from.
// Semantic and lexical search are independent; the hybrid retriever fuses
// their rankings.
type DocumentStore interface {
	Insert(ctx context.Context, chunk DocumentChunk, embedding []float32) (int64, error)
	InsertBatch(ctx context.Context, chunks []DocumentChunk, embeddings [][]float32) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, threshold float64) ([]Document, error)
	LexicalSearch(ctx context.Context, query string, k int) ([]Document, error)
	FetchByTitleAndSource(ctx context.Context, title, source string) (*Document, error)
	Count(ctx context.Context) (int, error)
}

// TransactionManager runs a function within a database transaction.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Session is a persisted Q&A run.
type Session struct {
	ID            string             `json:"id"`
	Question      string             `json:"question"`
	Answer        string             `json:"answer"`
	Sources       []Document         `json:"sources"`
	Claims        []Claim            `json:"claims"`
	Evaluations   []EvaluationResult `json:"evaluations"`
	QualityScore  float64            `json:"quality_score"`
	Iterations    int                `json:"iterations"`
	TotalCost     float64            `json:"total_cost"`
	TotalDuration float64            `json:"total_duration_ms"`
	TraceID       string             `json:"trace_id,omitempty"`
	Stages        []StageResult      `json:"stages"`
	CreatedAt     time.Time          `json:"created_at"`
}

// SessionStats aggregates the history for the stats endpoint.
type SessionStats struct {
	TotalSessions int     `json:"total_sessions"`
	AvgQuality    float64 `json:"avg_quality_score"`
	AvgCost       float64 `json:"avg_cost"`
	TotalCost     float64 `json:"total_cost"`
	AvgIterations float64 `json:"avg_iterations"`
}

// SessionStore persists completed runs for the history endpoints.
type SessionStore interface {
	Save(ctx context.Context, run *PipelineRun) (string, error)
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context, limit int) ([]Session, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*SessionStats, error)
}
