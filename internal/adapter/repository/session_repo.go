package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qa-orchestrator/internal/domain"
)

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a SessionStore backed by the qa_sessions
// table. Structured fields are stored as jsonb.
func NewSessionRepository(pool *pgxpool.Pool) domain.SessionStore {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) getExecutor(ctx context.Context) dbExecutor {
	tx := ExtractTx(ctx)
	if tx != nil {
		return tx
	}
	return r.pool
}

func (r *sessionRepository) Save(ctx context.Context, run *domain.PipelineRun) (string, error) {
	sources, err := json.Marshal(orEmpty(run.Sources))
	if err != nil {
		return "", fmt.Errorf("failed to marshal sources: %w", err)
	}
	claims, err := json.Marshal(orEmpty(run.Claims))
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}
	evaluations, err := json.Marshal(orEmpty(run.Evaluations))
	if err != nil {
		return "", fmt.Errorf("failed to marshal evaluations: %w", err)
	}
	stages, err := json.Marshal(orEmpty(run.Stages))
	if err != nil {
		return "", fmt.Errorf("failed to marshal stages: %w", err)
	}

	query := `
		INSERT INTO qa_sessions
			(id, question, answer, sources, claims, evaluations, quality_score,
			 iterations, total_cost, total_duration_ms, trace_id, stages)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	var id uuid.UUID
	err = r.getExecutor(ctx).QueryRow(ctx, query,
		uuid.New(),
		run.Question,
		run.Answer,
		sources,
		claims,
		evaluations,
		run.QualityScore,
		run.Iterations,
		run.TotalCost,
		run.TotalDuration,
		nullable(run.TraceID),
		stages,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return id.String(), nil
}

const sessionColumns = `
	id, question, answer, sources, claims, evaluations,
	quality_score, iterations, total_cost, total_duration_ms,
	trace_id, stages, created_at
`

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}

	query := `SELECT ` + sessionColumns + ` FROM qa_sessions WHERE id = $1`
	row := r.getExecutor(ctx).QueryRow(ctx, query, sessionID)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (r *sessionRepository) List(ctx context.Context, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + sessionColumns + ` FROM qa_sessions ORDER BY created_at DESC LIMIT $1`
	rows, err := r.getExecutor(ctx).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return sessions, nil
}

func (r *sessionRepository) Delete(ctx context.Context, id string) (bool, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}

	tag, err := r.getExecutor(ctx).Exec(ctx, `DELETE FROM qa_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *sessionRepository) DeleteAll(ctx context.Context) (int, error) {
	tag, err := r.getExecutor(ctx).Exec(ctx, `DELETE FROM qa_sessions`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *sessionRepository) Stats(ctx context.Context) (*domain.SessionStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(AVG(quality_score), 0),
			COALESCE(AVG(total_cost), 0),
			COALESCE(SUM(total_cost), 0),
			COALESCE(AVG(iterations), 0)
		FROM qa_sessions
	`
	var stats domain.SessionStats
	err := r.getExecutor(ctx).QueryRow(ctx, query).Scan(
		&stats.TotalSessions,
		&stats.AvgQuality,
		&stats.AvgCost,
		&stats.TotalCost,
		&stats.AvgIterations,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute session stats: %w", err)
	}
	return &stats, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		id          uuid.UUID
		session     domain.Session
		sources     []byte
		claims      []byte
		evaluations []byte
		stages      []byte
		traceID     *string
	)
	err := row.Scan(
		&id,
		&session.Question,
		&session.Answer,
		&sources,
		&claims,
		&evaluations,
		&session.QualityScore,
		&session.Iterations,
		&session.TotalCost,
		&session.TotalDuration,
		&traceID,
		&stages,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.ID = id.String()
	if traceID != nil {
		session.TraceID = *traceID
	}
	if err := json.Unmarshal(sources, &session.Sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	if err := json.Unmarshal(claims, &session.Claims); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claims: %w", err)
	}
	if err := json.Unmarshal(evaluations, &session.Evaluations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evaluations: %w", err)
	}
	if err := json.Unmarshal(stages, &session.Stages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stages: %w", err)
	}
	return &session, nil
}

// orEmpty keeps jsonb columns as [] instead of null for nil slices.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
