package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"qa-orchestrator/internal/domain"
)

type documentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates a DocumentStore backed by Postgres with
// pgvector.
func NewDocumentRepository(pool *pgxpool.Pool) domain.DocumentStore {
	return &documentRepository{pool: pool}
}

type dbExecutor interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *documentRepository) getExecutor(ctx context.Context) dbExecutor {
	tx := ExtractTx(ctx)
	if tx != nil {
		return tx
	}
	return r.pool
}

// EnsureSchema creates the documents schema: the pgvector extension, the
// documents table, the ANN and full-text indexes, and the tsvector trigger
// that indexes title, section and content together.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id SERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			title TEXT NOT NULL,
			section TEXT,
			metadata JSONB DEFAULT '{}',
			embedding vector(1536),
			content_tsv tsvector,
			created_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS documents_embedding_idx
			ON documents USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`,
		`CREATE INDEX IF NOT EXISTS documents_source_idx
			ON documents(source)`,
		`CREATE INDEX IF NOT EXISTS documents_content_tsv_idx
			ON documents USING gin(content_tsv)`,
		`CREATE OR REPLACE FUNCTION documents_tsvector_trigger() RETURNS trigger AS $$
		BEGIN
			NEW.content_tsv := to_tsvector('english',
				coalesce(NEW.title, '') || ' ' ||
				coalesce(NEW.section, '') || ' ' ||
				coalesce(NEW.content, '')
			);
			RETURN NEW;
		END
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS documents_tsvector_update ON documents`,
		`CREATE TRIGGER documents_tsvector_update
			BEFORE INSERT OR UPDATE ON documents
			FOR EACH ROW
			EXECUTE FUNCTION documents_tsvector_trigger()`,
		`CREATE TABLE IF NOT EXISTS qa_sessions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			sources JSONB DEFAULT '[]',
			claims JSONB DEFAULT '[]',
			evaluations JSONB DEFAULT '[]',
			quality_score FLOAT NOT NULL,
			iterations INTEGER NOT NULL,
			total_cost FLOAT NOT NULL,
			total_duration_ms FLOAT NOT NULL,
			trace_id TEXT,
			stages JSONB DEFAULT '[]',
			created_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS qa_sessions_created_at_idx
			ON qa_sessions(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS qa_sessions_trace_id_idx
			ON qa_sessions(trace_id)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

func (r *documentRepository) Insert(ctx context.Context, chunk domain.DocumentChunk, embedding []float32) (int64, error) {
	query := `
		INSERT INTO documents (content, source, title, section, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := r.getExecutor(ctx).QueryRow(ctx, query,
		chunk.Content,
		chunk.Source,
		chunk.Title,
		chunk.Section,
		chunk.Metadata,
		pgvector.NewVector(embedding),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

func (r *documentRepository) InsertBatch(ctx context.Context, chunks []domain.DocumentChunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	for i, chunk := range chunks {
		if _, err := r.Insert(ctx, chunk, embeddings[i]); err != nil {
			return err
		}
	}
	return nil
}

const documentColumns = `content, source, title, section, metadata`

func (r *documentRepository) SimilaritySearch(ctx context.Context, vector []float32, k int, threshold float64) ([]domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `,
			1 - (embedding <=> $1) AS similarity_score
		FROM documents
		WHERE 1 - (embedding <=> $1) > $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, pgvector.NewVector(vector), threshold, k)
	if err != nil {
		return nil, fmt.Errorf("failed to run similarity search: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (r *documentRepository) LexicalSearch(ctx context.Context, queryText string, k int) ([]domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `,
			ts_rank_cd(content_tsv, query) AS rank_score
		FROM documents,
			plainto_tsquery('english', $1) AS query
		WHERE content_tsv @@ query
		ORDER BY rank_score DESC
		LIMIT $2
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, queryText, k)
	if err != nil {
		return nil, fmt.Errorf("failed to run lexical search: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (r *documentRepository) FetchByTitleAndSource(ctx context.Context, title, source string) (*domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE title = $1 AND source = $2
		LIMIT 1
	`
	var (
		doc      domain.Document
		docTitle string
		section  *string
		meta     map[string]string
	)
	err := r.getExecutor(ctx).QueryRow(ctx, query, title, source).Scan(
		&doc.Content, &doc.Source, &docTitle, &section, &meta,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document by title: %w", err)
	}

	doc.Metadata = mergeMetadata(docTitle, section, meta)
	return &doc, nil
}

func (r *documentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.getExecutor(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func scanDocuments(rows pgx.Rows) ([]domain.Document, error) {
	var documents []domain.Document
	for rows.Next() {
		var (
			doc     domain.Document
			title   string
			section *string
			meta    map[string]string
		)
		if err := rows.Scan(&doc.Content, &doc.Source, &title, &section, &meta, &doc.SimilarityScore); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Metadata = mergeMetadata(title, section, meta)
		documents = append(documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return documents, nil
}

// mergeMetadata folds the title and section columns into the document
// metadata map, keeping any extra keys from the jsonb column.
func mergeMetadata(title string, section *string, meta map[string]string) map[string]string {
	merged := make(map[string]string, len(meta)+2)
	for k, v := range meta {
		merged[k] = v
	}
	merged["title"] = title
	if section != nil && *section != "" {
		merged["section"] = *section
	}
	return merged
}
