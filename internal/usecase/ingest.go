package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"qa-orchestrator/internal/domain"
)

// IngestInput is one source document to chunk and index.
type IngestInput struct {
	Title  string
	Source string
	Body   string
}

// IngestSummary reports what one ingestion pass produced.
type IngestSummary struct {
	Documents int
	Chunks    int
	Tokens    int
	CostUSD   float64
}

// Ingestor chunks source documents, embeds the chunks and writes them to
// the document store. Each source document is inserted in one transaction
// so a partial failure never leaves half a document searchable.
type Ingestor struct {
	chunker  domain.Chunker
	embedder *CachedEmbedder
	store    domain.DocumentStore
	tx       domain.TransactionManager
	logger   *slog.Logger
}

func NewIngestor(
	chunker domain.Chunker,
	embedder *CachedEmbedder,
	store domain.DocumentStore,
	tx domain.TransactionManager,
	logger *slog.Logger,
) *Ingestor {
	return &Ingestor{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		tx:       tx,
		logger:   logger,
	}
}

// IngestAll indexes every input document in order and stops at the first
// failure.
func (ing *Ingestor) IngestAll(ctx context.Context, inputs []IngestInput) (*IngestSummary, error) {
	summary := &IngestSummary{}
	for _, input := range inputs {
		docSummary, err := ing.Ingest(ctx, input)
		if err != nil {
			return summary, fmt.Errorf("failed to ingest %q: %w", input.Title, err)
		}
		summary.Documents++
		summary.Chunks += docSummary.Chunks
		summary.Tokens += docSummary.Tokens
		summary.CostUSD += docSummary.CostUSD
	}

	ing.logger.InfoContext(ctx, "ingestion complete",
		"documents", summary.Documents,
		"chunks", summary.Chunks,
		"cost_usd", summary.CostUSD)
	return summary, nil
}

// Ingest chunks, embeds and stores a single document.
func (ing *Ingestor) Ingest(ctx context.Context, input IngestInput) (*IngestSummary, error) {
	chunks := ing.chunker.Chunk(input.Title, input.Source, input.Body)
	if len(chunks) == 0 {
		ing.logger.WarnContext(ctx, "document produced no chunks",
			"title", input.Title, "source", input.Source)
		return &IngestSummary{Documents: 1}, nil
	}

	summary := &IngestSummary{Documents: 1, Chunks: len(chunks)}
	embeddings := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		out, err := ing.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk of %q: %w", input.Title, err)
		}
		embeddings = append(embeddings, out.Vector)
		summary.Tokens += out.Tokens
		summary.CostUSD += out.CostUSD
	}

	err := ing.tx.RunInTx(ctx, func(ctx context.Context) error {
		return ing.store.InsertBatch(ctx, chunks, embeddings)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks of %q: %w", input.Title, err)
	}

	ing.logger.InfoContext(ctx, "document ingested",
		"title", input.Title,
		"chunks", len(chunks),
		"tokens", summary.Tokens)
	return summary, nil
}
