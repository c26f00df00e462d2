package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"qa-orchestrator/internal/domain"
)

// EmbedOutput carries the vector plus the accounting for one embed call.
// Cache hits cost nothing.
type EmbedOutput struct {
	Vector   []float32
	Tokens   int
	CostUSD  float64
	CacheHit bool
}

// CachedEmbedder wraps an Embedder with a content-addressed LRU cache.
// Query variations and claims repeat across iterations, so the cache pays
// for itself within a single request.
type CachedEmbedder struct {
	embedder domain.Embedder
	cache    *lru.Cache[string, []float32]
	logger   *slog.Logger
}

func NewCachedEmbedder(embedder domain.Embedder, cacheSize int, logger *slog.Logger) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEmbedder{
		embedder: embedder,
		cache:    cache,
		logger:   logger,
	}, nil
}

func (e *CachedEmbedder) Dimensions() int {
	return e.embedder.Dimensions()
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) (*EmbedOutput, error) {
	key := cacheKey(text)
	if vec, ok := e.cache.Get(key); ok {
		e.logger.DebugContext(ctx, "embedding cache hit", "text_length", len(text))
		return &EmbedOutput{Vector: vec, CacheHit: true}, nil
	}

	result, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Add(key, result.Vector)
	return &EmbedOutput{
		Vector:  result.Vector,
		Tokens:  result.Tokens,
		CostUSD: domain.EmbeddingCost(result.Tokens),
	}, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
