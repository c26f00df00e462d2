package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-orchestrator/internal/domain"
)

func TestCachedEmbedder_CacheHitIsFree(t *testing.T) {
	calls := 0
	embedder, err := NewCachedEmbedder(&stubEmbedder{
		dims: 4,
		embed: func(text string) (*domain.EmbedResult, error) {
			calls++
			return &domain.EmbedResult{Vector: []float32{1, 2, 3, 4}, Tokens: 10}, nil
		},
	}, 8, testLogger())
	require.NoError(t, err)

	first, err := embedder.Embed(context.Background(), "same text")
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.InDelta(t, domain.EmbeddingCost(10), first.CostUSD, 1e-12)

	second, err := embedder.Embed(context.Background(), "same text")
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 0.0, second.CostUSD)
	assert.Equal(t, first.Vector, second.Vector)
	assert.Equal(t, 1, calls)
}

func TestCachedEmbedder_DistinctTextsMiss(t *testing.T) {
	calls := 0
	embedder, err := NewCachedEmbedder(&stubEmbedder{
		dims: 4,
		embed: func(text string) (*domain.EmbedResult, error) {
			calls++
			return &domain.EmbedResult{Vector: []float32{float32(calls)}, Tokens: 5}, nil
		},
	}, 8, testLogger())
	require.NoError(t, err)

	_, err = embedder.Embed(context.Background(), "first")
	require.NoError(t, err)
	_, err = embedder.Embed(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	fail := true
	embedder, err := NewCachedEmbedder(&stubEmbedder{
		dims: 4,
		embed: func(text string) (*domain.EmbedResult, error) {
			if fail {
				return nil, &domain.ProviderError{Provider: "openai"}
			}
			return &domain.EmbedResult{Vector: []float32{1}, Tokens: 3}, nil
		},
	}, 8, testLogger())
	require.NoError(t, err)

	_, err = embedder.Embed(context.Background(), "text")
	require.Error(t, err)

	fail = false
	out, err := embedder.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
}
