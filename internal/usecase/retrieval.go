package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"qa-orchestrator/internal/domain"
)

const (
	// rrfK is the standard Reciprocal Rank Fusion constant.
	rrfK = 60.0
	// hybridFetchFactor over-fetches each ranking so fusion has enough
	// candidates to reorder.
	hybridFetchFactor = 3
	// originalQueryBoost favors results retrieved for the user's literal
	// question over results for generated variations, whose similarity
	// scores are not directly comparable.
	originalQueryBoost = 1.15
	// dedupePrefixLen is how much of a document's content identifies it
	// across query variations.
	dedupePrefixLen = 200
)

// RetrievalOptions are the tunables of the hybrid retriever.
type RetrievalOptions struct {
	TopK                int
	SimilarityThreshold float64
	LexicalWeight       float64
	ExpansionEnabled    bool
}

// RetrievalOutput is the fused document set plus accounting.
type RetrievalOutput struct {
	Documents     []domain.Document
	AvgSimilarity float64
	QueryCount    int
	CostUSD       float64
}

// Retriever finds relevant documentation chunks. It fuses semantic and
// lexical rankings, expands broad questions into multiple queries, and
// force-injects pricing tables for pricing questions.
type Retriever struct {
	store    domain.DocumentStore
	embedder *CachedEmbedder
	expander *QueryExpander
	opts     RetrievalOptions
	logger   *slog.Logger
}

func NewRetriever(
	store domain.DocumentStore,
	embedder *CachedEmbedder,
	expander *QueryExpander,
	opts RetrievalOptions,
	logger *slog.Logger,
) *Retriever {
	return &Retriever{
		store:    store,
		embedder: embedder,
		expander: expander,
		opts:     opts,
		logger:   logger,
	}
}

// Retrieve returns the fused top-k documents for the question. The
// embedding of the original question is passed in so the orchestrator's
// embedding stage is not repeated here.
func (r *Retriever) Retrieve(ctx context.Context, embedding []float32, question string) (*RetrievalOutput, error) {
	totalCost := domain.StoreQueryCost
	queryCount := 1

	var documents []domain.Document

	if r.opts.ExpansionEnabled && ShouldExpand(question) {
		r.logger.InfoContext(ctx, "using multi-query retrieval for broad question",
			"question_length", len(question))

		expansion, err := r.expander.Expand(ctx, question)
		if err != nil {
			return nil, err
		}
		totalCost += expansion.CostUSD
		queryCount = len(expansion.Variations)

		documents, err = r.retrieveMultiQuery(ctx, expansion.Variations, &totalCost)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		documents, err = r.hybridSearch(ctx, question, embedding, r.opts.TopK)
		if err != nil {
			return nil, err
		}
	}

	documents = r.injectPricingTables(ctx, question, documents)

	avgSimilarity := 0.0
	if len(documents) > 0 {
		for _, doc := range documents {
			avgSimilarity += doc.SimilarityScore
		}
		avgSimilarity /= float64(len(documents))
	}

	r.logger.InfoContext(ctx, "documents retrieved",
		"count", len(documents),
		"avg_similarity", avgSimilarity,
		"query_count", queryCount)

	return &RetrievalOutput{
		Documents:     documents,
		AvgSimilarity: avgSimilarity,
		QueryCount:    queryCount,
		CostUSD:       totalCost,
	}, nil
}

// retrieveMultiQuery runs hybrid search per variation, deduplicates by
// content fingerprint keeping the higher score, boosts results of the
// original question, and returns the top-k by boosted similarity.
func (r *Retriever) retrieveMultiQuery(ctx context.Context, variations []string, totalCost *float64) ([]domain.Document, error) {
	perQuery := r.opts.TopK/len(variations) + 5
	if perQuery < 10 {
		perQuery = 10
	}

	best := make(map[string]domain.Document)

	for i, query := range variations {
		embed, err := r.embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		*totalCost += embed.CostUSD

		docs, err := r.hybridSearch(ctx, query, embed.Vector, perQuery)
		if err != nil {
			return nil, err
		}

		for _, doc := range docs {
			if i == 0 {
				doc.SimilarityScore *= originalQueryBoost
			}
			key := contentFingerprint(doc.Content)
			if existing, ok := best[key]; !ok || doc.SimilarityScore > existing.SimilarityScore {
				best[key] = doc
			}
		}
	}

	documents := make([]domain.Document, 0, len(best))
	for _, doc := range best {
		documents = append(documents, doc)
	}
	sort.SliceStable(documents, func(i, j int) bool {
		return documents[i].SimilarityScore > documents[j].SimilarityScore
	})
	if len(documents) > r.opts.TopK {
		documents = documents[:r.opts.TopK]
	}
	return documents, nil
}

// hybridSearch fuses the semantic and lexical rankings with weighted RRF
// and returns the top k by combined score. The combined score replaces
// SimilarityScore on the returned documents.
func (r *Retriever) hybridSearch(ctx context.Context, queryText string, embedding []float32, k int) ([]domain.Document, error) {
	fetchK := k * hybridFetchFactor

	semantic, err := r.store.SimilaritySearch(ctx, embedding, fetchK, r.opts.SimilarityThreshold)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}

	lexical, err := r.store.LexicalSearch(ctx, queryText, fetchK)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	fused := fuseRankings(semantic, lexical, r.opts.LexicalWeight)
	if len(fused) > k {
		fused = fused[:k]
	}

	r.logger.DebugContext(ctx, "hybrid search fused",
		"semantic_count", len(semantic),
		"lexical_count", len(lexical),
		"fused_count", len(fused))

	return fused, nil
}

// fuseRankings combines two rankings with weighted Reciprocal Rank Fusion.
// A document absent from one ranking contributes zero from that side.
func fuseRankings(semantic, lexical []domain.Document, lexicalWeight float64) []domain.Document {
	type fusedDoc struct {
		doc         domain.Document
		semanticRRF float64
		lexicalRRF  float64
	}
	fusedMap := make(map[string]*fusedDoc)

	for rank, doc := range semantic {
		key := contentFingerprint(doc.Content)
		fusedMap[key] = &fusedDoc{
			doc:         doc,
			semanticRRF: 1.0 / (rrfK + float64(rank+1)),
		}
	}

	for rank, doc := range lexical {
		key := contentFingerprint(doc.Content)
		if existing, ok := fusedMap[key]; ok {
			existing.lexicalRRF = 1.0 / (rrfK + float64(rank+1))
		} else {
			fusedMap[key] = &fusedDoc{
				doc:        doc,
				lexicalRRF: 1.0 / (rrfK + float64(rank+1)),
			}
		}
	}

	results := make([]domain.Document, 0, len(fusedMap))
	for _, fd := range fusedMap {
		doc := fd.doc
		doc.SimilarityScore = (1-lexicalWeight)*fd.semanticRRF + lexicalWeight*fd.lexicalRRF
		results = append(results, doc)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})
	return results
}

func contentFingerprint(content string) string {
	if len(content) > dedupePrefixLen {
		return content[:dedupePrefixLen]
	}
	return content
}
