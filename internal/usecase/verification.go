package usecase

import (
	"context"
	"log/slog"
	"strings"

	"qa-orchestrator/internal/domain"
)

const (
	// verificationCandidates is how many documents are fetched per claim.
	verificationCandidates = 5
	// verificationSearchThreshold is looser than the verification
	// threshold so near-miss candidates still surface for scoring.
	verificationSearchThreshold = 0.3
	// pricingClaimBoost rewards pricing claims supported by the
	// authoritative pricing tables.
	pricingClaimBoost    = 1.1
	maxSupportingSources = 2
)

var pricingClaimTerms = []string{
	"$", "pricing", "price", "cost", "plan", "tier", "gb", "ram", "cpu",
}

// VerificationOutput is the scored claim set plus accounting.
type VerificationOutput struct {
	Claims           []domain.Claim
	VerificationRate float64
	CostUSD          float64
}

// Verifier checks each extracted claim against the document store by
// embedding it and searching for supporting chunks.
type Verifier struct {
	store     domain.DocumentStore
	embedder  *CachedEmbedder
	threshold float64
	logger    *slog.Logger
}

func NewVerifier(store domain.DocumentStore, embedder *CachedEmbedder, threshold float64, logger *slog.Logger) *Verifier {
	return &Verifier{
		store:     store,
		embedder:  embedder,
		threshold: threshold,
		logger:    logger,
	}
}

// Verify scores every claim independently. A claim is verified when its
// best supporting document meets the verification threshold.
func (v *Verifier) Verify(ctx context.Context, claimTexts []string) (*VerificationOutput, error) {
	v.logger.InfoContext(ctx, "verifying claims", "count", len(claimTexts))

	claims := make([]domain.Claim, 0, len(claimTexts))
	embeddingCost := 0.0

	for _, text := range claimTexts {
		embed, err := v.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddingCost += embed.CostUSD

		docs, err := v.store.SimilaritySearch(ctx, embed.Vector, verificationCandidates, verificationSearchThreshold)
		if err != nil {
			return nil, err
		}

		claims = append(claims, v.scoreClaim(ctx, text, docs))
	}

	verified := 0
	for _, c := range claims {
		if c.Verified {
			verified++
		}
	}
	rate := 0.0
	if len(claims) > 0 {
		rate = float64(verified) / float64(len(claims))
	}

	cost := embeddingCost + float64(len(claimTexts))*domain.StoreQueryCost

	v.logger.InfoContext(ctx, "claims verified",
		"total_claims", len(claims),
		"verified_count", verified,
		"verification_rate", rate,
		"cost_usd", cost)

	return &VerificationOutput{
		Claims:           claims,
		VerificationRate: rate,
		CostUSD:          cost,
	}, nil
}

func (v *Verifier) scoreClaim(ctx context.Context, text string, docs []domain.Document) domain.Claim {
	claim := domain.Claim{Text: text}
	if len(docs) == 0 {
		return claim
	}

	score := docs[0].SimilarityScore
	if isPricingClaim(text) && docs[0].Source == pricingSource {
		score = domain.ClampScore(score * pricingClaimBoost)
		v.logger.DebugContext(ctx, "boosted pricing claim verification", "score", score)
	}

	var supporting []string
	bestVerified := 0.0
	for _, doc := range docs {
		if doc.SimilarityScore < v.threshold {
			continue
		}
		if doc.SimilarityScore > bestVerified {
			bestVerified = doc.SimilarityScore
		}
		if len(supporting) < maxSupportingSources {
			supporting = append(supporting, doc.Source)
		}
	}
	if bestVerified > score {
		score = bestVerified
	}

	claim.Verified = score >= v.threshold
	claim.VerificationScore = score
	claim.SupportingSources = supporting
	return claim
}

func isPricingClaim(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range pricingClaimTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
