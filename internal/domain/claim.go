package domain

// Claim is an atomic factual statement extracted from a generated answer.
// The extractor creates it unverified; the verifier sets the remaining
// fields exactly once. The verified flag is never flipped afterwards
// within a run.
type Claim struct {
	Text              string   `json:"text"`
	Verified          bool     `json:"verified"`
	VerificationScore float64  `json:"verification_score"`
	SupportingSources []string `json:"supporting_sources"`
}
