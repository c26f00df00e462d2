package domain

// Document represents a retrieved documentation chunk. Created by the
// retriever, read-only downstream; only the retriever assigns or rescales
// SimilarityScore.
type Document struct {
	Content         string            `json:"content"`
	Source          string            `json:"source"`
	SimilarityScore float64           `json:"similarity_score"`
	Metadata        map[string]string `json:"metadata"`
}

// Title returns the document title from metadata, or "Unknown".
func (d Document) Title() string {
	if t, ok := d.Metadata["title"]; ok && t != "" {
		return t
	}
	return "Unknown"
}

// DocumentChunk is a piece of documentation prepared for ingestion.
type DocumentChunk struct {
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Title    string            `json:"title"`
	Section  string            `json:"section,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ClampScore clamps a similarity or verification score to [0, 1].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
