package domain_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"qa-orchestrator/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestChunker_Chunk(t *testing.T) {
	chunker := domain.NewChunker()

	longA := strings.Repeat("Alpha paragraph sentence. ", 5)
	longB := strings.Repeat("Beta paragraph sentence. ", 5)

	t.Run("Splits sections at level-2 headings", func(t *testing.T) {
		body := "Intro text before any heading that is long enough to stand on its own as a chunk.\n\n" +
			"## Deploys\n\n" + longA + "\n\n" +
			"## Scaling\n\n" + longB
		chunks := chunker.Chunk("Web Services", "https://example.com/docs/web", body)

		assert.Len(t, chunks, 3)
		assert.Equal(t, "", chunks[0].Section)
		assert.Equal(t, "Deploys", chunks[1].Section)
		assert.Equal(t, "Scaling", chunks[2].Section)
		for _, c := range chunks {
			assert.Equal(t, "Web Services", c.Title)
			assert.Equal(t, "https://example.com/docs/web", c.Source)
		}
	})

	t.Run("Merges short paragraphs into a neighbor", func(t *testing.T) {
		body := "## Limits\n\nShort note.\n\n" + longA
		chunks := chunker.Chunk("Doc", "src", body)

		assert.Len(t, chunks, 1)
		assert.True(t, strings.HasPrefix(chunks[0].Content, "Short note."))
	})

	t.Run("Keeps a lone short section", func(t *testing.T) {
		body := "## Note\n\nTiny."
		chunks := chunker.Chunk("Doc", "src", body)

		assert.Len(t, chunks, 1)
		assert.Equal(t, "Tiny.", chunks[0].Content)
	})

	t.Run("Splits oversized paragraphs at sentence boundaries", func(t *testing.T) {
		body := "## Big\n\n" + strings.Repeat("This sentence is repeated many times to exceed the limit. ", 40)
		chunks := chunker.Chunk("Doc", "src", body)

		assert.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), domain.MaxChunkLength)
			assert.Equal(t, "Big", c.Section)
		}
	})

	t.Run("Ignores empty sections and blank lines", func(t *testing.T) {
		body := "## Empty\n\n\n\n## Real\n\n" + longA
		chunks := chunker.Chunk("Doc", "src", body)

		assert.Len(t, chunks, 1)
		assert.Equal(t, "Real", chunks[0].Section)
	})

	t.Run("Normalizes CRLF input", func(t *testing.T) {
		body := "## One\r\n\r\n" + longA
		chunks := chunker.Chunk("Doc", "src", body)

		assert.Len(t, chunks, 1)
		assert.Equal(t, "One", chunks[0].Section)
		assert.NotContains(t, chunks[0].Content, "\r")
	})
}
