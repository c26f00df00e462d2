package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	// MinChunkLength is the minimum chunk length in characters. Shorter
	// chunks are merged into a neighbor.
	MinChunkLength = 80
	// MaxChunkLength is the maximum chunk length in characters. Longer
	// chunks are split at sentence boundaries.
	MaxChunkLength = 1000
)

// Chunker splits a markdown document into store-ready chunks.
type Chunker interface {
	Chunk(title, source, body string) []DocumentChunk
}

type sectionChunker struct{}

// NewChunker returns the default markdown section chunker. It splits on
// level-2 headings, then normalizes chunk sizes within each section.
func NewChunker() Chunker {
	return &sectionChunker{}
}

func (c *sectionChunker) Chunk(title, source, body string) []DocumentChunk {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var chunks []DocumentChunk
	for _, sec := range splitSections(normalized) {
		paragraphs := splitParagraphs(sec.body)
		merged := mergeShort(paragraphs)
		for _, content := range splitLong(merged) {
			chunks = append(chunks, DocumentChunk{
				Content: content,
				Source:  source,
				Title:   title,
				Section: sec.heading,
			})
		}
	}
	return chunks
}

type section struct {
	heading string
	body    string
}

// splitSections cuts the document at level-2 headings. Content before the
// first heading becomes a section with an empty heading.
func splitSections(body string) []section {
	var sections []section
	current := section{}
	var buf []string

	flush := func() {
		current.body = strings.TrimSpace(strings.Join(buf, "\n"))
		if current.body != "" {
			sections = append(sections, current)
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			current = section{heading: strings.TrimSpace(strings.TrimPrefix(line, "## "))}
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return sections
}

func splitParagraphs(body string) []string {
	var paragraphs []string
	for _, part := range strings.Split(body, "\n\n") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

// mergeShort folds paragraphs under MinChunkLength into a neighbor so no
// chunk carries too little context to retrieve on, except when the whole
// section is short.
func mergeShort(paragraphs []string) []string {
	var merged []string
	var pending string

	for _, para := range paragraphs {
		if utf8.RuneCountInString(para) < MinChunkLength {
			if pending != "" {
				pending += "\n\n" + para
			} else {
				pending = para
			}
			continue
		}
		if pending != "" {
			if utf8.RuneCountInString(pending) < MinChunkLength {
				para = pending + "\n\n" + para
			} else {
				merged = append(merged, pending)
			}
			pending = ""
		}
		merged = append(merged, para)
	}

	if pending != "" {
		if utf8.RuneCountInString(pending) < MinChunkLength && len(merged) > 0 {
			merged[len(merged)-1] += "\n\n" + pending
		} else {
			merged = append(merged, pending)
		}
	}
	return merged
}

// splitLong breaks chunks over MaxChunkLength at sentence boundaries,
// packing sentences greedily.
func splitLong(paragraphs []string) []string {
	var result []string
	for _, para := range paragraphs {
		if utf8.RuneCountInString(para) <= MaxChunkLength {
			result = append(result, para)
			continue
		}

		var chunk string
		for _, sentence := range splitSentences(para) {
			chunkLen := utf8.RuneCountInString(chunk)
			if chunkLen > 0 && chunkLen+1+utf8.RuneCountInString(sentence) > MaxChunkLength {
				result = append(result, chunk)
				chunk = sentence
				continue
			}
			if chunk != "" {
				chunk += " "
			}
			chunk += sentence
		}
		if chunk != "" {
			result = append(result, chunk)
		}
	}
	return result
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		switch runes[i] {
		case '.', '!', '?':
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
