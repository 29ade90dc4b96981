package chunk

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultBoundary matches one or more blank lines (lines holding only spaces or tabs count as blank).
const DefaultBoundary = `\n[ \t]*\n(?:[ \t]*\n)*`

// Chunker splits plain text into paragraph-like chunks.
type Chunker struct {
	boundary *regexp.Regexp
}

// NewChunker compiles boundary once. Empty boundary selects DefaultBoundary.
func NewChunker(boundary string) (*Chunker, error) {
	if boundary == "" {
		boundary = DefaultBoundary
	}
	re, err := regexp.Compile(boundary)
	if err != nil {
		return nil, fmt.Errorf("compile chunk boundary: %w", err)
	}
	return &Chunker{boundary: re}, nil
}

// Split returns the trimmed non-empty segments of text in document order.
func (c *Chunker) Split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	parts := c.boundary.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Chunk splits text and assigns deterministic IDs doc_0, doc_1, ...
// A document without content yields an empty slice.
func (c *Chunker) Chunk(text string) []Chunk {
	parts := c.Split(text)
	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{id: ID(i), seq: i, text: p}
	}
	return chunks
}
