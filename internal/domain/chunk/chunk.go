package chunk

import (
	"fmt"
	"strconv"
	"strings"
)

// IDPrefix is prepended to the sequence index to form a chunk ID.
const IDPrefix = "doc_"

// Chunk is one retrievable unit of a document (immutable value object).
type Chunk struct {
	id   string
	seq  int
	text string
}

// New validates and creates a Chunk. The ID is derived from seq.
func New(seq int, text string) (Chunk, error) {
	if seq < 0 {
		return Chunk{}, fmt.Errorf("sequence index must be non-negative, got %d", seq)
	}
	if strings.TrimSpace(text) == "" {
		return Chunk{}, fmt.Errorf("chunk text is required")
	}
	return Chunk{id: ID(seq), seq: seq, text: text}, nil
}

// Reconstruct creates a Chunk without validation (storage hydration).
func Reconstruct(id string, seq int, text string) Chunk {
	return Chunk{id: id, seq: seq, text: text}
}

// ID formats the deterministic identifier for a sequence index.
func ID(seq int) string {
	return IDPrefix + strconv.Itoa(seq)
}

// ParseID returns the sequence index encoded in id.
func ParseID(id string) (int, error) {
	rest, ok := strings.CutPrefix(id, IDPrefix)
	if !ok {
		return 0, fmt.Errorf("chunk ID %q: missing %q prefix", id, IDPrefix)
	}
	seq, err := strconv.Atoi(rest)
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("chunk ID %q: invalid sequence index", id)
	}
	return seq, nil
}

// ID returns the chunk identifier.
func (c Chunk) ID() string { return c.id }

// Seq returns the position of the chunk in its document.
func (c Chunk) Seq() int { return c.seq }

// Text returns the chunk content.
func (c Chunk) Text() string { return c.text }
