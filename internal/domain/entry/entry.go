package entry

import (
	"fmt"

	"github.com/kailas-cloud/docqa/internal/domain/chunk"
)

// Entry is a chunk paired with its embedding vector, as stored in the vector index.
type Entry struct {
	chunk  chunk.Chunk
	vector []float32
}

// New validates and creates an Entry.
func New(c chunk.Chunk, vector []float32) (Entry, error) {
	if c.ID() == "" {
		return Entry{}, fmt.Errorf("chunk ID is required")
	}
	if len(vector) == 0 {
		return Entry{}, fmt.Errorf("entry %s: vector is required", c.ID())
	}
	return Entry{chunk: c, vector: vector}, nil
}

// ChunkID returns the identifier of the stored chunk.
func (e Entry) ChunkID() string { return e.chunk.ID() }

// Seq returns the chunk position in its document.
func (e Entry) Seq() int { return e.chunk.Seq() }

// Text returns the chunk content.
func (e Entry) Text() string { return e.chunk.Text() }

// Vector returns the embedding vector.
func (e Entry) Vector() []float32 { return e.vector }

// Neighbor is one row of a nearest-neighbour answer.
type Neighbor struct {
	ChunkID  string
	Text     string
	Distance float64
}
