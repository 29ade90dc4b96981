package retrieval

import (
	"context"

	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	"github.com/kailas-cloud/docqa/internal/domain/entry"
)

// Chunker splits a document into ordered chunks.
type Chunker interface {
	Chunk(text string) []chunk.Chunk
}

// Index is the vector index contract.
type Index interface {
	// Upsert inserts e if its chunk id is absent. created=false means it already existed.
	Upsert(ctx context.Context, e entry.Entry) (created bool, err error)
	// Nearest returns up to k entries by increasing distance.
	Nearest(ctx context.Context, vector []float32, k int) ([]entry.Neighbor, error)
	// Missing returns the ids not stored yet.
	Missing(ctx context.Context, ids []string) ([]string, error)
	Count(ctx context.Context) (int, error)
}
