// Package memindex is an in-process vector index for the memory driver.
package memindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/entry"
	"github.com/kailas-cloud/docqa/internal/domain/metric"
)

// Index keeps entries in a map and answers nearest queries by brute force.
type Index struct {
	mu      sync.RWMutex
	entries map[string]entry.Entry
	dims    int
	metric  metric.Metric
}

// New creates an empty index. dims 0 accepts any vector size.
func New(dims int, m metric.Metric) *Index {
	if m == "" {
		m = metric.Cosine
	}
	return &Index{
		entries: make(map[string]entry.Entry),
		dims:    dims,
		metric:  m,
	}
}

// EnsureIndex is a no-op.
func (ix *Index) EnsureIndex(context.Context) error { return nil }

// Upsert inserts e if its chunk id is absent.
func (ix *Index) Upsert(ctx context.Context, e entry.Entry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if ix.dims > 0 && len(e.Vector()) != ix.dims {
		return false, fmt.Errorf("upsert %s: %w: got %d, want %d",
			e.ChunkID(), domain.ErrVectorDimMismatch, len(e.Vector()), ix.dims)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.entries[e.ChunkID()]; ok {
		return false, nil
	}
	ix.entries[e.ChunkID()] = e
	return true, nil
}

// Missing returns the ids not stored yet, in input order.
func (ix *Index) Missing(_ context.Context, ids []string) ([]string, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var missing []string
	for _, id := range ids {
		if _, ok := ix.entries[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Nearest returns up to k entries by increasing distance. Ties break by chunk id.
func (ix *Index) Nearest(ctx context.Context, vector []float32, k int) ([]entry.Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	if ix.dims > 0 && len(vector) != ix.dims {
		return nil, fmt.Errorf("nearest: %w: got %d, want %d", domain.ErrVectorDimMismatch, len(vector), ix.dims)
	}

	ix.mu.RLock()
	all := make([]entry.Neighbor, 0, len(ix.entries))
	for id, e := range ix.entries {
		all = append(all, entry.Neighbor{
			ChunkID:  id,
			Text:     e.Text(),
			Distance: ix.metric.Distance(vector, e.Vector()),
		})
	}
	ix.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Distance != all[j].Distance {
			return all[i].Distance < all[j].Distance
		}
		return all[i].ChunkID < all[j].ChunkID
	})

	if len(all) > k {
		all = all[:k]
	}
	return all, nil
}

// Count returns the number of stored entries.
func (ix *Index) Count(context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries), nil
}

// Ping always succeeds.
func (ix *Index) Ping(context.Context) error { return nil }
