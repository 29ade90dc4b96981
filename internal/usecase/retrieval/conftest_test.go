package retrieval

import (
	"context"
	"sort"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	"github.com/kailas-cloud/docqa/internal/domain/entry"
	"github.com/kailas-cloud/docqa/internal/domain/metric"
)

// mockIndex is a map-backed Index. Function fields override the default behaviour.
type mockIndex struct {
	mu      sync.Mutex
	entries map[string]entry.Entry

	upsertFn  func(ctx context.Context, e entry.Entry) (bool, error)
	nearestFn func(ctx context.Context, vector []float32, k int) ([]entry.Neighbor, error)
	missingFn func(ctx context.Context, ids []string) ([]string, error)
	countFn   func(ctx context.Context) (int, error)
}

func newMockIndex() *mockIndex {
	return &mockIndex{entries: map[string]entry.Entry{}}
}

func (m *mockIndex) Upsert(ctx context.Context, e entry.Entry) (bool, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, e)
	}
	return m.put(e), nil
}

func (m *mockIndex) put(e entry.Entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ChunkID()]; ok {
		return false
	}
	m.entries[e.ChunkID()] = e
	return true
}

func (m *mockIndex) Nearest(ctx context.Context, vector []float32, k int) ([]entry.Neighbor, error) {
	if m.nearestFn != nil {
		return m.nearestFn(ctx, vector, k)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entry.Neighbor, 0, len(m.entries))
	for id, e := range m.entries {
		out = append(out, entry.Neighbor{ChunkID: id, Text: e.Text(), Distance: metric.L2.Distance(vector, e.Vector())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *mockIndex) Missing(ctx context.Context, ids []string) ([]string, error) {
	if m.missingFn != nil {
		return m.missingFn(ctx, ids)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range ids {
		if _, ok := m.entries[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *mockIndex) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

func (m *mockIndex) texts() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.entries))
	for id, e := range m.entries {
		out[id] = e.Text()
	}
	return out
}

// mockEmbedder maps known texts to vectors; unknown texts get {len(text), 0}.
type mockEmbedder struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	err        error
	batchErr   error
	embedCalls int
	batchSizes []int
	onBatch    func()
	// waitFn runs before a batch is embedded; a non-nil error fails the batch.
	waitFn func(ctx context.Context) error
}

func (m *mockEmbedder) vector(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	return []float32{float32(len(text)), 0}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vector(text)}, nil
}

func (m *mockEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if m.onBatch != nil {
		m.onBatch()
	}
	if m.waitFn != nil {
		if err := m.waitFn(ctx); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
	}
	m.mu.Lock()
	m.batchSizes = append(m.batchSizes, len(texts))
	m.mu.Unlock()
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

func (m *mockEmbedder) batches() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batchSizes...)
}

func newTestService(t *testing.T) (*Service, *mockEmbedder, *mockIndex) {
	t.Helper()
	c, err := chunk.NewChunker("")
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	emb := &mockEmbedder{vectors: map[string][]float32{}}
	idx := newMockIndex()
	return New(c, emb, nil, idx, zap.NewNop()), emb, idx
}
