package chunkindex

import (
	"context"
	"testing"

	"github.com/kailas-cloud/docqa/internal/db"
	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/metric"
)

const testDim = 3

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetNXFn      func(ctx context.Context, key string, fields map[string]string) (bool, error)
	existsMultiFn func(ctx context.Context, keys []string) ([]bool, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, index, query string) (int, error)
	pingFn        func(ctx context.Context) error
}

func (m *mockStore) HSetNX(ctx context.Context, key string, fields map[string]string) (bool, error) {
	if m.hsetNXFn != nil {
		return m.hsetNXFn(ctx, key, fields)
	}
	return true, nil
}

func (m *mockStore) ExistsMulti(ctx context.Context, keys []string) ([]bool, error) {
	if m.existsMultiFn != nil {
		return m.existsMultiFn(ctx, keys)
	}
	return make([]bool, len(keys)), nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func testVectorConfig() domain.VectorConfig {
	return domain.VectorConfig{
		Dimensions:         testDim,
		Distance:           metric.Cosine,
		HNSWM:              16,
		HNSWEFConstruction: 200,
	}
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, Options{KeyPrefix: "docqa:", Vector: testVectorConfig()}), ms
}
