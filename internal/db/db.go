package db

import (
	"context"
	"time"
)

// Store is the database facade the composition root holds.
//
//nolint:interfacebloat // facade; consumers declare narrow sub-interfaces
type Store interface {
	Pinger
	HashStore
	KVStore
	Scripter
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	ExistsMulti(ctx context.Context, keys []string) ([]bool, error)
}

// Scripter runs server-side atomic operations.
type Scripter interface {
	// HSetNX writes fields to key only if key does not exist yet.
	// Reports whether the hash was created. Atomic on the server.
	HSetNX(ctx context.Context, key string, fields map[string]string) (bool, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}
