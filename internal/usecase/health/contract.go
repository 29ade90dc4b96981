package health

import (
	"context"

	"github.com/kailas-cloud/docqa/internal/usecase/retrieval"
)

// IndexPinger checks vector index availability.
type IndexPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// StateReader exposes the document ingestion state.
type StateReader interface {
	State() retrieval.State
}
