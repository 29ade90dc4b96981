package domain

import (
	"fmt"

	"github.com/kailas-cloud/docqa/internal/domain/metric"
)

// VectorConfig holds the settings shared by the embedder and every index implementation.
// Index creation and query interpretation must agree on Distance.
type VectorConfig struct {
	Dimensions         int
	Distance           metric.Metric
	HNSWM              int
	HNSWEFConstruction int
}

// DefaultVectorConfig returns the defaults for text-embedding-3-small.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Dimensions:         1536,
		Distance:           metric.Cosine,
		HNSWM:              16,
		HNSWEFConstruction: 200,
	}
}

// Validate checks the vector settings.
func (c VectorConfig) Validate() error {
	if c.Dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidInput, c.Dimensions)
	}
	if !c.Distance.Valid() {
		return fmt.Errorf("%w: unknown distance metric %q", ErrInvalidInput, c.Distance)
	}
	return nil
}
