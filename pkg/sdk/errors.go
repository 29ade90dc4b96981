package docqa

import "github.com/kailas-cloud/docqa/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput      = domain.ErrInvalidInput
	ErrVectorDimMismatch = domain.ErrVectorDimMismatch
	ErrEmbeddingService  = domain.ErrEmbeddingService
	ErrIndexUnavailable  = domain.ErrIndexUnavailable
	ErrAnswerService     = domain.ErrAnswerService
	ErrNoRelevantContent = domain.ErrNoRelevantContent
)
