package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals a malformed request (empty question, empty vector, bad k).
	ErrInvalidInput = errors.New("invalid input")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingService signals an embedding provider failure.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrIndexUnavailable signals that the vector index store cannot be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrAnswerService signals a language model failure while phrasing an answer.
	ErrAnswerService = errors.New("answer service error")

	// ErrNoRelevantContent signals that nothing has been indexed yet.
	// Not a service fault: the caller should answer "no document available".
	ErrNoRelevantContent = errors.New("no relevant content")
)

// ChunkError ties an indexing failure to the chunk that caused it.
type ChunkError struct {
	ChunkID string
	Err     error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %s: %v", e.ChunkID, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// ChunkErrors extracts every ChunkError from a (possibly joined) error tree.
func ChunkErrors(err error) []*ChunkError {
	if err == nil {
		return nil
	}
	var out []*ChunkError
	var walk func(error)
	walk = func(e error) {
		if ce, ok := e.(*ChunkError); ok {
			out = append(out, ce)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			if inner := u.Unwrap(); inner != nil {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}
