package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// ErrorCode is the machine-readable error code in ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodePayloadTooLarge        ErrorCode = "payload_too_large"
	CodeNoDocument             ErrorCode = "no_document"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeAnswerProviderError    ErrorCode = "answer_provider_error"
	CodeIndexUnavailable       ErrorCode = "index_unavailable"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// defaultErrorHandlers is ordered: the first match wins.
// Provider faults come before index faults so a provider-side dimension error reads as 502.
var defaultErrorHandlers = []errorHandler{
	sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeBadRequest, "invalid input"),
	sentinelHandler(domain.ErrNoRelevantContent, http.StatusNotFound, CodeNoDocument, "no document available"),
	sentinelHandler(domain.ErrEmbeddingService,
		http.StatusBadGateway, CodeEmbeddingProviderError, domain.ErrEmbeddingService.Error()),
	sentinelHandler(domain.ErrAnswerService,
		http.StatusBadGateway, CodeAnswerProviderError, domain.ErrAnswerService.Error()),
	sentinelHandler(domain.ErrIndexUnavailable,
		http.StatusServiceUnavailable, CodeIndexUnavailable, domain.ErrIndexUnavailable.Error()),
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode, msg string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrNoRelevantContent,
		domain.ErrEmbeddingService,
		domain.ErrAnswerService,
		domain.ErrIndexUnavailable,
		domain.ErrVectorDimMismatch,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
