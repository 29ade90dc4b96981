package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/logger"
	answeruc "github.com/kailas-cloud/docqa/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/docqa/internal/usecase/health"
	"github.com/kailas-cloud/docqa/internal/usecase/retrieval"
)

// DefaultMaxBodyBytes limits request bodies when Options.MaxBodyBytes is unset.
const DefaultMaxBodyBytes int64 = 1 << 20

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string) (answeruc.Answer, error)
}

// Ingester indexes documents.
type Ingester interface {
	Ingest(ctx context.Context, text string) (retrieval.IngestResult, error)
	State() retrieval.State
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Options configure the HTTP server.
type Options struct {
	MaxBodyBytes int64
	// StartupDocument is ingested before answering when nothing is indexed yet.
	// Empty disables ingestion on ask.
	StartupDocument string
}

// Server serves the question answering API.
type Server struct {
	asker         Asker
	ingester      Ingester
	health        HealthChecker
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(asker Asker, ingester Ingester, health HealthChecker, opts Options, logger *zap.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Server{
		asker:         asker,
		ingester:      ingester,
		health:        health,
		opts:          opts,
		logger:        logger,
		errorHandlers: defaultErrorHandlers,
	}
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	UserName string `json:"user_name"`
	Question string `json:"question"`
}

// AskResponse is the reply of POST /ask.
type AskResponse struct {
	Answer   string  `json:"answer"`
	ChunkID  string  `json:"chunk_id"`
	Distance float64 `json:"distance"`
	Cached   bool    `json:"cached"`
}

// IngestResponse is the reply of POST /documents.
type IngestResponse struct {
	Chunks   int          `json:"chunks"`
	Created  int          `json:"created"`
	Existing int          `json:"existing"`
	Failed   int          `json:"failed"`
	Stored   int          `json:"stored"`
	Errors   []ChunkIssue `json:"errors,omitempty"`
}

// ChunkIssue describes one chunk that could not be stored.
type ChunkIssue struct {
	ChunkID string `json:"chunk_id"`
	Message string `json:"message"`
}

// HealthResponse is the reply of GET /health.
type HealthResponse struct {
	Status         string            `json:"status"`
	Checks         map[string]string `json:"checks"`
	RetrievalState string            `json:"retrieval_state,omitempty"`
}

// Ask handles POST /ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badBody(w, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "question is required")
		return
	}

	ctx := r.Context()
	log := logger.FromContextOr(ctx, s.logger)
	if req.UserName != "" {
		log = log.With(zap.String("user_name", req.UserName))
	}

	s.ingestOnAsk(ctx, log)

	ans, err := s.asker.Ask(ctx, req.Question)
	if err != nil {
		s.handleDomainError(w, log, err)
		return
	}

	log.Debug("Question answered",
		zap.String("chunk_id", ans.ChunkID),
		zap.Float64("distance", ans.Distance),
		zap.Bool("cached", ans.Cached),
	)

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:   ans.Text,
		ChunkID:  ans.ChunkID,
		Distance: ans.Distance,
		Cached:   ans.Cached,
	})
}

// ingestOnAsk indexes the startup document if nothing is indexed yet.
// Failures are logged; the question is still answered from whatever is stored.
func (s *Server) ingestOnAsk(ctx context.Context, log *zap.Logger) {
	if s.opts.StartupDocument == "" || s.ingester.State() == retrieval.Ingested {
		return
	}
	res, err := s.ingester.Ingest(ctx, s.opts.StartupDocument)
	if err != nil {
		log.Warn("Ingestion on ask failed", zap.Int("stored", res.Stored()), zap.Error(err))
	}
}

// IngestDocument handles POST /documents. The body is the plain document text.
func (s *Server) IngestDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.badBody(w, err)
		return
	}

	log := logger.FromContextOr(r.Context(), s.logger)

	res, err := s.ingester.Ingest(r.Context(), string(body))
	resp := IngestResponse{
		Chunks:   res.Chunks,
		Created:  res.Created,
		Existing: res.Existing,
		Failed:   res.Failed,
		Stored:   res.Stored(),
	}
	if err != nil {
		// Partial success is reported in the body; anything else is an error reply.
		if !onlyChunkErrors(err) || resp.Stored == 0 {
			s.handleDomainError(w, log, err)
			return
		}
		log.Warn("Document partially ingested", zap.Int("failed", res.Failed), zap.Error(err))
		for _, ce := range domain.ChunkErrors(err) {
			resp.Errors = append(resp.Errors, ChunkIssue{ChunkID: ce.ChunkID, Message: safeDomainMessage(ce.Err)})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// onlyChunkErrors reports whether err consists solely of per-chunk failures.
func onlyChunkErrors(err error) bool {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if _, ok := e.(*domain.ChunkError); !ok {
				return false
			}
		}
		return true
	}
	_, ok := err.(*domain.ChunkError)
	return ok
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:         string(report.Status),
		Checks:         checks,
		RetrievalState: report.RetrievalState,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) badBody(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
}

func (s *Server) handleDomainError(w http.ResponseWriter, log *zap.Logger, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
