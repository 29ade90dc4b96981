package health

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in Report.Checks.
const (
	CheckIndex     = "index"
	CheckEmbedding = "embedding"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status         Status
	Checks         map[string]CheckResult
	RetrievalState string
}

// Service coordinates health checks.
type Service struct {
	index     IndexPinger
	embedding EmbeddingChecker
	state     StateReader
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a Service. embedding and state can be nil.
func New(index IndexPinger, embedding EmbeddingChecker, state StateReader, logger *zap.Logger) *Service {
	return &Service{
		index:     index,
		embedding: embedding,
		state:     state,
		timeout:   DefaultCheckTimeout,
		logger:    logger,
	}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks[CheckIndex] = s.run(ctx, CheckIndex, s.index.Ping)
	if s.embedding != nil {
		checks[CheckEmbedding] = s.run(ctx, CheckEmbedding, s.embedding.HealthCheck)
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	r := Report{Status: status, Checks: checks}
	if s.state != nil {
		r.RetrievalState = s.state.State().String()
	}
	return r
}

func (s *Service) run(ctx context.Context, name string, check func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := check(ctx); err != nil {
		s.logger.Warn("Health check failed", zap.String("component", name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
