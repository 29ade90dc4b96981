package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace          = "docqa"
	embeddingSubsystem = "embedding"
)

// Embedding provider metrics, exported as docqa_embedding_*.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: embeddingSubsystem,
		Name: "requests_total",
		Help: "Embedding API calls by provider, model and status",
	}, []string{"provider", "model", "status"})

	EmbeddingRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: embeddingSubsystem,
		Name:    "request_duration_seconds",
		Help:    "Embedding API call latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider", "model"})

	// type is "prompt" or "total".
	EmbeddingTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: embeddingSubsystem,
		Name: "tokens_total",
		Help: "Tokens reported by the embedding provider",
	}, []string{"provider", "model", "type"})

	EmbeddingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: embeddingSubsystem,
		Name: "errors_total",
		Help: "Failed embedding calls by error class",
	}, []string{"provider", "model", "error_type"})

	// result is "hit" or "miss". Chunk vectors are looked up before the provider is called.
	EmbeddingCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: embeddingSubsystem,
		Name: "cache_total",
		Help: "Embedding cache lookups by result",
	}, []string{"result"})
)

var registerEmbeddingOnce sync.Once

// RegisterEmbeddingMetrics registers the embedding collectors on the default registry.
// Safe to call more than once.
func RegisterEmbeddingMetrics() {
	registerEmbeddingOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
		)
	})
}
