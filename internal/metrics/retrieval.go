package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Retrieval and answering Prometheus metrics.
var (
	ChunksIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks processed by ingestion, by outcome",
		},
		[]string{"result"}, // "created" / "existing" / "failed"
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Document ingestion duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	RetrievalQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_queries_total",
			Help:      "Nearest-chunk lookups, by outcome",
		},
		[]string{"outcome"}, // "hit" / "no_content" / "error"
	)

	AnswerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_requests_total",
			Help:      "Total number of language model answer requests",
		},
		[]string{"model", "status"},
	)

	AnswerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_request_duration_seconds",
			Help:      "Language model answer request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"model"},
	)

	AnswerCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_cache_total",
			Help:      "Answer memo hits and misses",
		},
		[]string{"result"},
	)
)

var registerRetrievalOnce sync.Once

// RegisterRetrievalMetrics registers ingestion, retrieval and answer metrics. Safe to call more than once.
func RegisterRetrievalMetrics() {
	registerRetrievalOnce.Do(func() {
		prometheus.MustRegister(
			ChunksIndexedTotal,
			IngestDuration,
			RetrievalQueriesTotal,
			AnswerRequestsTotal,
			AnswerRequestDuration,
			AnswerCacheTotal,
		)
	})
}
