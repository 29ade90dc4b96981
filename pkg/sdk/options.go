package docqa

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey", "redis" or "memory"
	addrs    []string
	password string

	embedder Embedder
	answerer Answerer
	openAI   *openAIConfig

	keyPrefix        string
	vectorDimensions int
	distance         string
	hnswM            int
	hnswEFConstruct  int
	flat             bool
	boundary         string
	batchSize        int
	answerTTL        time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

type openAIConfig struct {
	apiKey  string
	baseURL string
}

// WithValkey stores chunks in a Valkey instance with valkey-search.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores chunks in a Redis 8+ instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory keeps chunks in process memory. Nothing survives Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
		c.addrs = nil
	})
}

// WithOpenAI uses an OpenAI-compatible API for both embeddings and answers.
// Empty baseURL means api.openai.com. WithEmbedder and WithAnswerer take precedence.
func WithOpenAI(apiKey, baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAI = &openAIConfig{apiKey: apiKey, baseURL: baseURL}
	})
}

// WithEmbedder sets the text embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithAnswerer sets the model that phrases answers. Without it Ask fails; Retrieve still works.
func WithAnswerer(a Answerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.answerer = a
	})
}

// WithKeyPrefix namespaces every stored key. Default: "docqa:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithVectorDimensions sets the embedding dimension. Defaults to 1536 (text-embedding-3-small).
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithDistance selects the distance metric: "cosine" (default), "l2" or "ip".
func WithDistance(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.distance = name
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
		c.flat = false
	})
}

// WithFlat uses an exact FLAT index instead of HNSW.
func WithFlat() Option {
	return optionFunc(func(c *clientConfig) {
		c.flat = true
	})
}

// WithChunkBoundary sets the regexp that separates chunks. Default: blank lines.
func WithChunkBoundary(pattern string) Option {
	return optionFunc(func(c *clientConfig) {
		c.boundary = pattern
	})
}

// WithBatchSize sets how many chunks are embedded and stored per round. Default: 64.
func WithBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = size
	})
}

// WithAnswerCache memoizes answers per (question, chunk) for ttl.
// Needs Valkey or Redis; ignored for the memory driver.
func WithAnswerCache(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.answerTTL = ttl
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts, durations and chunk outcomes)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
