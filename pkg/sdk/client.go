package docqa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/docqa/internal/db/redis"
	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	"github.com/kailas-cloud/docqa/internal/domain/entry"
	"github.com/kailas-cloud/docqa/internal/domain/metric"
	"github.com/kailas-cloud/docqa/internal/metrics"
	"github.com/kailas-cloud/docqa/internal/repository/answercache"
	"github.com/kailas-cloud/docqa/internal/repository/chunkindex"
	"github.com/kailas-cloud/docqa/internal/repository/memindex"
	openaiTransport "github.com/kailas-cloud/docqa/internal/transport/openai"
	answeruc "github.com/kailas-cloud/docqa/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/docqa/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/docqa/internal/usecase/health"
	"github.com/kailas-cloud/docqa/internal/usecase/retrieval"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "docqa:"
	defaultEmbeddingModel   = "text-embedding-3-small"
	defaultAnswerModel      = "gpt-4o-mini"
	defaultAnswerMaxTokens  = 50
	defaultAnswerTemp       = 0.7
	defaultProviderTimeout  = 30 * time.Second
)

// Внутренние интерфейсы для подмены в тестах.
type retrievalUseCase interface {
	Ingest(ctx context.Context, text string) (retrieval.IngestResult, error)
	State() retrieval.State
	AnswerContext(ctx context.Context, question string) (entry.Neighbor, error)
}

type answerUseCase interface {
	Ask(ctx context.Context, question string) (answeruc.Answer, error)
}

// index is a vector index the client can prepare and probe.
type index interface {
	retrieval.Index
	EnsureIndex(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Client is the docqa SDK entry point.
type Client struct {
	store        *dbRedis.Store // nil for the memory driver
	retrievalSvc retrievalUseCase
	answerSvc    answerUseCase
	healthSvc    healthUseCase
	obs          *observer
}

// IngestResult says what happened to each chunk of an ingested document.
type IngestResult struct {
	Chunks   int
	Created  int
	Existing int
	Failed   int
	// FailedChunks lists the chunks that could not be stored.
	FailedChunks []ChunkFailure
}

// Stored is the number of chunks now available for retrieval.
func (r IngestResult) Stored() int { return r.Created + r.Existing }

// ChunkFailure ties a storage error to a chunk id.
type ChunkFailure struct {
	ChunkID string
	Err     error
}

// Answer is a phrased reply with the chunk it was grounded on.
type Answer struct {
	Text     string
	ChunkID  string
	Distance float64
	Cached   bool
}

// Passage is the stored chunk closest to a question.
type Passage struct {
	ChunkID  string
	Text     string
	Distance float64
}

// New creates a docqa Client and prepares the vector index.
// The provided context is used for the readiness check and index creation.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		keyPrefix:        defaultKeyPrefix,
		vectorDimensions: domain.DefaultVectorConfig().Dimensions,
		distance:         string(metric.Cosine),
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("docqa: storage required (use WithValkey, WithRedis or WithMemory)")
	}
	if cfg.driver != "memory" && len(cfg.addrs) == 0 {
		return nil, errors.New("docqa: database address required")
	}

	vec, err := vectorConfig(cfg)
	if err != nil {
		return nil, err
	}

	idx, store, err := createIndex(cfg, vec)
	if err != nil {
		return nil, err
	}

	if store != nil {
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("docqa: database not ready: %w", err)
		}
	}
	if err := idx.EnsureIndex(ctx); err != nil {
		closeStore(store)
		return nil, fmt.Errorf("docqa: ensure index: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	c, err := wireClient(ctx, cfg, vec, idx, store, obs)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	return c, nil
}

func vectorConfig(cfg *clientConfig) (domain.VectorConfig, error) {
	m, err := metric.Parse(cfg.distance)
	if err != nil {
		return domain.VectorConfig{}, fmt.Errorf("docqa: %w", err)
	}
	vec := domain.DefaultVectorConfig()
	vec.Dimensions = cfg.vectorDimensions
	vec.Distance = m
	if cfg.hnswM > 0 {
		vec.HNSWM = cfg.hnswM
	}
	if cfg.hnswEFConstruct > 0 {
		vec.HNSWEFConstruction = cfg.hnswEFConstruct
	}
	if err := vec.Validate(); err != nil {
		return domain.VectorConfig{}, fmt.Errorf("docqa: %w", err)
	}
	return vec, nil
}

func createIndex(cfg *clientConfig, vec domain.VectorConfig) (index, *dbRedis.Store, error) {
	var flavor dbRedis.Flavor
	switch cfg.driver {
	case "memory":
		return memindex.New(vec.Dimensions, vec.Distance), nil, nil
	case "valkey":
		flavor = dbRedis.FlavorValkey
	case "redis":
		flavor = dbRedis.FlavorRedis
	default:
		return nil, nil, fmt.Errorf("docqa: unknown driver %q", cfg.driver)
	}

	s, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
		Flavor:   flavor,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("docqa: create %s store: %w", cfg.driver, err)
	}
	idx := chunkindex.New(s, chunkindex.Options{
		KeyPrefix: cfg.keyPrefix,
		Vector:    vec,
		Flat:      cfg.flat,
	})
	return idx, s, nil
}

func wireClient(
	ctx context.Context,
	cfg *clientConfig,
	vec domain.VectorConfig,
	idx index,
	store *dbRedis.Store,
	obs *observer,
) (*Client, error) {
	nop := zap.NewNop()

	var base domain.Embedder = &noopEmbedder{}
	var embCheck healthuc.EmbeddingChecker
	switch {
	case cfg.embedder != nil:
		base = &embedderAdapter{inner: cfg.embedder}
	case cfg.openAI != nil:
		oe := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.openAI.apiKey,
			BaseURL:    cfg.openAI.baseURL,
			Model:      defaultEmbeddingModel,
			Dimensions: vec.Dimensions,
			Provider:   "openai",
			Timeout:    defaultProviderTimeout,
			Logger:     nop,
		})
		base = oe
		embCheck = oe
	}
	embedder := embeddinguc.NewInstrumentedEmbedder(base, embeddinguc.Options{
		Provider:   "sdk",
		Model:      defaultEmbeddingModel,
		Dimensions: vec.Dimensions,
	}, nop)

	var answerer answeruc.Answerer = &noopAnswerer{}
	switch {
	case cfg.answerer != nil:
		answerer = &answererAdapter{inner: cfg.answerer}
	case cfg.openAI != nil:
		answerer = openaiTransport.NewAnswerer(&openaiTransport.AnswererConfig{
			APIKey:      cfg.openAI.apiKey,
			BaseURL:     cfg.openAI.baseURL,
			Model:       defaultAnswerModel,
			MaxTokens:   defaultAnswerMaxTokens,
			Temperature: defaultAnswerTemp,
			Timeout:     defaultProviderTimeout,
			Logger:      nop,
		})
	}

	chunker, err := chunk.NewChunker(cfg.boundary)
	if err != nil {
		return nil, fmt.Errorf("docqa: %w", err)
	}

	retrievalSvc := retrieval.New(chunker, embedder, embedder, idx, nop)
	if cfg.batchSize > 0 {
		retrievalSvc = retrievalSvc.WithBatchSize(cfg.batchSize)
	}
	if err := retrievalSvc.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("docqa: read index state: %w", err)
	}

	// nil interface, not a typed nil *answercache.Cache
	var memo answeruc.Memo
	if cfg.answerTTL > 0 && store != nil {
		memo = answercache.New(store, cfg.keyPrefix, cfg.answerTTL, metrics.AnswerCacheTotal, nop)
	}

	return &Client{
		store:        store,
		retrievalSvc: retrievalSvc,
		answerSvc:    answeruc.New(retrievalSvc, answerer, memo),
		healthSvc:    healthuc.New(idx, embCheck, retrievalSvc, nop),
		obs:          obs,
	}, nil
}

func closeStore(s *dbRedis.Store) {
	if s != nil {
		s.Close()
	}
}

// Close releases all resources.
func (c *Client) Close() {
	closeStore(c.store)
}

// Ingest splits text into chunks and stores the ones not stored yet.
// Per-chunk failures are reported in IngestResult.FailedChunks and joined into err;
// chunks that were stored stay stored.
func (c *Client) Ingest(ctx context.Context, text string) (_ IngestResult, err error) {
	start := time.Now()
	res, err := c.retrievalSvc.Ingest(ctx, text)
	c.obs.observeIngest(start, res, err)

	out := IngestResult{
		Chunks:   res.Chunks,
		Created:  res.Created,
		Existing: res.Existing,
		Failed:   res.Failed,
	}
	for _, ce := range domain.ChunkErrors(err) {
		out.FailedChunks = append(out.FailedChunks, ChunkFailure{ChunkID: ce.ChunkID, Err: ce.Err})
	}
	if err != nil {
		return out, fmt.Errorf("ingest: %w", err)
	}
	return out, nil
}

// Ask answers question from the closest stored chunk.
// ErrNoRelevantContent means nothing has been ingested yet.
func (c *Client) Ask(ctx context.Context, question string) (_ Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	a, err := c.answerSvc.Ask(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return Answer{Text: a.Text, ChunkID: a.ChunkID, Distance: a.Distance, Cached: a.Cached}, nil
}

// Retrieve returns the stored chunk closest to question without calling the answer model.
func (c *Client) Retrieve(ctx context.Context, question string) (_ Passage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("retrieve", start, err) }()

	n, err := c.retrievalSvc.AnswerContext(ctx, question)
	if err != nil {
		return Passage{}, fmt.Errorf("retrieve: %w", err)
	}
	return Passage{ChunkID: n.ChunkID, Text: n.Text, Distance: n.Distance}, nil
}

// State reports whether a document is available: "not_ingested", "ingesting" or "ingested".
func (c *Client) State() string {
	return c.retrievalSvc.State().String()
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts)
	}
	r, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// answererAdapter marks public Answerer failures as answer service errors.
type answererAdapter struct {
	inner Answerer
}

func (a *answererAdapter) Answer(ctx context.Context, question, passage string) (string, error) {
	text, err := a.inner.Answer(ctx, question, passage)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrAnswerService, err)
	}
	return text, nil
}

// noopEmbedder returns an error on Embed call (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf(
		"%w: embedder not configured (use WithEmbedder or WithOpenAI)", domain.ErrEmbeddingService,
	)
}

// noopAnswerer returns an error on Answer call (used when no answerer configured).
type noopAnswerer struct{}

func (noopAnswerer) Answer(_ context.Context, _, _ string) (string, error) {
	return "", fmt.Errorf(
		"%w: answerer not configured (use WithAnswerer or WithOpenAI)", domain.ErrAnswerService,
	)
}
