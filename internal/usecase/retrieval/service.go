package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	"github.com/kailas-cloud/docqa/internal/domain/entry"
	"github.com/kailas-cloud/docqa/internal/metrics"
)

// DefaultBatchSize is the number of chunks embedded per request during ingestion.
const DefaultBatchSize = 64

// DefaultRunTimeout bounds a shared ingestion run, which outlives its callers' contexts.
const DefaultRunTimeout = 5 * time.Minute

// Service ingests a document into the vector index and retrieves the chunk closest to a question.
type Service struct {
	chunker       Chunker
	docEmbedder   domain.Embedder
	queryEmbedder domain.Embedder
	index         Index
	batchSize     int
	runTimeout    time.Duration
	logger        *zap.Logger

	group singleflight.Group

	mu    sync.Mutex
	state State
}

// New creates a retrieval service. queryEmbedder may be nil to reuse docEmbedder.
func New(c Chunker, docEmbedder, queryEmbedder domain.Embedder, idx Index, logger *zap.Logger) *Service {
	if queryEmbedder == nil {
		queryEmbedder = docEmbedder
	}
	return &Service{
		chunker:       c,
		docEmbedder:   docEmbedder,
		queryEmbedder: queryEmbedder,
		index:         idx,
		batchSize:     DefaultBatchSize,
		runTimeout:    DefaultRunTimeout,
		logger:        logger,
	}
}

// WithBatchSize configures how many chunks are embedded per request.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// WithRunTimeout bounds each ingestion run. Zero or negative disables the bound.
func (s *Service) WithRunTimeout(d time.Duration) *Service {
	s.runTimeout = d
	return s
}

// State returns the ingestion state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Refresh marks the document as ingested when the index already holds entries,
// e.g. after a restart against a persistent store.
func (s *Service) Refresh(ctx context.Context) error {
	n, err := s.index.Count(ctx)
	if err != nil {
		return fmt.Errorf("count entries: %w", err)
	}
	if n > 0 {
		s.mu.Lock()
		if s.state == NotIngested {
			s.state = Ingested
		}
		s.mu.Unlock()
	}
	return nil
}

// Ingest chunks text, embeds the chunks that are not stored yet and inserts them.
// Concurrent calls with the same text share one run. The run is detached from the
// callers' cancellation: a caller whose ctx ends stops waiting and gets ctx.Err(),
// the others still receive the result.
//
// An embedding failure aborts the run. Upsert failures are isolated per chunk
// (*domain.ChunkError) and returned joined once every other chunk has been processed.
func (s *Service) Ingest(ctx context.Context, text string) (IngestResult, error) {
	sum := sha256.Sum256([]byte(text))
	runCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(hex.EncodeToString(sum[:]), func() (any, error) {
		if s.runTimeout <= 0 {
			return s.ingest(runCtx, text)
		}
		tctx, cancel := context.WithTimeout(runCtx, s.runTimeout)
		defer cancel()
		return s.ingest(tctx, text)
	})

	select {
	case <-ctx.Done():
		return IngestResult{}, fmt.Errorf("ingest: %w", ctx.Err())
	case r := <-ch:
		if r.Shared {
			s.logger.Debug("Ingestion shared with a concurrent caller")
		}
		res, _ := r.Val.(IngestResult)
		return res, r.Err
	}
}

func (s *Service) ingest(ctx context.Context, text string) (IngestResult, error) {
	start := time.Now()
	defer func() { metrics.IngestDuration.Observe(time.Since(start).Seconds()) }()

	chunks := s.chunker.Chunk(text)
	res := IngestResult{Chunks: len(chunks)}
	prev := s.begin()
	if len(chunks) == 0 {
		s.logger.Info("Document produced no chunks")
		s.settle(prev, res)
		return res, nil
	}

	todo, err := s.pending(ctx, chunks)
	if err != nil {
		s.settle(prev, res)
		return res, fmt.Errorf("ingest: %w", err)
	}
	res.Existing = len(chunks) - len(todo)
	metrics.ChunksIndexedTotal.WithLabelValues("existing").Add(float64(res.Existing))

	var upsertErrs []error
	for off := 0; off < len(todo); off += s.batchSize {
		batch := todo[off:min(off+s.batchSize, len(todo))]

		vectors, err := s.embed(ctx, batch)
		if err != nil {
			s.settle(prev, res)
			embedErr := fmt.Errorf("ingest: embed chunks %s..%s: %w", batch[0].ID(), batch[len(batch)-1].ID(), err)
			return res, errors.Join(append([]error{embedErr}, upsertErrs...)...)
		}

		for i, c := range batch {
			created, err := s.upsert(ctx, c, vectors[i])
			switch {
			case err != nil:
				res.Failed++
				metrics.ChunksIndexedTotal.WithLabelValues("failed").Inc()
				s.logger.Warn("Chunk upsert failed", zap.String("chunk_id", c.ID()), zap.Error(err))
				upsertErrs = append(upsertErrs, &domain.ChunkError{ChunkID: c.ID(), Err: err})
			case created:
				res.Created++
				metrics.ChunksIndexedTotal.WithLabelValues("created").Inc()
			default:
				// stored by a concurrent writer after the Missing check
				res.Existing++
				metrics.ChunksIndexedTotal.WithLabelValues("existing").Inc()
			}
		}
	}

	s.settle(prev, res)

	s.logger.Info("Document ingested",
		zap.Int("chunks", res.Chunks),
		zap.Int("created", res.Created),
		zap.Int("existing", res.Existing),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", time.Since(start)),
	)

	return res, errors.Join(upsertErrs...)
}

// pending returns the chunks whose ids are not in the index yet.
func (s *Service) pending(ctx context.Context, chunks []chunk.Chunk) ([]chunk.Chunk, error) {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID()
	}
	missing, err := s.index.Missing(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check stored chunks: %w", err)
	}

	want := make(map[string]struct{}, len(missing))
	for _, id := range missing {
		want[id] = struct{}{}
	}
	todo := make([]chunk.Chunk, 0, len(missing))
	for _, c := range chunks {
		if _, ok := want[c.ID()]; ok {
			todo = append(todo, c)
		}
	}
	return todo, nil
}

func (s *Service) embed(ctx context.Context, batch []chunk.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text()
	}
	res, err := domain.EmbedTexts(ctx, s.docEmbedder, texts)
	if err != nil {
		return nil, err
	}
	return res.Embeddings, nil
}

func (s *Service) upsert(ctx context.Context, c chunk.Chunk, vec []float32) (bool, error) {
	e, err := entry.New(c, vec)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
	}
	return s.index.Upsert(ctx, e)
}

// AnswerContext returns the stored chunk closest to question.
func (s *Service) AnswerContext(ctx context.Context, question string) (entry.Neighbor, error) {
	if strings.TrimSpace(question) == "" {
		return entry.Neighbor{}, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}

	res, err := s.queryEmbedder.Embed(ctx, question)
	if err != nil {
		metrics.RetrievalQueriesTotal.WithLabelValues("error").Inc()
		return entry.Neighbor{}, fmt.Errorf("embed question: %w", err)
	}

	neighbors, err := s.index.Nearest(ctx, res.Embedding, 1)
	if err != nil {
		metrics.RetrievalQueriesTotal.WithLabelValues("error").Inc()
		return entry.Neighbor{}, fmt.Errorf("nearest chunk: %w", err)
	}
	if len(neighbors) == 0 {
		metrics.RetrievalQueriesTotal.WithLabelValues("no_content").Inc()
		return entry.Neighbor{}, domain.ErrNoRelevantContent
	}

	metrics.RetrievalQueriesTotal.WithLabelValues("hit").Inc()
	return neighbors[0], nil
}

// begin moves to Ingesting unless the document is already available.
func (s *Service) begin() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	if prev != Ingested {
		s.state = Ingesting
	}
	return prev
}

// settle records the outcome of a run that started from prev.
func (s *Service) settle(prev State, res IngestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case res.Stored() > 0 || prev == Ingested:
		s.state = Ingested
	case prev == Ingesting:
		// another run is still in flight
	case res.Chunks == 0:
		// nothing to store is a completed ingestion
		s.state = Ingested
	default:
		s.state = NotIngested
	}
}
