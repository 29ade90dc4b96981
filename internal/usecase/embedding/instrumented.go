package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// DefaultMaxAPIBatchSize: максимальный размер батча для одного API-запроса.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEmbedder wraps Embedder with logging, sub-batching and a dimension check.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner     domain.Embedder
	provider  string
	model     string
	dims      int
	batchSize int
	logger    *zap.Logger
}

// Options configure an InstrumentedEmbedder.
type Options struct {
	Provider   string
	Model      string
	Dimensions int // 0 disables the check
	BatchSize  int // texts per upstream request; 0 means DefaultMaxAPIBatchSize
}

// NewInstrumentedEmbedder wraps an embedder with observability.
func NewInstrumentedEmbedder(inner domain.Embedder, opts Options, logger *zap.Logger) *InstrumentedEmbedder {
	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > DefaultMaxAPIBatchSize {
		batchSize = DefaultMaxAPIBatchSize
	}
	return &InstrumentedEmbedder{
		inner:     inner,
		provider:  opts.Provider,
		model:     opts.Model,
		dims:      opts.Dimensions,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Embed delegates to the inner embedder and validates the vector size.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	if err := p.checkDims(0, result.Embedding); err != nil {
		return domain.EmbeddingResult{}, err
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEmbed разбивает тексты на sub-batches и делегирует inner. Order is preserved.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()

	result, err := p.embedChunked(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

func (p *InstrumentedEmbedder) embedChunked(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	allEmbeddings := make([][]float32, 0, len(texts))
	var totalPrompt, totalTokens int

	for offset := 0; offset < len(texts); offset += p.batchSize {
		end := min(offset+p.batchSize, len(texts))
		sub := texts[offset:end]

		subResult, err := domain.EmbedTexts(ctx, p.inner, sub)
		if err != nil {
			p.logger.Error("Batch embedding request failed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(sub)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed [%d:%d]: %w", offset, end, err)
		}

		for i, vec := range subResult.Embeddings {
			if err := p.checkDims(offset+i, vec); err != nil {
				return domain.BatchEmbeddingResult{}, err
			}
		}

		allEmbeddings = append(allEmbeddings, subResult.Embeddings...)
		totalPrompt += subResult.PromptTokens
		totalTokens += subResult.TotalTokens
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   allEmbeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

// checkDims rejects vectors the index could not store. The provider is at fault,
// so the error carries both sentinels.
func (p *InstrumentedEmbedder) checkDims(i int, vec []float32) error {
	if p.dims <= 0 || len(vec) == p.dims {
		return nil
	}
	return fmt.Errorf("%w: %w: text %d has %d dimensions, want %d",
		domain.ErrEmbeddingService, domain.ErrVectorDimMismatch, i, len(vec), p.dims)
}
