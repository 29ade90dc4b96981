package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/config"
	dbRedis "github.com/kailas-cloud/docqa/internal/db/redis"
	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	"github.com/kailas-cloud/docqa/internal/domain/metric"
	logpkg "github.com/kailas-cloud/docqa/internal/logger"
	"github.com/kailas-cloud/docqa/internal/metrics"
	"github.com/kailas-cloud/docqa/internal/repository/answercache"
	"github.com/kailas-cloud/docqa/internal/repository/chunkindex"
	"github.com/kailas-cloud/docqa/internal/repository/embcache"
	"github.com/kailas-cloud/docqa/internal/repository/memindex"
	chiTransport "github.com/kailas-cloud/docqa/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/docqa/internal/transport/openai"
	answeruc "github.com/kailas-cloud/docqa/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/docqa/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/docqa/internal/usecase/health"
	"github.com/kailas-cloud/docqa/internal/usecase/retrieval"
	"github.com/kailas-cloud/docqa/internal/version"
)

// index is what the composition root needs from a vector index beyond retrieval.Index.
type index interface {
	retrieval.Index
	EnsureIndex(ctx context.Context) error
	Ping(ctx context.Context) error
}

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docqa API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	ctx := context.Background()

	distance, _ := metric.Parse(cfg.Index.Distance) // checked by config.Validate
	vecCfg := domain.VectorConfig{
		Dimensions:         cfg.Embedding.Dimensions,
		Distance:           distance,
		HNSWM:              cfg.Index.HNSWM,
		HNSWEFConstruction: cfg.Index.HNSWEFConstruct,
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	// Vector index and key-value store
	var (
		idx   index
		store *dbRedis.Store
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		idx = memindex.New(vecCfg.Dimensions, vecCfg.Distance)
		logger.Warn("Using in-memory index, chunks are lost on restart")
	case config.DriverRedis, config.DriverValkey:
		flavor := dbRedis.FlavorRedis
		if cfg.Database.Driver == config.DriverValkey {
			flavor = dbRedis.FlavorValkey
		}
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			Flavor:   flavor,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database")

		idx = chunkindex.New(store, chunkindex.Options{
			KeyPrefix: cfg.Storage.KeyPrefix,
			Vector:    vecCfg,
			Flat:      cfg.Index.Algorithm == "flat",
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}

	if err := idx.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}

	// Embedders
	provider := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	docEmbedder := buildEmbedder(provider, cfg, cfg.Embedding.DocumentInstruction, store, logger)
	queryEmbedder := buildEmbedder(provider, cfg, cfg.Embedding.QueryInstruction, store, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache && store != nil),
	)

	// Answerer
	answerer := openaiTransport.NewAnswerer(&openaiTransport.AnswererConfig{
		APIKey:      cfg.Answer.APIKey,
		BaseURL:     cfg.Answer.BaseURL,
		Model:       cfg.Answer.Model,
		MaxTokens:   cfg.Answer.MaxTokens,
		Temperature: *cfg.Answer.Temperature,
		Timeout:     time.Duration(cfg.Answer.TimeoutSec) * time.Second,
		Logger:      logger,
	})

	var memo answeruc.Memo
	if cfg.AnswerCache.Enabled && store != nil {
		memo = answercache.New(store, cfg.Storage.KeyPrefix,
			time.Duration(cfg.AnswerCache.TTLSec)*time.Second, metrics.AnswerCacheTotal, logger)
	}

	// Use case services
	chunker, err := chunk.NewChunker(cfg.Chunker.Boundary)
	if err != nil {
		logger.Fatal("Invalid chunker boundary", zap.Error(err))
	}
	retrievalSvc := retrieval.New(chunker, docEmbedder, queryEmbedder, idx, logger).
		WithBatchSize(cfg.Retrieval.BatchSize)
	answerSvc := answeruc.New(retrievalSvc, answerer, memo)
	healthSvc := healthuc.New(idx, provider, retrievalSvc, logger)

	if err := retrievalSvc.Refresh(ctx); err != nil {
		logger.Warn("Failed to read index state", zap.Error(err))
	}

	document := loadDocument(cfg.Document.Path, logger)
	if document != "" && retrievalSvc.State() != retrieval.Ingested {
		res, err := retrievalSvc.Ingest(ctx, document)
		if err != nil {
			// Not fatal: ingestion is retried on ask or via POST /documents
			logger.Error("Startup ingestion failed",
				zap.Int("stored", res.Stored()), zap.Int("failed", res.Failed), zap.Error(err))
		}
	}

	opts := chiTransport.Options{MaxBodyBytes: cfg.HTTP.MaxBodyBytes}
	if cfg.Document.IngestOnAsk {
		opts.StartupDocument = document
	}
	server := chiTransport.NewServer(answerSvc, retrievalSvc, healthSvc, opts, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(cfg.Auth.APIKeys),
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	provider *openaiTransport.Embedder,
	cfg config.Config,
	instruction string,
	store *dbRedis.Store,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = provider
	if cfg.Embedding.Cache && store != nil {
		embedder = embcache.New(provider, store, embcache.Options{
			KeyPrefix: cfg.Storage.KeyPrefix,
			Model:     cfg.Embedding.Model,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, embeddinguc.Options{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
	}, logger)

	// Instruction prefix (outermost: cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// loadDocument reads the startup document. A missing path disables startup ingestion.
func loadDocument(path string, logger *zap.Logger) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		logger.Error("Failed to read document", zap.String("path", path), zap.Error(err))
		return ""
	}
	logger.Info("Document loaded", zap.String("path", path), zap.Int("bytes", len(data)))
	return string(data)
}
