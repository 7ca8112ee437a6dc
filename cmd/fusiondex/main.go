package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/fusiondex/internal/config"
	"github.com/kailas-cloud/fusiondex/internal/db"
	dbMemory "github.com/kailas-cloud/fusiondex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/fusiondex/internal/db/redis"
	"github.com/kailas-cloud/fusiondex/internal/domain"
	logpkg "github.com/kailas-cloud/fusiondex/internal/logger"
	"github.com/kailas-cloud/fusiondex/internal/metrics"
	collectionrepo "github.com/kailas-cloud/fusiondex/internal/repository/collection"
	"github.com/kailas-cloud/fusiondex/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/fusiondex/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/fusiondex/internal/transport/openai"
	batchuc "github.com/kailas-cloud/fusiondex/internal/usecase/batch"
	collectionuc "github.com/kailas-cloud/fusiondex/internal/usecase/collection"
	documentuc "github.com/kailas-cloud/fusiondex/internal/usecase/document"
	embeddinguc "github.com/kailas-cloud/fusiondex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/fusiondex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/fusiondex/internal/usecase/search"
	"github.com/kailas-cloud/fusiondex/internal/vectorindex"
	"github.com/kailas-cloud/fusiondex/internal/version"
)

func main() {
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

	buildVersion, buildCommit := version.Resolve()
	metrics.SetBuildInfo(buildVersion, buildCommit)
	logger.Info("Starting fusiondex server",
		zap.String("version", buildVersion),
		zap.String("commit", buildCommit),
		zap.String("build_date", version.Date),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	store, err := newStore(cfg.Cache)
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Cache not ready", zap.Error(err))
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	var (
		docEmbedder   domain.Embedder
		queryEmbedder domain.Embedder
		embHealth     healthuc.EmbeddingChecker
	)
	if cfg.Embedding.Enabled() {
		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
			Logger:     logger,
		})
		embHealth = base

		limiter := embeddinguc.NewLimiter(cfg.Embedding.RateLimitRPS, cfg.Embedding.RateLimitBurst)
		docEmbedder = buildEmbedder(base, cfg, cfg.Embedding.DocumentInstruction, limiter, store, logger)
		queryEmbedder = buildEmbedder(base, cfg, cfg.Embedding.QueryInstruction, limiter, store, logger)
		logger.Info("Embedders created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	} else {
		logger.Info("Embedding disabled, fields with `embed` will reject documents without vectors")
	}

	collRepo := collectionrepo.New(vectorindex.Config{
		M:               cfg.Index.HNSWM,
		EfConstruction:  cfg.Index.HNSWEFConstruct,
		Ef:              cfg.Index.HNSWEF,
		InitialCapacity: cfg.Index.InitialCapacity,
	})
	defer func() {
		if err := collRepo.Close(); err != nil {
			logger.Error("Failed to close collections", zap.Error(err))
		}
	}()
	prometheus.MustRegister(metrics.NewIndexCollector(collRepo.IndexStats))

	collectionSvc := collectionuc.New(collRepo).WithEmbeddingModel(embedModel(cfg))
	documentSvc := documentuc.New(collRepo, docEmbedder).
		WithPagination(cfg.Index.DefaultPageSize, cfg.Index.MaxPageSize)
	searchSvc := searchuc.New(collRepo, queryEmbedder)
	batchSvc := batchuc.New(documentSvc, collRepo).
		WithMaxBatchSize(cfg.Index.MaxBatchSize).
		WithConcurrency(cfg.Index.ImportConcurrency)
	healthSvc := healthuc.New(store, embHealth)

	server := chiTransport.NewServer(collectionSvc, documentSvc, searchSvc, batchSvc, healthSvc)
	if len(cfg.Auth.APIKeys) > 0 {
		logger.Info("API key authentication enabled", zap.Int("keys", len(cfg.Auth.APIKeys)))
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

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

func newStore(cfg config.CacheConfig) (db.Store, error) {
	switch cfg.Driver {
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		return s, nil
	case "memory":
		s, err := dbMemory.NewStore(cfg.Size)
		if err != nil {
			return nil, fmt.Errorf("memory store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Instrumented -> Cached -> Instruction.
// Cache hits never consume rate limiter tokens.
func buildEmbedder(
	base domain.Embedder,
	cfg config.Config,
	instruction string,
	limiter *rate.Limiter,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = embeddinguc.NewInstrumentedEmbedder(
		base, cfg.Embedding.Provider, cfg.Embedding.Model, limiter, logger,
	)

	embedder = embcache.New(embedder, store, cfg.Embedding.Model,
		time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.EmbeddingCacheTotal, logger)

	// Instruction prefix is outermost so the cache key includes it.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// embedModel is the model collections may name in their embed fields.
func embedModel(cfg config.Config) string {
	if !cfg.Embedding.Enabled() {
		return ""
	}
	return cfg.Embedding.Model
}
