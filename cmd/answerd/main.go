package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/answerd/internal/config"
	dbRedis "github.com/kailas-cloud/answerd/internal/db/redis"
	"github.com/kailas-cloud/answerd/internal/domain"
	logpkg "github.com/kailas-cloud/answerd/internal/logger"
	"github.com/kailas-cloud/answerd/internal/metrics"
	"github.com/kailas-cloud/answerd/internal/repository/chunkstore"
	"github.com/kailas-cloud/answerd/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/answerd/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/answerd/internal/transport/openai"
	rerankTransport "github.com/kailas-cloud/answerd/internal/transport/rerank"
	"github.com/kailas-cloud/answerd/internal/usecase/assemble"
	embeddinguc "github.com/kailas-cloud/answerd/internal/usecase/embedding"
	"github.com/kailas-cloud/answerd/internal/usecase/generate"
	healthuc "github.com/kailas-cloud/answerd/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/answerd/internal/usecase/pipeline"
	"github.com/kailas-cloud/answerd/internal/usecase/prompt"
	rerankuc "github.com/kailas-cloud/answerd/internal/usecase/rerank"
	retrievaluc "github.com/kailas-cloud/answerd/internal/usecase/retrieval"
	"github.com/kailas-cloud/answerd/internal/version"
)

func main() {
	// Load configuration based on ENV
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

	logger.Info("Starting answerd API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register domain metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	// Build embedder chain — composition root
	embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("cache_backend", cfg.Embedding.Cache.Backend),
	)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Timeout:     time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		Logger:      logger,
	})

	reranker := buildReranker(cfg, logger)

	chunkRepo := chunkstore.New(store, chunkstore.Config{
		IndexName:           cfg.Index.Name,
		KeyPrefix:           cfg.Index.KeyPrefix,
		SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
	})

	// Create use case services
	retrievalSvc := retrievaluc.New(chunkRepo, logger)
	assembler := assemble.New(cfg.Pipeline.ContextTokenBudget)
	prompts := prompt.New()
	streamer := generate.New(generator)

	pipelineSvc := pipelineuc.New(
		embedder,
		retrievalSvc,
		reranker,
		assembler,
		prompts,
		streamer,
		pipelineuc.Config{
			TopKCandidates: cfg.Pipeline.TopKCandidates,
			TopKFinal:      cfg.Pipeline.TopKFinal,
		},
		logger,
	)

	// Health service
	healthSvc := healthuc.New(store, newProviderHealthChecker(embedder), generator)

	// Create chi server
	server := chiTransport.NewServer(pipelineSvc, healthSvc, logger).WithInfo(chiTransport.ServerInfo{
		Version:         version.Version,
		EmbeddingModel:  cfg.Embedding.Model,
		GenerationModel: cfg.Generation.Model,
	})

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Gateway
func buildEmbedder(cfg config.Config, store *dbRedis.Store, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	ttl := time.Duration(cfg.Embedding.Cache.TTLSec) * time.Second

	var embedder domain.Embedder = base
	switch cfg.Embedding.Cache.Backend {
	case "redis":
		embedder = embcache.New(base, store, cfg.Embedding.Model, ttl, metrics.EmbeddingCacheTotal, logger)
	case "memory":
		embedder = embcache.New(base, embcache.NewMemoryStore(ttl), cfg.Embedding.Model, ttl, metrics.EmbeddingCacheTotal, logger)
	case "off":
	}

	// Gateway applies per-call timeout, one retry and dimension verification (outermost).
	return embeddinguc.NewGateway(embedder, embeddinguc.Config{
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Backoff:    time.Duration(cfg.Embedding.RetryBackoffMs) * time.Millisecond,
	}, logger)
}

// buildReranker selects the rerank strategy. Disabled reranking means every
// answer keeps retrieval order and reports reranked=false.
func buildReranker(cfg config.Config, logger *zap.Logger) rerankuc.Strategy {
	if !cfg.Reranker.Enabled {
		logger.Info("Reranker disabled, using passthrough")
		return rerankuc.NewPassthrough()
	}

	scorer := rerankTransport.NewClient(&rerankTransport.Config{
		URL:     cfg.Reranker.URL,
		Model:   cfg.Reranker.Model,
		Timeout: time.Duration(cfg.Reranker.TimeoutSec) * time.Second,
	})
	logger.Info("Cross-encoder reranker enabled",
		zap.String("url", cfg.Reranker.URL),
		zap.String("model", cfg.Reranker.Model),
	)
	return rerankuc.NewCrossEncoder(scorer, rerankuc.CrossEncoderConfig{
		BatchSize:     cfg.Reranker.BatchSize,
		MaxConcurrent: cfg.Reranker.MaxConcurrent,
	}, logger)
}

// providerHealthChecker wraps domain.Embedder to implement health.ProviderChecker.
type providerHealthChecker struct {
	embedder domain.Embedder
}

func newProviderHealthChecker(embedder domain.Embedder) *providerHealthChecker {
	return &providerHealthChecker{embedder: embedder}
}

func (h *providerHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
