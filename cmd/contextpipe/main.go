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

	"github.com/docuchat/contextpipe/internal/backend"
	"github.com/docuchat/contextpipe/internal/backend/fulltext"
	"github.com/docuchat/contextpipe/internal/backend/keyword"
	"github.com/docuchat/contextpipe/internal/backend/multimodal"
	"github.com/docuchat/contextpipe/internal/backend/vector"
	"github.com/docuchat/contextpipe/internal/backend/web"
	"github.com/docuchat/contextpipe/internal/config"
	"github.com/docuchat/contextpipe/internal/db"
	dbRedis "github.com/docuchat/contextpipe/internal/db/redis"
	"github.com/docuchat/contextpipe/internal/domain"
	logpkg "github.com/docuchat/contextpipe/internal/logger"
	"github.com/docuchat/contextpipe/internal/metrics"
	chiTransport "github.com/docuchat/contextpipe/internal/transport/chi"
	openaiEmb "github.com/docuchat/contextpipe/internal/transport/openai"
	"github.com/docuchat/contextpipe/internal/usecase/assemble"
	"github.com/docuchat/contextpipe/internal/usecase/dedupe"
	"github.com/docuchat/contextpipe/internal/usecase/dispatch"
	healthuc "github.com/docuchat/contextpipe/internal/usecase/health"
	"github.com/docuchat/contextpipe/internal/usecase/merge"
	"github.com/docuchat/contextpipe/internal/usecase/pipeline"
	"github.com/docuchat/contextpipe/internal/usecase/rerank"
	"github.com/docuchat/contextpipe/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting contextpipe API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Strings("backends", cfg.Backends.Enabled),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	queryEmbedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Query.Model,
		Dimensions: cfg.Embedding.Query.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})
	multimodalEmbedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Multimodal.Model,
		Dimensions: cfg.Embedding.Multimodal.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})

	registry := buildRegistry(cfg, store, queryEmbedder, multimodalEmbedder, logger)
	logger.Info("Backends registered", zap.Int("count", len(registry.IDs())))

	priority := registry.Priority

	dispatcher := dispatch.New(
		registry,
		time.Duration(cfg.Backends.TimeoutMs)*time.Millisecond,
		logger,
	)
	merger := merge.New(priority)
	deduper := dedupe.New(dedupe.Config{
		Similarity:  cfg.Pipeline.Dedupe.Similarity,
		ShingleSize: cfg.Pipeline.Dedupe.ShingleSize,
		CacheSize:   cfg.Pipeline.Dedupe.CacheSize,
	}, priority)
	reranker := rerank.New(rerank.Weights{
		Score:     cfg.Pipeline.Rerank.ScoreWeight,
		Agreement: cfg.Pipeline.Rerank.AgreementWeight,
		Relevance: cfg.Pipeline.Rerank.RelevanceWeight,
	}, rerank.NewLexicalScorer(), priority, logger)
	assembler := assemble.New(assemble.Config{
		RelevanceFloor: cfg.Pipeline.Assemble.RelevanceFloor,
		MinFragment:    cfg.Pipeline.Assemble.MinFragment,
	})

	pipe := pipeline.New(dispatcher, merger, deduper, reranker, assembler, logger)

	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(queryEmbedder))

	server := chiTransport.NewServer(pipe, healthSvc, chiTransport.Defaults{
		TopK:        cfg.Pipeline.DefaultTopK,
		TokenBudget: cfg.Pipeline.DefaultBudget,
		DeadlineMs:  cfg.Pipeline.DefaultDeadlineMs,
	}, logger)

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

// buildRegistry wires one adapter per enabled backend.
func buildRegistry(
	cfg config.Config,
	store db.Store,
	queryEmb, mmEmb domain.Embedder,
	logger *zap.Logger,
) *backend.Registry {
	priority := make([]backend.ID, 0, len(cfg.Backends.Priority))
	for _, p := range cfg.Backends.Priority {
		priority = append(priority, backend.ID(p))
	}
	registry := backend.NewRegistry(priority)

	for _, name := range cfg.Backends.Enabled {
		switch backend.ID(name) {
		case backend.Vector:
			registry.Register(vector.New(store, queryEmb, cfg.Backends.Vector.Index, logger))
		case backend.Keyword:
			registry.Register(keyword.New(store, cfg.Backends.Keyword.Index, cfg.Backends.Keyword.Field))
		case backend.Fulltext:
			registry.Register(fulltext.New(store, cfg.Backends.Fulltext.Index, cfg.Backends.Fulltext.Field))
		case backend.Web:
			if cfg.Backends.Web.Endpoint == "" {
				logger.Warn("Web backend enabled without endpoint, skipping")
				continue
			}
			registry.Register(web.New(cfg.Backends.Web.Endpoint, cfg.Backends.Web.APIKey))
		case backend.Multimodal:
			registry.Register(multimodal.New(store, mmEmb, cfg.Backends.Multimodal.Index))
		default:
			logger.Warn("Unknown backend in config, skipping", zap.String("backend", name))
		}
	}
	return registry
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
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

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}
