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

	"github.com/exphub/searchcore/internal/config"
	dbRedis "github.com/exphub/searchcore/internal/db/redis"
	"github.com/exphub/searchcore/internal/domain"
	logpkg "github.com/exphub/searchcore/internal/logger"
	"github.com/exphub/searchcore/internal/metrics"
	"github.com/exphub/searchcore/internal/repository/embcache"
	experimentrepo "github.com/exphub/searchcore/internal/repository/experiment"
	indexrepo "github.com/exphub/searchcore/internal/repository/index"
	chiTransport "github.com/exphub/searchcore/internal/transport/chi"
	"github.com/exphub/searchcore/internal/transport/gemini"
	openaiEmb "github.com/exphub/searchcore/internal/transport/openai"
	analyzeruc "github.com/exphub/searchcore/internal/usecase/analyzer"
	consistencyuc "github.com/exphub/searchcore/internal/usecase/consistency"
	embeddinguc "github.com/exphub/searchcore/internal/usecase/embedding"
	healthuc "github.com/exphub/searchcore/internal/usecase/health"
	indexeruc "github.com/exphub/searchcore/internal/usecase/indexer"
	perspectiveuc "github.com/exphub/searchcore/internal/usecase/perspective"
	searchuc "github.com/exphub/searchcore/internal/usecase/search"
	"github.com/exphub/searchcore/internal/version"
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

	logger.Info("Starting searchcore API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("embedding_driver", cfg.Embedding.Driver),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create search store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Search store not ready", zap.Error(err))
	}
	logger.Info("Connected to search store")

	experiments, err := experimentrepo.Open(cfg.Relational.Path)
	if err != nil {
		logger.Fatal("Failed to open experiment database", zap.Error(err))
	}
	defer func() { _ = experiments.Close() }()

	// Register metrics explicitly (no init())
	metrics.RegisterProviderMetrics()
	metrics.RegisterSearchMetrics()

	// Provider drivers
	baseEmbedder, healthChecker := buildBaseEmbedder(ctx, cfg, logger)
	generator, err := gemini.NewGenerator(ctx, &gemini.GeneratorConfig{
		APIKey: cfg.Generation.APIKey,
		Model:  cfg.Generation.Model,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Failed to create generator", zap.Error(err))
	}

	// Embedder chains — composition root.
	// Query path: cache + retry. Indexing path: additionally paced.
	cached := embcache.New(baseEmbedder, store, cfg.Index.KeyPrefix, metrics.EmbeddingCacheTotal, logger)
	queryEmbedder := embeddinguc.NewRetrying(
		cached, cfg.Embedding.RetryCount,
		time.Duration(cfg.Embedding.RetryDelayMS)*time.Millisecond,
		cfg.Embedding.Driver, logger,
	)
	indexEmbedder := embeddinguc.NewPaced(queryEmbedder,
		time.Duration(cfg.Embedding.PaceDelayMS)*time.Millisecond)

	// Repositories
	idxRepo := indexrepo.New(store, cfg.Index.KeyPrefix, cfg.Embedding.Dimensions).
		WithHNSW(indexrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})

	if err := idxRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure search index", zap.Error(err))
	}

	// Use case services
	analyzerSvc := analyzeruc.New(generator, cfg.Search.WordBoundary, logger)
	perspectiveSvc := perspectiveuc.New(generator, logger)
	indexerSvc := indexeruc.New(idxRepo, experiments, perspectiveSvc, indexEmbedder,
		cfg.Index.ReindexBatch, logger)
	searchSvc := searchuc.New(idxRepo, analyzerSvc, queryEmbedder, searchConfig(cfg.Search), logger)
	consistencySvc := consistencyuc.New(indexerSvc, experiments, idxRepo,
		cfg.Embedding.Dimensions, logger)
	healthSvc := healthuc.New(store, experiments, healthChecker)

	server := chiTransport.NewServer(searchSvc, indexerSvc, consistencySvc, healthSvc, experiments, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Mount(r)

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

// buildBaseEmbedder selects the provider driver. The OpenAI driver exposes a
// free health probe; the Gemini driver does not, so its checker is nil.
func buildBaseEmbedder(
	ctx context.Context, cfg config.Config, logger *zap.Logger,
) (domain.Embedder, healthuc.EmbeddingChecker) {
	switch cfg.Embedding.Driver {
	case "openai":
		emb := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     logger,
		})
		return emb, emb
	case "gemini", "":
		emb, err := gemini.NewEmbedder(ctx, &gemini.EmbedderConfig{
			APIKey:     cfg.Embedding.APIKey,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     logger,
		})
		if err != nil {
			logger.Fatal("Failed to create gemini embedder", zap.Error(err))
		}
		return emb, nil
	default:
		logger.Fatal("Unknown embedding driver", zap.String("driver", cfg.Embedding.Driver))
		return nil, nil
	}
}

func searchConfig(s config.SearchConfig) searchuc.Config {
	return searchuc.Config{
		FloorNatural:    s.FloorNatural,
		FloorKeyword:    s.FloorKeyword,
		FloorTag:        s.FloorTag,
		KNNK:            s.KNNK,
		KNNPool:         s.KNNPool,
		AuxKNNK:         s.AuxKNNK,
		AuxWeight:       s.AuxWeight,
		SolutionWeight:  s.SolutionWeight,
		SupportWeight:   s.SupportWeight,
		KeywordBoost:    s.KeywordBoost,
		RawBoost:        s.RawBoost,
		CandidateWindow: s.CandidateWindow,
		DefaultLimit:    s.DefaultLimit,
		MaxLimit:        s.MaxLimit,
	}
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
