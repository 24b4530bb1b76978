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

	"github.com/kailas-cloud/querydex/internal/config"
	dbRedis "github.com/kailas-cloud/querydex/internal/db/redis"
	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	"github.com/kailas-cloud/querydex/internal/domain/mapping"
	logpkg "github.com/kailas-cloud/querydex/internal/logger"
	"github.com/kailas-cloud/querydex/internal/metrics"
	mappingrepo "github.com/kailas-cloud/querydex/internal/repository/mapping"
	schemarepo "github.com/kailas-cloud/querydex/internal/repository/schema"
	chiTransport "github.com/kailas-cloud/querydex/internal/transport/chi"
	"github.com/kailas-cloud/querydex/internal/transport/essearch"
	openaiLLM "github.com/kailas-cloud/querydex/internal/transport/openai"
	analyzeuc "github.com/kailas-cloud/querydex/internal/usecase/analyze"
	"github.com/kailas-cloud/querydex/internal/usecase/answercache"
	compareuc "github.com/kailas-cloud/querydex/internal/usecase/compare"
	compileuc "github.com/kailas-cloud/querydex/internal/usecase/compile"
	healthuc "github.com/kailas-cloud/querydex/internal/usecase/health"
	registryuc "github.com/kailas-cloud/querydex/internal/usecase/registry"
	resolveuc "github.com/kailas-cloud/querydex/internal/usecase/resolve"
	searchuc "github.com/kailas-cloud/querydex/internal/usecase/search"
	"github.com/kailas-cloud/querydex/internal/version"
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

	logger.Info("Starting querydex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("backend_url", cfg.SearchBackend.BaseURL),
		zap.Bool("compiler_enabled", cfg.Compiler.Enabled),
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
	metrics.RegisterQueryMetrics()

	// Field registry over persistent mappings
	mappingRepo := mappingrepo.New(store, cfg.Storage.KeyPrefix)
	seeded, err := mappingRepo.Seed(ctx, systemMappings())
	if err != nil {
		logger.Fatal("Failed to seed system mappings", zap.Error(err))
	}
	if seeded > 0 {
		logger.Info("Seeded system mappings", zap.Int("count", seeded))
	}

	reg := registryuc.New(mappingRepo, metrics.RegistryRefreshesTotal, logger)
	if err := reg.RefreshCache(ctx); err != nil {
		// Fail open: resolution degrades to pattern inference.
		logger.Warn("Registry cache load failed", zap.Error(err))
	}

	schemas := schemarepo.New(store, cfg.Storage.KeyPrefix, logger)
	if err := schemas.Refresh(ctx); err != nil {
		logger.Warn("Template metadata load failed", zap.Error(err))
	}

	resolver := resolveuc.New(reg)
	analyzer := analyzeuc.New(analyzeConfig(cfg.Analyze))

	backend := essearch.New(&essearch.Config{
		BaseURL:      cfg.SearchBackend.BaseURL,
		APIKey:       cfg.SearchBackend.APIKey,
		Timeout:      time.Duration(cfg.SearchBackend.TimeoutSec) * time.Second,
		MaxRetries:   cfg.SearchBackend.MaxRetries,
		RetryBackoff: time.Duration(cfg.SearchBackend.RetryBackoffMS) * time.Millisecond,
		Logger:       logger,
	})

	// Pass nil interface (not typed nil pointer!) when the compiler is
	// disabled. Go gotcha: (*openaiLLM.Compiler)(nil) wrapped in an
	// interface != nil.
	var escalator compileuc.Escalator
	var compilerCheck healthuc.CompilerChecker
	if cfg.Compiler.Enabled {
		llm := openaiLLM.NewCompiler(&openaiLLM.Config{
			APIKey:        cfg.Compiler.APIKey,
			BaseURL:       cfg.Compiler.BaseURL,
			Model:         cfg.Compiler.Model,
			MaxTokens:     cfg.Compiler.MaxTokens,
			RatePerMinute: cfg.Compiler.RatePerMinute,
			Logger:        logger,
		})
		escalator = llm
		compilerCheck = llm
		logger.Info("LLM compiler enabled", zap.String("model", cfg.Compiler.Model))
	}

	compiler := compileuc.New(
		compileConfig(cfg.Compile), analyzer, resolver, escalator,
		metrics.CompileOutcomesTotal, logger,
	)

	cache := answercache.New(answercache.Config{
		MaxEntries:       cfg.Cache.MaxEntries,
		TTL:              time.Duration(cfg.Cache.TTLSec) * time.Second,
		EvictionFraction: cfg.Cache.EvictionFraction,
	}, metrics.AnswerCacheTotal, logger)

	searchSvc := searchuc.New(compiler, backend, schemas, nil, cache, logger)
	compareSvc := compareuc.New(resolver, backend, schemas, logger)
	healthSvc := healthuc.New(store, backend, compilerCheck)

	server := chiTransport.NewServer(
		analyzer, compiler, searchSvc, compareSvc, reg, cache, healthSvc,
		schemas, schemas, logger,
	)

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

// systemMappings is the seed set of canonical categories. Written only
// when missing, so operator-added aliases survive restarts.
func systemMappings() []mapping.Mapping {
	specs := []struct {
		name    string
		agg     analysis.AggregationType
		aliases []string
	}{
		{"amount", analysis.AggSum, []string{"total", "cost", "price", "value", "sum"}},
		{"date", analysis.AggDateHistogram, []string{"when", "day"}},
		{"start_date", "", []string{"from_date", "begin_date", "effective_date"}},
		{"end_date", "", []string{"due_date", "until_date", "expiry_date"}},
		{"entity_name", analysis.AggCardinality, []string{"vendor", "client", "customer", "supplier", "company"}},
		{"status", analysis.AggTerms, []string{"state"}},
	}

	out := make([]mapping.Mapping, 0, len(specs))
	for _, s := range specs {
		m, err := mapping.New(s.name, nil, s.agg, s.aliases, true)
		if err != nil {
			panic("invalid system mapping " + s.name + ": " + err.Error())
		}
		out = append(out, m)
	}
	return out
}

func analyzeConfig(c config.AnalyzeConfig) analyzeuc.Config {
	cfg := analyzeuc.DefaultConfig()
	if c.BaseConfidence > 0 {
		cfg.BaseConfidence = c.BaseConfidence
	}
	if c.IntentWeight > 0 {
		cfg.IntentWeight = c.IntentWeight
	}
	if c.FilterWeight > 0 {
		cfg.FilterWeight = c.FilterWeight
	}
	if c.AggregationWeight > 0 {
		cfg.AggregationWeight = c.AggregationWeight
	}
	if c.SortWeight > 0 {
		cfg.SortWeight = c.SortWeight
	}
	if c.AmbiguityPenalty > 0 {
		cfg.AmbiguityPenalty = c.AmbiguityPenalty
	}
	if c.FullTextMinWords > 0 {
		cfg.FullTextMinWords = c.FullTextMinWords
	}
	return cfg
}

func compileConfig(c config.CompileConfig) compileuc.Config {
	cfg := compileuc.DefaultConfig()
	if c.EscalationThreshold > 0 {
		cfg.EscalationThreshold = c.EscalationThreshold
	}
	if c.MaxSimpleAggregations > 0 {
		cfg.MaxSimpleAggregations = c.MaxSimpleAggregations
	}
	return cfg
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

			// Canonical log line, one line per request
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
