package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhilbhutani/brandaudit/internal/analysis"
	"github.com/nikhilbhutani/brandaudit/internal/api"
	"github.com/nikhilbhutani/brandaudit/internal/api/handlers"
	"github.com/nikhilbhutani/brandaudit/internal/cache"
	"github.com/nikhilbhutani/brandaudit/internal/config"
	"github.com/nikhilbhutani/brandaudit/internal/database"
	"github.com/nikhilbhutani/brandaudit/internal/generation"
	"github.com/nikhilbhutani/brandaudit/internal/llm"
	"github.com/nikhilbhutani/brandaudit/internal/prompt"
	"github.com/nikhilbhutani/brandaudit/internal/queue"
	"github.com/nikhilbhutani/brandaudit/internal/report"
	"github.com/nikhilbhutani/brandaudit/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db, database.MigrationsFS(cfg.Database.MigrationsPath)); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	// Redis backs the dashboard cache; the API still serves without it.
	var dashboardCache report.Cache
	var redisCheck handlers.Pinger
	rdb, err := cache.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, running without cache", "error", err)
	} else {
		defer rdb.Close()
		c := cache.NewCache(rdb)
		dashboardCache = c
		redisCheck = c
	}

	sources, err := analysis.LoadSourceConfig(cfg.Audit.SourcesConfigPath)
	if err != nil {
		slog.Error("failed to load source config", "error", err)
		os.Exit(1)
	}
	analyzer := analysis.NewAnalyzer(analysis.NewClassifier(sources), analysis.AnalyzerOptions{})

	gateway := llm.NewGateway(cfg.LLM)
	generator := generation.NewGenerator(
		llm.WithTimeout(gateway, cfg.Audit.CallTimeout),
		cfg.Audit.GenerationModel,
		cfg.Audit.Temperature,
	)

	qc := queue.NewClient(cfg.Redis, cfg.Audit.TaskTimeout)
	defer qc.Close()

	st := store.New(db)
	router := api.NewRouter(cfg, api.Deps{
		Store:     st,
		Queue:     qc,
		Reports:   report.NewService(st, dashboardCache, cfg.Audit.TrendAuditLimit, cfg.Audit.DashboardCacheTTL),
		Templates: prompt.NewService(db),
		Analyzer:  analyzer,
		Generator: generator,
		Models:    gateway,
		Health: map[string]handlers.Pinger{
			"postgres": db,
			"redis":    redisCheck,
		},
	})
	handler := router.Setup()

	done := make(chan struct{})
	defer close(done)
	go router.RateLimiter().Cleanup(time.Minute, done)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
