package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhilbhutani/brandaudit/internal/analysis"
	"github.com/nikhilbhutani/brandaudit/internal/audit"
	"github.com/nikhilbhutani/brandaudit/internal/cache"
	"github.com/nikhilbhutani/brandaudit/internal/config"
	"github.com/nikhilbhutani/brandaudit/internal/database"
	"github.com/nikhilbhutani/brandaudit/internal/llm"
	"github.com/nikhilbhutani/brandaudit/internal/prompt"
	"github.com/nikhilbhutani/brandaudit/internal/queue"
	"github.com/nikhilbhutani/brandaudit/internal/queue/workers"
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

	// The lock is what keeps two workers off the same audit, so Redis is
	// required here.
	rdb, err := cache.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	sources, err := analysis.LoadSourceConfig(cfg.Audit.SourcesConfigPath)
	if err != nil {
		slog.Error("failed to load source config", "error", err)
		os.Exit(1)
	}

	orchestrator := audit.NewOrchestrator(
		store.New(db),
		prompt.NewService(db),
		cache.NewCache(rdb),
		llm.NewGateway(cfg.LLM),
		analysis.NewAnalyzer(analysis.NewClassifier(sources), analysis.AnalyzerOptions{}),
		audit.DefaultRunOptions(cfg.Audit),
		cfg.Audit.LockTTL,
	)

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ShutdownTimeout: 30 * time.Second,
		},
	)

	registry := queue.NewHandlersRegistry()
	auditWorker := workers.NewAuditWorker(orchestrator)
	registry.Register(queue.TypeAuditRun, asynq.HandlerFunc(auditWorker.ProcessTask))

	if addr := cfg.Worker.MetricsAddr; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("serving worker metrics", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
