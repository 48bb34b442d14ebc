package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gridscape/gridscape/internal/app"
	"github.com/gridscape/gridscape/internal/grants"
	"github.com/gridscape/gridscape/internal/observability"
	"github.com/gridscape/gridscape/internal/platform/cache"
	"github.com/gridscape/gridscape/internal/platform/db"
	"github.com/gridscape/gridscape/internal/reconcile"
	"github.com/gridscape/gridscape/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	grantsRepo := grants.NewPGRepository(pool)
	grantsService := grants.NewService(grantsRepo, nil, nil)

	reconciler := reconcile.New(reconcile.Config{
		Regions:    grantsService,
		Principals: grantsRepo,
		Interval:   cfg.ReconcilePollInterval,
		Logger:     logger,
	})
	reconciler.Subscribe(reconcile.NewPublisher(redisClient, logger))
	reconciler.Subscribe(reconcile.SubscriberFunc(func(ctx context.Context, change reconcile.Change) {
		metrics.ObserveRegionChanges(len(change.Added), len(change.Removed))
	}))

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRegionReconcile, Handler: jobs.NewRegionReconcileHandler(reconciler, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: fmt.Sprintf("@every %s", cfg.ReconcilePollInterval), Task: jobs.NewRegionReconcileTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
