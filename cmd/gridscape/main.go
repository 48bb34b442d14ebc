package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gridscape/gridscape/internal/app"
	"github.com/gridscape/gridscape/internal/audit"
	"github.com/gridscape/gridscape/internal/authz"
	"github.com/gridscape/gridscape/internal/grants"
	"github.com/gridscape/gridscape/internal/groups"
	"github.com/gridscape/gridscape/internal/observability"
	"github.com/gridscape/gridscape/internal/platform/cache"
	"github.com/gridscape/gridscape/internal/platform/db"
	"github.com/gridscape/gridscape/internal/users"
	"github.com/gridscape/gridscape/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	auditRecorder := audit.NewRecorder(pool, logger)

	permCache := authz.NewCache(redisClient, cfg.PermissionCacheTTL)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)

	groupsRepo := groups.NewRepository(pool)
	groupsService := groups.NewService(groupsRepo, permCache)

	grantsRepo := grants.NewPGRepository(pool)
	grantsService := grants.NewService(grantsRepo, auditRecorder, nil)

	resolver := authz.NewResolver(groupsService, grantsService)
	authzService := authz.NewService(usersService, resolver, permCache, auditRecorder, authz.ServiceConfig{
		AllowTeamOwnership: cfg.AllowTeamOwnership,
	})
	authzService.SetObserver(metrics.ObserveDecision)

	guard := authz.Middleware{Service: authzService, Logger: logger}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Guard:         guard,
		AuthzHandler:  authz.NewHandler(logger, authzService),
		GrantsHandler: grants.NewHandler(logger, grantsService, guard),
		UsersHandler:  users.NewHandler(logger, usersService, authzService, guard),
		GroupsHandler: groups.NewHandler(logger, groupsService, guard),
		JobHandler:    jobs.NewHandler(inspector, logger),
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
