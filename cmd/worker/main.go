package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/harborvet/harborvet/internal/app"
	"github.com/harborvet/harborvet/internal/authz"
	jobmetrics "github.com/harborvet/harborvet/internal/jobs"
	"github.com/harborvet/harborvet/internal/overrides"
	"github.com/harborvet/harborvet/internal/platform/cache"
	"github.com/harborvet/harborvet/internal/platform/db"
	"github.com/harborvet/harborvet/internal/roles"
	"github.com/harborvet/harborvet/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
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

	rolesRepo := roles.NewRepository(pool)
	catalog := authz.NewCatalog(authz.CatalogConfig{
		Store:  rolesRepo,
		Redis:  redisClient,
		Logger: logger,
		TTL:    cfg.RoleCacheTTL,
	})
	go func() {
		if err := catalog.ListenInvalidations(ctx); err != nil && err != context.Canceled {
			logger.Warn("invalidation listener stopped", slog.Any("error", err))
		}
	}()

	overridesService := overrides.NewService(overrides.NewRepository(pool), logger)

	expiryTask, err := jobs.NewOverrideExpiryTask(time.Now().UTC())
	if err != nil {
		logger.Error("build expiry task", slog.Any("error", err))
		os.Exit(1)
	}
	warmTask, err := jobs.NewCacheWarmTask(nil)
	if err != nil {
		logger.Error("build cache warm task", slog.Any("error", err))
		os.Exit(1)
	}

	catalogWarmer := catalogRoleWarmer{catalog: catalog}
	jobMetrics := jobmetrics.NewMetrics(nil)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOverrideExpiry, Handler: jobs.NewOverrideExpiryHandler(overridesService, logger, jobMetrics)},
			{Type: jobs.TaskCacheWarm, Handler: jobs.NewCacheWarmHandler(catalogWarmer, rolesRepo, logger, jobMetrics)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 4 * * *", Task: warmTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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

// catalogRoleWarmer adapts the catalog's error-free Roles to the warm job
// contract.
type catalogRoleWarmer struct {
	catalog *authz.Catalog
}

func (w catalogRoleWarmer) Roles(ctx context.Context, practiceID *int64) ([]authz.Role, error) {
	return w.catalog.Roles(ctx, practiceID), nil
}
