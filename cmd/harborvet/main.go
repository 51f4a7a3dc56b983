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

	"github.com/harborvet/harborvet/internal/app"
	"github.com/harborvet/harborvet/internal/assignments"
	"github.com/harborvet/harborvet/internal/authz"
	"github.com/harborvet/harborvet/internal/observability"
	"github.com/harborvet/harborvet/internal/overrides"
	"github.com/harborvet/harborvet/internal/platform/cache"
	"github.com/harborvet/harborvet/internal/platform/db"
	"github.com/harborvet/harborvet/internal/roles"
	"github.com/harborvet/harborvet/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	rolesRepo := roles.NewRepository(dbpool)
	catalog := authz.NewCatalog(authz.CatalogConfig{
		Store:    rolesRepo,
		Redis:    redisClient,
		Logger:   logger,
		TTL:      cfg.RoleCacheTTL,
		Recorder: metrics,
	})
	go func() {
		if err := catalog.ListenInvalidations(ctx); err != nil && err != context.Canceled {
			logger.Warn("invalidation listener stopped", slog.Any("error", err))
		}
	}()

	assignmentsRepo := assignments.NewRepository(dbpool)
	var assignmentStore authz.AssignmentStore = assignmentsRepo
	if cfg.AssignmentServiceURL != "" {
		assignmentStore = assignments.NewHTTPStore(cfg.AssignmentServiceURL, cfg.AssignmentServiceTimeout)
	}

	overridesRepo := overrides.NewRepository(dbpool)

	resolver := authz.NewResolver(authz.ResolverConfig{
		Assignments: authz.NewAssignmentResolver(assignmentStore, catalog, logger),
		Overrides:   overridesRepo,
		Catalog:     catalog,
		Logger:      logger,
		Recorder:    metrics,
	})
	guard := authz.Middleware{Resolver: resolver, Logger: logger}

	rolesService := roles.NewService(rolesRepo, catalog)
	rolesHandler := roles.NewHandler(logger, rolesService, guard)

	assignmentsService := assignments.NewService(assignmentsRepo)
	assignmentsHandler := assignments.NewHandler(logger, assignmentsService, guard)

	overridesService := overrides.NewService(overridesRepo, logger)
	overridesHandler := overrides.NewHandler(logger, overridesService, guard)

	authzHandler := authz.NewHandler(logger, resolver)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthzHandler:       authzHandler,
		RolesHandler:       rolesHandler,
		AssignmentsHandler: assignmentsHandler,
		OverridesHandler:   overridesHandler,
		JobsHandler:        jobHandler,
		Metrics:            metrics,
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
