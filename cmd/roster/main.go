package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/roster-app/roster/internal/app"
	"github.com/roster-app/roster/internal/auth"
	"github.com/roster-app/roster/internal/observability"
	"github.com/roster-app/roster/internal/persons"
	"github.com/roster-app/roster/internal/platform/cache"
	"github.com/roster-app/roster/internal/platform/db"
	"github.com/roster-app/roster/internal/rbac"
	"github.com/roster-app/roster/internal/shared"
	"github.com/roster-app/roster/jobs"
	"github.com/roster-app/roster/migrations"
)

const shutdownTimeout = 10 * time.Second

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
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("roster exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	if err := db.Migrate(ctx, dbpool, migrations.FS, logger); err != nil {
		return err
	}

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	guard := rbac.NewGuard(metrics)

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	authService := auth.NewService(auth.NewRepository(dbpool), logger, cfg.BcryptCost)
	if err := auth.SeedAdmin(ctx, authService, cfg.AdminPassword, logger); err != nil {
		return err
	}
	sessions := auth.NewSessions(sessionManager, authService, csrfManager, logger)
	authHandler := auth.NewHandler(logger, authService, sessions, sessionManager, cfg.LoginRateLimit)

	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	personService := persons.NewService(persons.NewRepository(dbpool), guard, idempotencyStore, logger)
	personHandler := persons.NewHandler(logger, personService)

	queueOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient, err := jobs.NewClient(queueOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	// Keys left over from downtime are purged without waiting for the cron.
	if _, err := jobClient.EnqueueIdempotencyCleanup(ctx, cfg.IdempotencyRetention); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		logger.Warn("enqueue idempotency cleanup", slog.Any("error", err))
	}

	inspector := asynq.NewInspector(queueOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Sessions:       sessions,
		AuthHandler:    authHandler,
		PersonsHandler: personHandler,
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
		HealthChecks: []app.HealthCheck{
			{Name: "postgres", Check: dbpool.Ping},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
