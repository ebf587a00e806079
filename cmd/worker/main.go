package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/clientbridge/clientbridge/internal/app"
	"github.com/clientbridge/clientbridge/internal/cache"
	"github.com/clientbridge/clientbridge/internal/mediator"
	"github.com/clientbridge/clientbridge/internal/ops"
	"github.com/clientbridge/clientbridge/internal/permissions"
	"github.com/clientbridge/clientbridge/internal/queries"
	"github.com/clientbridge/clientbridge/internal/store"
	"github.com/clientbridge/clientbridge/jobs"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer func() { _ = redisClient.Close() }()

	catalog, err := queries.Load(cfg.QueriesFile)
	if err != nil {
		logger.Error("load query catalog", slog.Any("error", err))
		os.Exit(1)
	}

	resultCache := cache.New(redisClient, cfg.CacheTTL, logger)
	provider := store.NewProvider(dbpool, store.Config{
		LockTimeout: cfg.LockTimeout,
		MaxRows:     cfg.MaxQueryRows,
	}, logger)
	med := mediator.New(permissions.NewRegistry(), resultCache, provider, catalog, mediator.Config{
		RowLevelSecurity: cfg.RowLevelSecurity,
		RateWindow:       cfg.RateWindow,
		SlowQueryAfter:   cfg.SlowQueryAfter,
	}, logger)
	opsRegistry := ops.NewRegistry(cfg.CacheTTL)

	sweepJob := jobs.NewCacheSweepJob(resultCache, opsRegistry, logger)
	warmupJob := jobs.NewCacheWarmupJob(med, opsRegistry, logger)

	nightlySweep, err := jobs.NewCacheSweepTask(jobs.CacheSweepPayload{})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword},
		Concurrency: cfg.AsynqConcurrency,
		Logger:      logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCacheSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskCacheWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: nightlySweep},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shutdown complete")
}
