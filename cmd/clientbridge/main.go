package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/clientbridge/clientbridge/internal/app"
	"github.com/clientbridge/clientbridge/internal/cache"
	"github.com/clientbridge/clientbridge/internal/host"
	"github.com/clientbridge/clientbridge/internal/mediator"
	"github.com/clientbridge/clientbridge/internal/ops"
	"github.com/clientbridge/clientbridge/internal/permissions"
	"github.com/clientbridge/clientbridge/internal/queries"
	"github.com/clientbridge/clientbridge/internal/store"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The cache degrades to a no-op when Redis is down; keep serving.
		logger.Warn("redis unavailable, running without cache and rate limiting", slog.Any("error", err))
		_ = redisClient.Close()
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	catalog, err := queries.Load(cfg.QueriesFile)
	if err != nil {
		logger.Error("load query catalog", slog.Any("error", err))
		os.Exit(1)
	}

	registry := permissions.NewRegistry()
	resultCache := cache.New(redisClient, cfg.CacheTTL, logger)
	provider := store.NewProvider(dbpool, store.Config{
		LockTimeout: cfg.LockTimeout,
		MaxRows:     cfg.MaxQueryRows,
	}, logger)

	med := mediator.New(registry, resultCache, provider, catalog, mediator.Config{
		RowLevelSecurity: cfg.RowLevelSecurity,
		RateWindow:       cfg.RateWindow,
		SlowQueryAfter:   cfg.SlowQueryAfter,
		Singleflight:     cfg.Singleflight,
	}, logger)

	opsRegistry := ops.NewRegistry(cfg.CacheTTL)
	handler := host.NewHandler(logger, med, opsRegistry)

	router := chi.NewRouter()
	for _, mw := range host.MiddlewareStack(host.MiddlewareConfig{
		Logger:     logger,
		TokenHash:  cfg.HostTokenHash,
		RateLimit:  cfg.HostRateLimit,
		RateWindow: cfg.HostRateWindow,
		Production: cfg.IsProduction(),
	}) {
		router.Use(mw)
	}
	handler.Register(router)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppWriteTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
