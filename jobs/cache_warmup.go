package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/clientbridge/clientbridge/internal/mediator"
	"github.com/clientbridge/clientbridge/internal/ops"
	"github.com/clientbridge/clientbridge/internal/permissions"
)

// Invoker runs one call through the mediation pipeline.
type Invoker interface {
	Invoke(ctx context.Context, desc mediator.Descriptor, req mediator.Request) (string, error)
}

// warmupCaller is the synthetic identity warmup runs under. It exists only
// inside the worker; the plugin host can never present it.
var warmupCaller = mediator.Caller{ID: "system:warmup", Name: "cache warmup", Role: permissions.RoleAdmin}

// CacheWarmupJob pre-executes cacheable operations for a set of clients so
// the first interactive call of the day lands on a warm cache.
type CacheWarmupJob struct {
	Invoker  Invoker
	Registry *ops.Registry
	Logger   *slog.Logger
}

// NewCacheWarmupJob wires dependencies for the warmup handler.
func NewCacheWarmupJob(invoker Invoker, registry *ops.Registry, logger *slog.Logger) *CacheWarmupJob {
	return &CacheWarmupJob{Invoker: invoker, Registry: registry, Logger: logger}
}

// Handle processes TaskCacheWarmup tasks. Individual operation failures are
// logged and skipped; warmup is best-effort by nature.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoker == nil || j.Registry == nil {
		return errors.New("cache warmup: handler not configured")
	}
	var payload CacheWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	names := payload.Operations
	if len(names) == 0 {
		names = j.Registry.Names()
	}

	warmed := 0
	for _, clientID := range payload.ClientIDs {
		for _, name := range names {
			op, ok := j.Registry.Lookup(name)
			if !ok || !op.Descriptor.Cacheable {
				continue
			}
			args := map[string]any{"client_id": clientID}
			params, target := op.Bind(args)
			req := mediator.Request{Caller: warmupCaller, Args: args, Params: params, ClientID: target}
			if _, err := j.Invoker.Invoke(ctx, op.Descriptor, req); err != nil {
				if j.Logger != nil {
					j.Logger.Warn("warmup call failed",
						slog.String("operation", name),
						slog.String("client_id", clientID),
						slog.Any("error", err))
				}
				continue
			}
			warmed++
		}
	}
	if j.Logger != nil {
		j.Logger.Info("cache warmup finished", slog.Int("clients", len(payload.ClientIDs)), slog.Int("warmed", warmed))
	}
	return nil
}
