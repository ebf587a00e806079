package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/clientbridge/clientbridge/internal/cache"
	"github.com/clientbridge/clientbridge/internal/ops"
)

// CacheSweepJob evicts cached operation results by key pattern so stale
// entries do not outlive data corrections made directly in the store.
type CacheSweepJob struct {
	Cache    *cache.Cache
	Registry *ops.Registry
	Logger   *slog.Logger
}

// NewCacheSweepJob wires dependencies for the sweep handler.
func NewCacheSweepJob(c *cache.Cache, registry *ops.Registry, logger *slog.Logger) *CacheSweepJob {
	return &CacheSweepJob{Cache: c, Registry: registry, Logger: logger}
}

// Handle processes TaskCacheSweep tasks.
func (j *CacheSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("cache sweep: handler not configured")
	}
	var payload CacheSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	patterns := payload.Patterns
	if len(patterns) == 0 && j.Registry != nil {
		for _, name := range j.Registry.Names() {
			patterns = append(patterns, name+":*")
		}
	}

	total := 0
	for _, pattern := range patterns {
		total += j.Cache.ClearPattern(ctx, pattern)
	}
	if j.Logger != nil {
		j.Logger.Info("cache sweep finished", slog.Int("patterns", len(patterns)), slog.Int("evicted", total))
	}
	return nil
}
