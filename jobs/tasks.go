package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCacheSweep evicts stale cached results by key pattern.
	TaskCacheSweep = "cache:sweep"
	// TaskCacheWarmup pre-executes cacheable operations for hot clients.
	TaskCacheWarmup = "cache:warmup"
)

// CacheSweepPayload lists the key patterns to evict. Empty means every
// operation namespace.
type CacheSweepPayload struct {
	Patterns []string `json:"patterns"`
}

// NewCacheSweepTask constructs an Asynq task.
func NewCacheSweepTask(payload CacheSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheSweep, data), nil
}

// CacheWarmupPayload names the operations to warm and the client ids to
// warm them for.
type CacheWarmupPayload struct {
	Operations []string `json:"operations"`
	ClientIDs  []string `json:"client_ids"`
}

// NewCacheWarmupTask constructs an Asynq task.
func NewCacheWarmupTask(payload CacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarmup, data), nil
}
