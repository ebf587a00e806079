// Package cache wraps Redis with the small surface the mediation pipeline
// needs: JSON values with TTL, atomic counters for rate limiting, and
// pattern-based eviction. Every operation degrades to an inert default when
// Redis is unreachable so a cache outage slows the system down instead of
// breaking it; note that rate limiting rides on the same counters and is
// therefore unenforced while the cache is down.
//
// Keys deliberately exclude caller identity, so entries are shared across
// callers with equal arguments. Authorization is re-checked before every
// cache read, so a hit never bypasses a permission check.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides Redis backed storage with fail-open semantics.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New constructs a Cache. A nil client yields a cache where every operation
// is an inert no-op.
func New(client *redis.Client, defaultTTL time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: defaultTTL, logger: logger}
}

// DefaultTTL returns the TTL applied when an operation does not set its own.
func (c *Cache) DefaultTTL() time.Duration {
	return c.ttl
}

// Get loads a cached value into dest. It returns false on a miss, on any
// Redis failure, or when the stored payload cannot be decoded.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Error("cache get failed", slog.String("key", key), slog.Any("error", err))
		}
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		c.logger.Error("cache payload corrupt", slog.String("key", key), slog.Any("error", err))
		return false
	}
	c.logger.Debug("cache hit", slog.String("key", key))
	return true
}

// Set stores value under key with the given TTL (the default TTL when ttl is
// zero). Failures are logged and reported as false, never raised.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if c == nil || c.client == nil {
		return false
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache marshal failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.Error("cache set failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	c.logger.Debug("cache set", slog.String("key", key), slog.Duration("ttl", ttl))
	return true
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	if c == nil || c.client == nil {
		return false
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Error("cache delete failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

// ClearPattern removes every key matching a glob pattern (e.g. "notes:*")
// and returns the number of keys deleted.
func (c *Cache) ClearPattern(ctx context.Context, pattern string) int {
	if c == nil || c.client == nil {
		return 0
	}
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.logger.Error("cache scan failed", slog.String("pattern", pattern), slog.Any("error", err))
			return deleted
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.logger.Error("cache bulk delete failed", slog.String("pattern", pattern), slog.Any("error", err))
				return deleted
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		c.logger.Info("cache cleared", slog.String("pattern", pattern), slog.Int("keys", deleted))
	}
	return deleted
}

// Increment atomically bumps a counter and returns the post-increment value.
// A zero return means the counter is unavailable; callers must treat that as
// "no limit information", not as a fresh window.
func (c *Cache) Increment(ctx context.Context, key string) int64 {
	if c == nil || c.client == nil {
		return 0
	}
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		c.logger.Error("cache increment failed", slog.String("key", key), slog.Any("error", err))
		return 0
	}
	return n
}

// Expire sets or refreshes the TTL on an existing key. Returns false when
// the key is absent or Redis is unavailable.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	if c == nil || c.client == nil {
		return false
	}
	ok, err := c.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		c.logger.Error("cache expire failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return ok
}

// Key derives the deterministic cache key for an operation call. Positional
// arguments contribute in order; named arguments are sorted by name first so
// argument ordering at the call site never changes the key. Caller identity
// must not be passed in.
func Key(operation string, positional []any, named map[string]any) string {
	var b strings.Builder
	for _, v := range positional {
		fmt.Fprintf(&b, "%v|", v)
	}
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%v|", name, named[name])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return operation + ":" + hex.EncodeToString(sum[:])
}

// RateLimitKey builds the counter key for a caller.
func RateLimitKey(callerID string) string {
	return "rate_limit:" + callerID
}
