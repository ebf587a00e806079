// Package mediator implements the request pipeline every data-retrieving
// operation passes through: input validation, function-level and row-level
// authorization, per-caller rate limiting, read-through result caching and
// bounded parameterized query execution, with uniform logging and failure
// masking. The pipeline is strictly forward-progressing per call; each stage
// is an early-exit point and no stage re-enters an earlier one.
package mediator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/clientbridge/clientbridge/internal/cache"
	"github.com/clientbridge/clientbridge/internal/permissions"
	"github.com/clientbridge/clientbridge/internal/queries"
	"github.com/clientbridge/clientbridge/internal/store"
)

// rowAccessQuery answers the row-level security check. It always bypasses
// the cache: row-level decisions must never be served stale.
const rowAccessQuery = "SELECT 1 FROM user_client_access WHERE user_id = $1 AND client_id = $2"

// Caller identifies who is making a call. Supplied per call, never persisted.
type Caller struct {
	ID   string
	Name string
	Role permissions.Role
}

// Request carries one operation invocation through the pipeline.
type Request struct {
	Caller Caller
	// Args are the operation's named arguments. They participate in cache
	// key derivation and validation; caller identity is never among them.
	Args map[string]any
	// Params are the values bound to the query template's positional
	// placeholders, in placeholder order.
	Params []any
	// ClientID is the target client for row-level checks; empty when the
	// operation does not address a specific client.
	ClientID string
}

// Descriptor describes an operation type. Defined once at startup,
// read-only thereafter.
type Descriptor struct {
	Name         string
	AllowedRoles []permissions.Role
	// Required lists named arguments that must be present and non-empty
	// after trimming.
	Required  []string
	Cacheable bool
	CacheTTL  time.Duration
	MaxRows   int
	// TargetsClient marks operations addressing a single client record,
	// which makes them subject to row-level security.
	TargetsClient bool
	// Format renders rows into the user-displayable reply. Must be pure.
	Format func(rows []store.Row, req Request) string
}

// Querier executes one bounded parameterized query.
type Querier interface {
	Query(ctx context.Context, sql string, params []any, maxRows int) ([]store.Row, error)
}

// Config tunes the pipeline.
type Config struct {
	RowLevelSecurity bool
	RateWindow       time.Duration
	SlowQueryAfter   time.Duration
	// Singleflight collapses duplicate in-flight cache misses for the same
	// key. Off by default: duplicate calls execute independently.
	Singleflight bool
}

// Mediator orchestrates the pipeline over its injected collaborators.
type Mediator struct {
	registry *permissions.Registry
	cache    *cache.Cache
	querier  Querier
	catalog  *queries.Catalog
	cfg      Config
	logger   *slog.Logger
	flight   singleflight.Group
}

// New constructs a Mediator.
func New(registry *permissions.Registry, c *cache.Cache, querier Querier, catalog *queries.Catalog, cfg Config, logger *slog.Logger) *Mediator {
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Hour
	}
	if cfg.SlowQueryAfter <= 0 {
		cfg.SlowQueryAfter = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mediator{
		registry: registry,
		cache:    c,
		querier:  querier,
		catalog:  catalog,
		cfg:      cfg,
		logger:   logger,
	}
}

// Invoke runs one call through the pipeline. The returned string is always
// user-displayable plain text (success, denial or error); the error carries
// the internal kind for observability and is nil on success and cache hits.
// A failed call never takes the worker down: panics below are recovered and
// masked like any other store failure.
func (m *Mediator) Invoke(ctx context.Context, desc Descriptor, req Request) (reply string, err error) {
	log := m.logger.With(
		slog.String("call_id", uuid.NewString()),
		slog.String("operation", desc.Name),
		slog.String("caller_id", req.Caller.ID),
		slog.String("role", string(req.Caller.Role)),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("call panicked", slog.Any("panic", r))
			reply = msgUnavailable
			err = fmt.Errorf("%w: recovered panic: %v", store.ErrUnavailable, r)
		}
	}()

	// Stage 1: input validation.
	if msg, ok := m.validate(desc, req); !ok {
		log.Debug("input rejected", slog.String("hint", msg))
		return msg, &ValidationError{Message: msg}
	}

	// Stage 2: function-level authorization.
	if !m.registry.CanAccessFunction(req.Caller.Role, desc.Name) {
		log.Warn("function access denied")
		return msgAccessDenied, m.denied(DeniedFunction, desc, req)
	}

	// Stage 3: row-level authorization.
	if desc.TargetsClient && req.ClientID != "" && m.cfg.RowLevelSecurity {
		if !m.canAccessClient(ctx, log, req) {
			log.Warn("client access denied", slog.String("client_id", req.ClientID))
			return msgAccessDenied, m.denied(DeniedRowLevel, desc, req)
		}
	}

	// Stage 4: rate limiting. The increment is not rolled back when the
	// call is denied here; denied attempts still count against the window.
	if !m.withinRateLimit(ctx, req.Caller) {
		log.Warn("rate limit exceeded")
		return msgRateLimited, m.denied(DeniedRateLimit, desc, req)
	}

	// Stage 5: cache read.
	key := cache.Key(desc.Name, req.Params, req.Args)
	if desc.Cacheable {
		var cached string
		if m.cache.Get(ctx, key, &cached) {
			log.Info("served from cache", slog.String("key", key))
			return cached, nil
		}
	}

	// Stages 6-7: query execution and cache write.
	if m.cfg.Singleflight && desc.Cacheable {
		v, err, _ := m.flight.Do(key, func() (any, error) {
			return m.run(ctx, log, desc, req, key)
		})
		if err != nil {
			return m.mask(err), err
		}
		return v.(string), nil
	}
	out, err := m.run(ctx, log, desc, req, key)
	if err != nil {
		return m.mask(err), err
	}
	return out, nil
}

// validate checks required named arguments; ok=false returns the corrective
// hint shown to the caller.
func (m *Mediator) validate(desc Descriptor, req Request) (string, bool) {
	for _, name := range desc.Required {
		value, ok := req.Args[name]
		if !ok {
			return validationHint(name), false
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			return validationHint(name), false
		}
	}
	return "", true
}

func validationHint(arg string) string {
	return fmt.Sprintf("Please provide a valid %s.", strings.ReplaceAll(arg, "_", " "))
}

// canAccessClient performs the row-level check. Roles with blanket
// visibility pass immediately; everyone else needs a row in the access
// mapping. Lookup failures deny (fail closed).
func (m *Mediator) canAccessClient(ctx context.Context, log *slog.Logger, req Request) bool {
	if m.registry.CanViewAllClients(req.Caller.Role) {
		return true
	}
	rows, err := m.querier.Query(ctx, rowAccessQuery, []any{req.Caller.ID, req.ClientID}, 1)
	if err != nil {
		log.Error("row-level lookup failed", slog.Any("error", err))
		return false
	}
	return len(rows) > 0
}

// withinRateLimit bumps the caller's counter and compares it to the role's
// limit. The window starts at the first increment. When the counter backend
// is down the increment returns zero and the limit is not enforced; the
// cache layer already logged the outage.
func (m *Mediator) withinRateLimit(ctx context.Context, caller Caller) bool {
	key := cache.RateLimitKey(caller.ID)
	count := m.cache.Increment(ctx, key)
	if count == 0 {
		return true
	}
	if count == 1 {
		m.cache.Expire(ctx, key, m.cfg.RateWindow)
	}
	return count <= int64(m.registry.RateLimit(caller.Role))
}

// run executes the query, formats the rows and writes the cache entry.
func (m *Mediator) run(ctx context.Context, log *slog.Logger, desc Descriptor, req Request, key string) (string, error) {
	sql, ok := m.catalog.Lookup(desc.Name)
	if !ok {
		log.Error("query template missing")
		return "", &ConfigurationError{Operation: desc.Name}
	}

	start := time.Now()
	rows, err := m.querier.Query(ctx, sql, req.Params, desc.MaxRows)
	elapsed := time.Since(start)
	if err != nil {
		log.Error("query failed", slog.Duration("elapsed", elapsed), slog.Any("error", err))
		return "", err
	}
	if elapsed > m.cfg.SlowQueryAfter {
		log.Warn("slow query", slog.Duration("elapsed", elapsed), slog.Int("rows", len(rows)))
	} else {
		log.Debug("query completed", slog.Duration("elapsed", elapsed), slog.Int("rows", len(rows)))
	}

	out := desc.Format(rows, req)
	if desc.Cacheable {
		m.cache.Set(ctx, key, out, desc.CacheTTL)
	}
	return out, nil
}

// mask maps an internal execution error to its fixed user message.
func (m *Mediator) mask(err error) string {
	if _, ok := err.(*ConfigurationError); ok {
		return msgConfigMissing
	}
	return msgUnavailable
}

func (m *Mediator) denied(reason DenialReason, desc Descriptor, req Request) *AuthorizationError {
	return &AuthorizationError{
		Reason:    reason,
		CallerID:  req.Caller.ID,
		Role:      string(req.Caller.Role),
		Operation: desc.Name,
		ClientID:  req.ClientID,
	}
}
