// Package store executes the catalog's parameterized queries against
// PostgreSQL through a bounded connection pool.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnavailable indicates the backing store could not serve the query.
// Internal detail is preserved in the wrapped error for server-side logs;
// callers must never surface it to end users.
var ErrUnavailable = errors.New("store: unavailable")

// Row is a single result row keyed by column name.
type Row map[string]any

// Config bounds every query the provider runs.
type Config struct {
	// LockTimeout caps how long a query may wait on a row or table lock.
	LockTimeout time.Duration
	// MaxRows caps the result set when the caller does not set its own cap.
	MaxRows int
}

// Provider supplies pooled, bounded query execution.
type Provider struct {
	pool   *pgxpool.Pool
	cfg    Config
	logger *slog.Logger
}

// NewProvider constructs a Provider over an existing pool.
func NewProvider(pool *pgxpool.Pool, cfg Config, logger *slog.Logger) *Provider {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{pool: pool, cfg: cfg, logger: logger}
}

// Ping verifies connectivity.
func (p *Provider) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Query runs one parameterized statement and returns its rows as column
// maps. The statement is wrapped in a LIMIT subquery so the row cap is
// enforced by the server, and the lock wait bound is applied inside the
// per-call transaction. The connection is released on every exit path.
func (p *Provider) Query(ctx context.Context, sql string, params []any, maxRows int) ([]Row, error) {
	if maxRows <= 0 || maxRows > p.cfg.MaxRows {
		maxRows = p.cfg.MaxRows
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, p.fail("acquire connection", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, p.fail("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// SET does not take bind parameters; the value is a server-validated
	// integer built from config, never from caller input.
	lockStmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", p.cfg.LockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, lockStmt); err != nil {
		return nil, p.fail("set lock timeout", err)
	}

	capped := fmt.Sprintf("SELECT * FROM (%s) AS capped LIMIT $%d", sql, len(params)+1)
	args := append(append([]any(nil), params...), maxRows)

	rows, err := tx.Query(ctx, capped, args...)
	if err != nil {
		return nil, p.fail("query", err)
	}

	fields := rows.FieldDescriptions()
	results := make([]Row, 0, 16)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			rows.Close()
			return nil, p.fail("scan", err)
		}
		row := make(Row, len(fields))
		for i, field := range fields {
			row[string(field.Name)] = values[i]
		}
		results = append(results, row)
		if len(results) >= maxRows {
			break
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, p.fail("read rows", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, p.fail("commit", err)
	}
	return results, nil
}

func (p *Provider) fail(stage string, err error) error {
	attrs := []any{slog.String("stage", stage), slog.Any("error", err)}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		attrs = append(attrs, slog.String("pg_code", pgErr.Code))
	}
	p.logger.Error("store query failed", attrs...)
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, stage, err)
}
