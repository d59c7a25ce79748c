// Package postgres provides the Postgres-backed render audit log.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/promoforge/internal/promo"
)

const defaultTable = "render_events"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for render events.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RenderLog appends render lifecycle events. It is write-only; nothing reads it back to
// decide a job's state.
type RenderLog struct {
	pool  execCloser
	table string
}

// NewRenderLog connects a pool using cfg.
func NewRenderLog(ctx context.Context, cfg Config) (*RenderLog, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RenderLog{pool: pool, table: table}, nil
}

// NewRenderLogWithPool constructs a log from an existing pool (primarily for testing).
func NewRenderLogWithPool(pool execCloser, table string) (*RenderLog, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RenderLog{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the events table when it does not exist.
func (l *RenderLog) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	job_id TEXT NOT NULL,
	event TEXT NOT NULL,
	status TEXT,
	url TEXT,
	error TEXT,
	title TEXT,
	occurred_at TIMESTAMPTZ NOT NULL
)`, l.table)
	if _, err := l.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", l.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (l *RenderLog) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}

// Record inserts one event row.
func (l *RenderLog) Record(ctx context.Context, event promo.RenderEvent) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("render log is not configured")
	}
	if event.JobID == "" {
		return fmt.Errorf("job id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	job_id,
	event,
	status,
	url,
	error,
	title,
	occurred_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)`, l.table)

	args := []any{
		event.JobID,
		event.Event,
		string(event.Status),
		event.URL,
		event.Error,
		event.Title,
		event.OccurredAt,
	}
	if _, err := l.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert render event: %w", err)
	}
	return nil
}
