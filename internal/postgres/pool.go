// Package postgres wraps pgxpool connection pooling and OpenTelemetry query
// tracing for the engine's migration-work connections. The advisory lock
// (internal/lock) deliberately does not use this pool: a session-scoped
// advisory lock must live on its own dedicated connection, never one cycled
// by a pool.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vellum-db/vellum/internal/observability/tracing"
)

// Pool is the subset of pgxpool.Pool behavior the executor and audit
// recorder depend on, narrowed so tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

var _ Pool = (*pgxpool.Pool)(nil)

// Connect opens a pgxpool.Pool against url, installing a pgx query tracer
// that reports every query to tracer when tracer is non-nil.
func Connect(ctx context.Context, url string, tracer tracing.Tracer) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	if tracer != nil {
		cfg.ConnConfig.Tracer = newPGXTracer(tracer)
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}
