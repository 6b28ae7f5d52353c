package executor

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vellum-db/vellum/internal/migration"
	"github.com/vellum-db/vellum/internal/postgres"
)

const (
	sqlSelectAppliedVersions = `SELECT version FROM vellum.vellum_migrations WHERE success = TRUE`
	sqlSelectLastApplied     = `SELECT version, name FROM vellum.vellum_migrations WHERE success = TRUE ORDER BY version DESC LIMIT 1`
	sqlSelectLastRunStatus   = `SELECT status FROM vellum.vellum_runs ORDER BY started_at DESC LIMIT 1`
)

// Status summarizes the engine's view of a database against a discovered
// migration set, without applying or validating anything.
type Status struct {
	Applied       int
	Pending       int
	LastApplied   string // "<version>_<name>", or "" if none
	LastRunStatus string // "running" | "success" | "failed", or "" if no run yet
	SchemaMissing bool
}

// GetStatus reports how many of migrations are applied versus pending, the
// most recently applied migration, and the status of the most recent run.
// SchemaMissing is set when the vellum schema has not been bootstrapped.
func GetStatus(ctx context.Context, pool postgres.Pool, migrations []migration.Migration) (Status, error) {
	appliedVersions, err := selectAppliedVersions(ctx, pool)
	if err != nil {
		if isUndefinedTable(err) {
			return Status{SchemaMissing: true}, nil
		}
		return Status{}, err
	}

	pending := 0
	for _, m := range migrations {
		if !appliedVersions[m.Version] {
			pending++
		}
	}

	lastApplied, err := selectLastApplied(ctx, pool)
	if err != nil {
		return Status{}, err
	}

	lastRunStatus, err := selectLastRunStatus(ctx, pool)
	if err != nil {
		return Status{}, err
	}

	return Status{
		Applied:       len(appliedVersions),
		Pending:       pending,
		LastApplied:   lastApplied,
		LastRunStatus: lastRunStatus,
	}, nil
}

func selectAppliedVersions(ctx context.Context, pool postgres.Pool) (map[int64]bool, error) {
	rows, err := pool.Query(ctx, sqlSelectAppliedVersions)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, err
		}
		return nil, RunTrackingFailedError{RunID: "<none>", Operation: "select_applied_versions", Message: err.Error()}
	}
	defer rows.Close()

	out := map[int64]bool{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, RunTrackingFailedError{RunID: "<none>", Operation: "select_applied_versions", Message: err.Error()}
		}
		out[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, RunTrackingFailedError{RunID: "<none>", Operation: "select_applied_versions", Message: err.Error()}
	}
	return out, nil
}

func selectLastApplied(ctx context.Context, pool postgres.Pool) (string, error) {
	var version int64
	var name string
	err := pool.QueryRow(ctx, sqlSelectLastApplied).Scan(&version, &name)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", RunTrackingFailedError{RunID: "<none>", Operation: "select_last_applied", Message: err.Error()}
	}
	return migration.Migration{Version: version, Name: name}.String(), nil
}

func selectLastRunStatus(ctx context.Context, pool postgres.Pool) (string, error) {
	var status string
	err := pool.QueryRow(ctx, sqlSelectLastRunStatus).Scan(&status)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", RunTrackingFailedError{RunID: "<none>", Operation: "select_last_run_status", Message: err.Error()}
	}
	return status, nil
}

// isUndefinedTable reports whether err is Postgres error code 42P01
// (undefined_table), the signal that the vellum schema was never
// bootstrapped.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01"
	}
	return false
}
