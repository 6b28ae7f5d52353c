package executor

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vellum-db/vellum/internal/migration"
	"github.com/vellum-db/vellum/internal/postgres"
	"github.com/vellum-db/vellum/internal/sqlsplit"
)

const (
	sqlDBInfo = `SELECT current_database()::text, current_user::text, coalesce(inet_client_addr()::text, '')`

	sqlInsertRun = `
INSERT INTO vellum.vellum_runs (
	id, started_at, finished_at, mode, status, db_name, db_user, client_host, vellum_version
) VALUES ($1, now(), NULL, $2, 'running', $3, $4, $5, $6)
`

	sqlUpdateRunStatus = `
UPDATE vellum.vellum_runs SET status = $2, finished_at = now() WHERE id = $1
`

	sqlSelectAppliedChecksum = `
SELECT checksum FROM vellum.vellum_migrations WHERE version = $1 AND success = TRUE
`

	sqlInsertMigration = `
INSERT INTO vellum.vellum_migrations (
	version, name, checksum, execution_time_ms, success, error_code, error_message, run_id
) VALUES ($1, $2, $3, $4, FALSE, NULL, $5, $6)
RETURNING id
`

	sqlMarkMigrationSuccess = `
UPDATE vellum.vellum_migrations SET execution_time_ms = $2, success = TRUE WHERE id = $1
`

	sqlInsertStatement = `
INSERT INTO vellum.vellum_statements (
	migration_id, ordinal, statement_hash, statement_kind, transactional, execution_time_ms, success, error_message
) VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7)
`
)

// newUUID is indirected so tests can pin deterministic run IDs. Runs get a
// time-ordered v7 id, matching the teacher's id.NewV7 helper, so vellum_runs
// rows sort chronologically by primary key without a separate index.
var newUUID = func() string {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return u.String()
}

// insertRun opens a vellum.vellum_runs row in status 'running' and returns
// its id. It also captures the connecting database, user, and client host.
func insertRun(ctx context.Context, pool postgres.Pool, mode string, vellumVersion string) (string, error) {
	var dbName, dbUser, clientHost string
	if err := pool.QueryRow(ctx, sqlDBInfo).Scan(&dbName, &dbUser, &clientHost); err != nil {
		return "", RunTrackingFailedError{RunID: "<uncreated>", Operation: "db_info", Message: err.Error()}
	}

	runID := newUUID()
	if _, err := pool.Exec(ctx, sqlInsertRun, runID, mode, dbName, dbUser, clientHost, vellumVersion); err != nil {
		return "", RunTrackingFailedError{RunID: runID, Operation: "insert_run", Message: err.Error()}
	}
	return runID, nil
}

func markRunSuccess(ctx context.Context, pool postgres.Pool, runID string) error {
	if _, err := pool.Exec(ctx, sqlUpdateRunStatus, runID, "success"); err != nil {
		return RunTrackingFailedError{RunID: runID, Operation: "mark_run_success", Message: err.Error()}
	}
	return nil
}

// markRunFailed updates the run row to 'failed'. originalErr is recorded
// only in the returned error should this write itself fail; callers invoke
// markRunFailed on a best-effort basis and must not let its failure mask
// originalErr.
func markRunFailed(ctx context.Context, pool postgres.Pool, runID string, originalErr error) error {
	if _, err := pool.Exec(ctx, sqlUpdateRunStatus, runID, "failed"); err != nil {
		msg := ""
		if originalErr != nil {
			msg = originalErr.Error()
		}
		return RunTrackingFailedError{RunID: runID, Operation: "mark_run_failed", Message: err.Error(), OriginalError: msg}
	}
	return nil
}

// getAppliedChecksum returns the checksum recorded for version, or "", false
// if no successful migration row exists for it yet.
func getAppliedChecksum(ctx context.Context, pool postgres.Pool, version int64) (string, bool, error) {
	var checksum string
	err := pool.QueryRow(ctx, sqlSelectAppliedChecksum, version).Scan(&checksum)
	if err == nil {
		return checksum, true, nil
	}
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	return "", false, RunTrackingFailedError{RunID: "<unknown>", Operation: "select_migration_checksum", Message: err.Error()}
}

// insertMigration records a pending (success=false) migration row inside tx
// and returns its serial id.
func insertMigration(ctx context.Context, tx execTx, runID string, m migration.Migration) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, sqlInsertMigration, m.Version, m.Name, m.Checksum, int32(0), nilIfEmpty(""), runID).Scan(&id)
	if err != nil {
		return 0, RunTrackingFailedError{RunID: runID, Operation: "insert_migration", Message: err.Error()}
	}
	return id, nil
}

func markMigrationSuccess(ctx context.Context, tx execTx, migrationID int64, elapsedMS int32) error {
	if _, err := tx.Exec(ctx, sqlMarkMigrationSuccess, migrationID, elapsedMS); err != nil {
		return RunTrackingFailedError{RunID: "<unknown>", Operation: "mark_migration_success", Message: err.Error()}
	}
	return nil
}

// insertStatement records the outcome of one statement inside tx.
// errorMessage is empty for a successful statement.
func insertStatement(ctx context.Context, tx execTx, migrationID int64, stmt sqlsplit.Statement, elapsedMS int32, success bool, errorMessage string) error {
	kind := statementKind(stmt.SQL)
	hash := migration.Checksum([]byte(stmt.SQL))
	_, err := tx.Exec(ctx, sqlInsertStatement, migrationID, stmt.Ordinal, hash, kind, elapsedMS, success, nilIfEmpty(errorMessage))
	if err != nil {
		return RunTrackingFailedError{RunID: "<unknown>", Operation: "insert_statement", Message: err.Error()}
	}
	return nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
