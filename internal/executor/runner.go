package executor

import (
	"context"
	"time"

	"github.com/vellum-db/vellum/internal/migration"
	"github.com/vellum-db/vellum/internal/postgres"
	"github.com/vellum-db/vellum/internal/sqlsplit"
)

// RunReport summarizes the outcome of one completed run.
type RunReport struct {
	RunID   string
	Applied int
	Skipped int
}

// Runner applies migrations against pool, recording every run in the audit
// tables. A single Runner is safe to reuse across runs; it holds no
// per-run state of its own.
type Runner struct {
	Pool          postgres.Pool
	VellumVersion string
}

// NewRunner constructs a Runner bound to pool.
func NewRunner(pool postgres.Pool, vellumVersion string) *Runner {
	return &Runner{Pool: pool, VellumVersion: vellumVersion}
}

// Run applies migrations in order, skipping any already recorded with a
// matching checksum. It aborts at the first failing migration; no
// subsequent migrations are attempted.
func (r *Runner) Run(ctx context.Context, migrations []migration.Migration) (RunReport, error) {
	runID, err := insertRun(ctx, r.Pool, Apply.String(), r.VellumVersion)
	if err != nil {
		return RunReport{}, err
	}

	applied, skipped := 0, 0
	for _, m := range migrations {
		dbChecksum, exists, err := getAppliedChecksum(ctx, r.Pool, m.Version)
		if err != nil {
			_ = markRunFailed(ctx, r.Pool, runID, err)
			return RunReport{}, err
		}

		if exists {
			if dbChecksum == m.Checksum {
				skipped++
				continue
			}
			mismatch := ChecksumMismatchError{Version: m.Version, Expected: dbChecksum, Actual: m.Checksum}
			_ = markRunFailed(ctx, r.Pool, runID, mismatch)
			return RunReport{}, mismatch
		}

		if err := r.applyOne(ctx, runID, m); err != nil {
			_ = markRunFailed(ctx, r.Pool, runID, err)
			return RunReport{}, err
		}
		applied++
	}

	if err := markRunSuccess(ctx, r.Pool, runID); err != nil {
		return RunReport{}, err
	}

	return RunReport{RunID: runID, Applied: applied, Skipped: skipped}, nil
}

// applyOne runs one migration inside its own transaction: insert the
// pending migration row, execute and record every statement, and commit
// only if every statement succeeded.
func (r *Runner) applyOne(ctx context.Context, runID string, m migration.Migration) error {
	statements, err := sqlsplit.Split(m.SQL, m.Version)
	if err != nil {
		return StatementParsingFailedError{MigrationVersion: m.Version, Message: err.Error()}
	}

	tx, err := beginTx(ctx, r.Pool, m.Version)
	if err != nil {
		return err
	}

	migrationID, err := insertMigration(ctx, tx, runID, m)
	if err != nil {
		_ = rollbackTx(ctx, tx, m.Version, err)
		return err
	}

	started := time.Now()
	for _, stmt := range statements {
		elapsedMS, execErr := executeStatement(ctx, tx, m.Version, stmt)
		if execErr != nil {
			_ = insertStatement(ctx, tx, migrationID, stmt, elapsedMS, false, execErr.Error())
			if rbErr := rollbackTx(ctx, tx, m.Version, execErr); rbErr != nil {
				return rbErr
			}
			return execErr
		}
		if err := insertStatement(ctx, tx, migrationID, stmt, elapsedMS, true, ""); err != nil {
			_ = rollbackTx(ctx, tx, m.Version, err)
			return err
		}
	}

	if err := markMigrationSuccess(ctx, tx, migrationID, durationMS(time.Since(started))); err != nil {
		_ = rollbackTx(ctx, tx, m.Version, err)
		return err
	}

	return commitTx(ctx, tx, m.Version)
}
