package executor

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vellum-db/vellum/internal/migration"
	"github.com/vellum-db/vellum/internal/postgres"
	"github.com/vellum-db/vellum/internal/sqlsplit"
)

// sqlSnippetMaxChars bounds how much of a failing statement's text is kept
// in a DryRunValidationError, so a runaway migration body doesn't blow up
// error messages or logs.
const sqlSnippetMaxChars = 200

// DryRunner validates migrations inside a single transaction spanning the
// entire pending set, always rolling it back regardless of outcome.
type DryRunner struct {
	Pool          postgres.Pool
	VellumVersion string
}

// NewDryRunner constructs a DryRunner bound to pool.
func NewDryRunner(pool postgres.Pool, vellumVersion string) *DryRunner {
	return &DryRunner{Pool: pool, VellumVersion: vellumVersion}
}

// Run plans the pending migration set against recorded checksums, then
// executes every pending migration's statements inside one outer
// transaction that is always rolled back. A version already applied with a
// matching checksum is counted as skipped, and the transaction is opened and
// rolled back even when every migration is skipped. A checksum mismatch
// against an already-applied version is reported before any transaction is
// opened.
func (d *DryRunner) Run(ctx context.Context, migrations []migration.Migration) (RunReport, error) {
	runID, err := insertRun(ctx, d.Pool, DryRun.String(), d.VellumVersion)
	if err != nil {
		return RunReport{}, err
	}

	toApply, skipped, err := d.plan(ctx, migrations)
	if err != nil {
		_ = markRunFailed(ctx, d.Pool, runID, err)
		return RunReport{}, err
	}

	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		dErr := DryRunTransactionError{Operation: "begin", Message: err.Error()}
		_ = markRunFailed(ctx, d.Pool, runID, dErr)
		return RunReport{}, dErr
	}

	for _, m := range toApply {
		statements, splitErr := sqlsplit.Split(m.SQL, m.Version)
		if splitErr != nil {
			validationErr := DryRunValidationError{MigrationVersion: m.Version, Message: splitErr.Error()}
			if rbErr := d.rollbackAfterFailure(ctx, tx, runID, validationErr); rbErr != nil {
				return RunReport{}, rbErr
			}
			return RunReport{}, validationErr
		}

		if stmtErr := d.runStatements(ctx, tx, m.Version, statements); stmtErr != nil {
			validationErr := toValidationError(m.Version, stmtErr)
			if rbErr := d.rollbackAfterFailure(ctx, tx, runID, validationErr); rbErr != nil {
				return RunReport{}, rbErr
			}
			return RunReport{}, validationErr
		}
	}

	if err := tx.Rollback(ctx); err != nil {
		dErr := DryRunTransactionError{Operation: "rollback", Message: err.Error()}
		_ = markRunFailed(ctx, d.Pool, runID, dErr)
		return RunReport{}, dErr
	}

	if err := markRunSuccess(ctx, d.Pool, runID); err != nil {
		return RunReport{}, err
	}

	return RunReport{RunID: runID, Applied: len(toApply), Skipped: skipped}, nil
}

// runStatements executes a single migration's statements in order against
// tx, stopping as soon as one fails or ctx is cancelled. It runs through an
// errgroup so an external cancellation of ctx (the caller closing the CLI
// process, for instance) propagates into the loop between statements rather
// than only being observed after the whole migration has run; the
// transaction itself still only ever sees one goroutine, since pgx
// transactions are not safe for concurrent use.
func (d *DryRunner) runStatements(ctx context.Context, tx execTx, version int64, statements []sqlsplit.Statement) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for _, stmt := range statements {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, execErr := executeStatement(gctx, tx, version, stmt); execErr != nil {
				return execErr
			}
		}
		return nil
	})
	return g.Wait()
}

// toValidationError converts a statement failure (typed or a bare context
// error) into the DryRunValidationError the caller reports.
func toValidationError(version int64, err error) DryRunValidationError {
	var stmtErr StatementExecutionFailedError
	if errors.As(err, &stmtErr) {
		return DryRunValidationError{
			MigrationVersion: version,
			StatementOrdinal: stmtErr.StatementOrdinal,
			SQLSnippet:       sqlSnippet(stmtErr.Statement),
			Message:          stmtErr.Message,
		}
	}
	return DryRunValidationError{MigrationVersion: version, Message: err.Error()}
}

func (d *DryRunner) rollbackAfterFailure(ctx context.Context, tx execTx, runID string, cause error) error {
	if err := tx.Rollback(ctx); err != nil {
		dErr := DryRunTransactionError{
			Operation:     "rollback_after_failure",
			Message:       err.Error(),
			OriginalError: cause.Error(),
		}
		_ = markRunFailed(ctx, d.Pool, runID, dErr)
		return dErr
	}
	_ = markRunFailed(ctx, d.Pool, runID, cause)
	return nil
}

// plan determines which migrations are pending versus already applied with
// a matching checksum, matching against recorded checksums without opening
// any transaction.
func (d *DryRunner) plan(ctx context.Context, migrations []migration.Migration) ([]migration.Migration, int, error) {
	var toApply []migration.Migration
	skipped := 0

	for _, m := range migrations {
		dbChecksum, exists, err := getAppliedChecksum(ctx, d.Pool, m.Version)
		if err != nil {
			return nil, 0, DryRunFailedError{Message: "applied checksum lookup failed", OriginalError: err.Error()}
		}
		if exists {
			if dbChecksum == m.Checksum {
				skipped++
				continue
			}
			return nil, 0, DryRunValidationError{
				MigrationVersion: m.Version,
				Message:          "checksum mismatch for version " + strconv.FormatInt(m.Version, 10) + " (db=" + dbChecksum + ", fs=" + m.Checksum + ")",
			}
		}
		toApply = append(toApply, m)
	}

	return toApply, skipped, nil
}

func sqlSnippet(sql string) string {
	trimmed := strings.TrimSpace(sql)
	runes := []rune(trimmed)
	collapsed := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch r {
		case '\n', '\r', '\t':
			collapsed = append(collapsed, ' ')
		default:
			collapsed = append(collapsed, r)
		}
	}
	if len(collapsed) <= sqlSnippetMaxChars {
		return string(collapsed)
	}
	return string(collapsed[:sqlSnippetMaxChars]) + "…"
}
