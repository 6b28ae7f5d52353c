package executor

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vellum-db/vellum/internal/sqlsplit"
)

// execTx is the subset of pgx.Tx the executor package depends on, narrowed
// so tests can substitute pgxmock's transaction.
type execTx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// forbiddenKinds are transaction-control statements the engine refuses to
// run inside a migration: the engine owns the transaction boundary, and an
// embedded BEGIN/COMMIT/ROLLBACK would corrupt it.
var forbiddenKinds = map[string]bool{
	"BEGIN":    true,
	"COMMIT":   true,
	"ROLLBACK": true,
	"START":    true,
}

// statementKind takes the first whitespace-separated token of sql, trims
// non-letters from both of its ends and uppercases it, for audit labeling.
// Returns "UNKNOWN" when sql is blank or that first token has no letters
// (for example a leading "--" comment); later tokens are not examined.
func statementKind(sql string) string {
	field := strings.Fields(sql)
	if len(field) == 0 {
		return "UNKNOWN"
	}
	token := strings.TrimFunc(field[0], func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if token == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(token)
}

// durationMS converts d to milliseconds, saturating at math.MaxInt32 so the
// value always fits the int32 execution_time_ms column.
func durationMS(d time.Duration) int32 {
	ms := d.Milliseconds()
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	if ms < 0 {
		return 0
	}
	return int32(ms)
}

// executeStatement runs stmt against tx, returning its elapsed time in
// milliseconds or a StatementExecutionFailedError.
func executeStatement(ctx context.Context, tx execTx, migrationVersion int64, stmt sqlsplit.Statement) (int32, error) {
	kind := statementKind(stmt.SQL)
	if forbiddenKinds[kind] {
		return 0, StatementExecutionFailedError{
			MigrationVersion: migrationVersion,
			StatementOrdinal: stmt.Ordinal,
			ExecutionTimeMS:  0,
			Statement:        stmt.SQL,
			Message:          "transaction control statements are not allowed inside migration files",
		}
	}

	started := time.Now()
	_, err := tx.Exec(ctx, stmt.SQL)
	elapsed := durationMS(time.Since(started))
	if err != nil {
		return elapsed, StatementExecutionFailedError{
			MigrationVersion: migrationVersion,
			StatementOrdinal: stmt.Ordinal,
			ExecutionTimeMS:  elapsed,
			Statement:        stmt.SQL,
			Message:          err.Error(),
		}
	}
	return elapsed, nil
}
