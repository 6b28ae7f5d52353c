package executor

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/vellum-db/vellum/internal/migration"
	"github.com/vellum-db/vellum/internal/sqlsplit"
	"github.com/vellum-db/vellum/internal/vellumtest"
)

func withFixedUUID(t *testing.T, id string) {
	t.Helper()
	prev := newUUID
	newUUID = func() string { return id }
	t.Cleanup(func() { newUUID = prev })
}

func TestInsertRunCapturesConnectionInfo(t *testing.T) {
	sb := vellumtest.NewSandbox(t)
	withFixedUUID(t, "11111111-1111-1111-1111-111111111111")

	sb.Mock().ExpectQuery(sqlDBInfo).WillReturnRows(
		sb.Mock().NewRows([]string{"current_database", "current_user", "inet_client_addr"}).
			AddRow("app", "vellum", "127.0.0.1"))
	sb.Mock().ExpectExec(sqlInsertRun).
		WithArgs("11111111-1111-1111-1111-111111111111", "apply", "app", "vellum", "127.0.0.1", "test-version").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	runID, err := insertRun(sb.Context(), sb.Pool(), "apply", "test-version")
	if err != nil {
		t.Fatalf("insertRun error: %v", err)
	}
	if runID != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("runID = %q, want fixed uuid", runID)
	}
	sb.ExpectationsWereMet(t)
}

func TestGetAppliedChecksumMissing(t *testing.T) {
	sb := vellumtest.NewSandbox(t)

	sb.Mock().ExpectQuery(sqlSelectAppliedChecksum).WithArgs(int64(1)).
		WillReturnError(pgx.ErrNoRows)

	_, exists, err := getAppliedChecksum(sb.Context(), sb.Pool(), 1)
	if err != nil {
		t.Fatalf("getAppliedChecksum error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing row")
	}
	sb.ExpectationsWereMet(t)
}

func TestGetAppliedChecksumFound(t *testing.T) {
	sb := vellumtest.NewSandbox(t)

	sb.Mock().ExpectQuery(sqlSelectAppliedChecksum).WithArgs(int64(1)).
		WillReturnRows(sb.Mock().NewRows([]string{"checksum"}).AddRow("deadbeef"))

	checksum, exists, err := getAppliedChecksum(sb.Context(), sb.Pool(), 1)
	if err != nil {
		t.Fatalf("getAppliedChecksum error: %v", err)
	}
	if !exists || checksum != "deadbeef" {
		t.Fatalf("got checksum=%q exists=%v, want deadbeef/true", checksum, exists)
	}
	sb.ExpectationsWereMet(t)
}

func TestInsertMigrationAndStatement(t *testing.T) {
	sb := vellumtest.NewSandbox(t)

	sb.Mock().ExpectBegin()
	tx, err := sb.Mock().Begin(sb.Context())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	m := migration.Migration{Version: 1, Name: "init", Checksum: "cs", SQL: "create table t(id int);"}
	sb.Mock().ExpectQuery(sqlInsertMigration).
		WithArgs(int64(1), "init", "cs", int32(0), nil, "run-1").
		WillReturnRows(sb.Mock().NewRows([]string{"id"}).AddRow(int64(42)))

	migrationID, err := insertMigration(sb.Context(), tx, "run-1", m)
	if err != nil {
		t.Fatalf("insertMigration error: %v", err)
	}
	if migrationID != 42 {
		t.Fatalf("migrationID = %d, want 42", migrationID)
	}

	stmt := sqlsplit.Statement{Ordinal: 1, SQL: "create table t(id int);"}
	sb.Mock().ExpectExec(sqlInsertStatement).
		WithArgs(int64(42), 1, migration.Checksum([]byte(stmt.SQL)), "CREATE", int32(5), true, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := insertStatement(sb.Context(), tx, migrationID, stmt, 5, true, ""); err != nil {
		t.Fatalf("insertStatement error: %v", err)
	}
	sb.ExpectationsWereMet(t)
}
