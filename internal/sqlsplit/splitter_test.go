package sqlsplit

import (
	"errors"
	"testing"
)

func sqlOf(stmts []Statement) []string {
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.SQL
	}
	return out
}

func TestSplitSimpleStatements(t *testing.T) {
	stmts, err := Split("create table t(id int); insert into t values (1);", 1)
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	want := []string{"create table t(id int);", "insert into t values (1);"}
	got := sqlOf(stmts)
	if len(got) != len(want) {
		t.Fatalf("got %d statements, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statement %d = %q, want %q", i, got[i], want[i])
		}
	}
	for i, s := range stmts {
		if s.Ordinal != i+1 {
			t.Fatalf("statement %d ordinal = %d, want %d", i, s.Ordinal, i+1)
		}
	}
}

func TestSplitElidesEmptyStatements(t *testing.T) {
	stmts, err := Split("select 1;;  ;\nselect 2;", 1)
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2: %+v", len(stmts), stmts)
	}
}

func TestSplitDollarQuotedBlockWithSemicolonsIsOneStatement(t *testing.T) {
	sql := "DO $$ BEGIN PERFORM 1; PERFORM 2; END $$;"
	stmts, err := Split(sql, 1)
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1: %+v", len(stmts), stmts)
	}
	if stmts[0].SQL != sql {
		t.Fatalf("statement = %q, want %q", stmts[0].SQL, sql)
	}
}

func TestSplitNamedDollarTagMustMatchExactly(t *testing.T) {
	sql := "CREATE FUNCTION f() RETURNS int AS $body$ BEGIN RETURN 1; END; $body$ LANGUAGE plpgsql;"
	stmts, err := Split(sql, 1)
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1: %+v", len(stmts), stmts)
	}
}

func TestSplitMismatchedTagDoesNotClose(t *testing.T) {
	// $foo$ ... $bar$ never closes the block opened by $foo$; the real
	// close ($foo$) only appears at the very end.
	sql := "DO $foo$ select '$bar$ looks like a tag but is not'; $foo$;"
	stmts, err := Split(sql, 1)
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1: %+v", len(stmts), stmts)
	}
}

func TestSplitStringLiteralSemicolonDoesNotSplit(t *testing.T) {
	stmts, err := Split(`insert into t(s) values ('a;b');`, 1)
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1: %+v", len(stmts), stmts)
	}
}

func TestSplitQuotedIdentifierSemicolonDoesNotSplit(t *testing.T) {
	stmts, err := Split(`select * from "weird;table";`, 1)
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1: %+v", len(stmts), stmts)
	}
}

func TestSplitUnterminatedDollarQuoteIsParseError(t *testing.T) {
	_, err := Split("DO $$ BEGIN PERFORM 1;", 7)
	var want ParseError
	if !errors.As(err, &want) {
		t.Fatalf("Split error = %v, want ParseError", err)
	}
	if want.MigrationVersion != 7 {
		t.Fatalf("ParseError.MigrationVersion = %d, want 7", want.MigrationVersion)
	}
}

func TestSplitUnterminatedStringIsParseError(t *testing.T) {
	_, err := Split("select 'unterminated;", 1)
	var want ParseError
	if !errors.As(err, &want) {
		t.Fatalf("Split error = %v, want ParseError", err)
	}
}

func TestSplitPreservesInternalWhitespace(t *testing.T) {
	stmts, err := Split("  select   1,\n  2;  ", 1)
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(stmts))
	}
	want := "select   1,\n  2;"
	if stmts[0].SQL != want {
		t.Fatalf("statement = %q, want %q", stmts[0].SQL, want)
	}
}
