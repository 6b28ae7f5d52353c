package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestMigrateCmdFailsWithoutDatabaseURL(t *testing.T) {
	withTempWorkdir(t)

	cmd := newMigrateCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)

	err := cmd.RunE(cmd, []string{})
	if err == nil {
		t.Fatal("expected error when database.url is unconfigured")
	}
	if !strings.Contains(err.Error(), "database.url is not configured") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStatusCmdFailsWithoutDatabaseURL(t *testing.T) {
	withTempWorkdir(t)

	cmd := newStatusCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)

	err := cmd.RunE(cmd, []string{})
	if err == nil {
		t.Fatal("expected error when database.url is unconfigured")
	}
	if !strings.Contains(err.Error(), "database.url is not configured") {
		t.Fatalf("unexpected error: %v", err)
	}
}
