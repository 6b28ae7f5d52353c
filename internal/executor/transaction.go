package executor

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vellum-db/vellum/internal/postgres"
)

// beginTx opens a transaction for migrationVersion, tagging any failure
// with that version so callers never need to thread it through separately.
func beginTx(ctx context.Context, pool postgres.Pool, migrationVersion int64) (pgx.Tx, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, TransactionBeginFailedError{MigrationVersion: migrationVersion, Message: err.Error()}
	}
	return tx, nil
}

// commitTx commits tx, tagging any failure with migrationVersion.
func commitTx(ctx context.Context, tx pgx.Tx, migrationVersion int64) error {
	if err := tx.Commit(ctx); err != nil {
		return TransactionCommitFailedError{MigrationVersion: migrationVersion, Message: err.Error()}
	}
	return nil
}

// rollbackTx rolls back tx after originalErr caused the migration to abort.
// The rollback failure, if any, always carries originalErr so the first
// cause of the abort is never lost.
func rollbackTx(ctx context.Context, tx pgx.Tx, migrationVersion int64, originalErr error) error {
	if err := tx.Rollback(ctx); err != nil {
		return TransactionRollbackFailedError{
			MigrationVersion: migrationVersion,
			Message:          err.Error(),
			OriginalError:    originalErr.Error(),
		}
	}
	return nil
}
