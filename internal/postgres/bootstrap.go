package postgres

import (
	"context"
	_ "embed"
)

//go:embed bootstrap.sql
var bootstrapSQL string

// Bootstrap creates the vellum schema and its audit tables if they do not
// already exist. It is idempotent and safe to call on every startup.
func Bootstrap(ctx context.Context, pool Pool) error {
	_, err := pool.Exec(ctx, bootstrapSQL)
	return err
}
