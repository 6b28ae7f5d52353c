package lock

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// lockKeyNamespace is XOR'd into the FNV-1a hash of a database name to
// derive the advisory lock key. Fixed so the key is reproducible across
// processes and releases.
const lockKeyNamespace uint64 = 0x5645_4C4C_554D_4C4B

const (
	fnvOffsetBasis uint64 = 0xcbf29ce484222325
	fnvPrime       uint64 = 0x100000001b3
)

// Key derives a deterministic 64-bit advisory lock key from a database name
// via FNV-1a hashing XOR'd with lockKeyNamespace, then reinterpreted as a
// signed int64 for pg_try_advisory_lock / pg_advisory_unlock. Equal inputs
// always yield equal keys; different names collide only on FNV collisions.
func Key(databaseName string) int64 {
	hash := fnvOffsetBasis
	for i := 0; i < len(databaseName); i++ {
		hash ^= uint64(databaseName[i])
		hash *= fnvPrime
	}
	mixed := hash ^ lockKeyNamespace
	return int64(mixed)
}

// conn is the subset of *pgx.Conn the advisory lock needs, kept narrow so
// tests can substitute pgxmock's connection.
type conn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

func currentDatabase(ctx context.Context, c conn) (string, error) {
	var name string
	if err := c.QueryRow(ctx, "SELECT current_database()").Scan(&name); err != nil {
		return "", AcquireFailedError{Message: "current_database query failed: " + err.Error()}
	}
	return name, nil
}

func tryLock(ctx context.Context, c conn, key int64) (bool, error) {
	var acquired bool
	if err := c.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		return false, AcquireFailedError{Message: "pg_try_advisory_lock failed: " + err.Error()}
	}
	return acquired, nil
}

func unlock(ctx context.Context, c conn, key int64) (bool, error) {
	var released bool
	if err := c.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&released); err != nil {
		return false, ReleaseFailedError{Message: "pg_advisory_unlock failed: " + err.Error()}
	}
	return released, nil
}
