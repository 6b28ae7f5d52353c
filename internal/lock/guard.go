// Package lock implements the cluster-wide mutual-exclusion guard that
// prevents concurrent migrators from running against the same database. It
// is built on PostgreSQL's session-level advisory lock, held on a dedicated
// connection for the lifetime of one migration run: session-scoped advisory
// locks are released when their connection closes, so this connection must
// never be borrowed from a pool that recycles connections.
package lock

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// DefaultTimeout is how long Acquire polls for the lock before giving up.
const DefaultTimeout = 30 * time.Second

// pollInterval is how often Acquire retries pg_try_advisory_lock.
const pollInterval = 200 * time.Millisecond

// connect opens the dedicated lock connection. Overridden in tests.
var connect = func(ctx context.Context, databaseURL string) (conn, error) {
	return pgx.Connect(ctx, databaseURL)
}

// sleep and now are indirected so Acquire's poll loop can be driven by a
// fake clock in tests without waiting out real timeouts.
var (
	sleep = time.Sleep
	now   = time.Now
)

// Lock holds the dedicated connection for one migration run's advisory
// lock. The zero value is not usable; obtain one via Acquire.
type Lock struct {
	conn conn
	key  int64
}

// Acquire opens a dedicated connection to databaseURL, derives the lock key
// from current_database(), and polls pg_try_advisory_lock every 200ms until
// it succeeds or timeout elapses.
func Acquire(ctx context.Context, databaseURL string, timeout time.Duration) (*Lock, error) {
	c, err := connect(ctx, databaseURL)
	if err != nil {
		return nil, AcquireFailedError{Message: "connect failed: " + err.Error()}
	}

	dbName, err := currentDatabase(ctx, c)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	key := Key(dbName)

	deadline := now().Add(timeout)
	for {
		acquired, err := tryLock(ctx, c, key)
		if err != nil {
			_ = c.Close(ctx)
			return nil, err
		}
		if acquired {
			return &Lock{conn: c, key: key}, nil
		}
		if !now().Before(deadline) {
			_ = c.Close(ctx)
			return nil, UnavailableError{TimeoutMS: timeout.Milliseconds()}
		}
		sleep(pollInterval)
	}
}

// Release calls pg_advisory_unlock on the lock's dedicated connection, then
// closes it. Closing the connection also releases the lock at the session
// level, so even a crashing process eventually frees it — but a clean
// Release still surfaces unlock failures rather than masking them.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || l.conn == nil {
		return ReleaseFailedError{Message: "lock connection missing"}
	}

	released, unlockErr := unlock(ctx, l.conn, l.key)
	closeErr := l.conn.Close(ctx)
	l.conn = nil

	if unlockErr != nil {
		msg := unlockErr.Error()
		if closeErr != nil {
			msg += "; close_error=" + closeErr.Error()
		}
		return ReleaseFailedError{Message: msg}
	}
	if !released {
		msg := "pg_advisory_unlock returned false"
		if closeErr != nil {
			msg += "; close_error=" + closeErr.Error()
		}
		return ReleaseFailedError{Message: msg}
	}
	if closeErr != nil {
		return ReleaseFailedError{Message: "connection close failed: " + closeErr.Error()}
	}
	return nil
}
