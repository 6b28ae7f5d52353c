package executor

import (
	"context"
	"time"

	"github.com/vellum-db/vellum/internal/lock"
	"github.com/vellum-db/vellum/internal/migration"
)

// Dispatcher drives one full run: acquire the advisory lock, dispatch to
// the Apply or Dry-Run runner, then release the lock, preserving whichever
// error occurred first across every stage.
//
// State machine: preparing -> locked -> running -> releasing -> done. Every
// non-done state has a failure edge straight into done{failed} that keeps
// the first cause, even when a later stage (lock release) also fails.
type Dispatcher struct {
	DatabaseURL string
	LockTimeout time.Duration
	Apply       *Runner
	DryRun      *DryRunner

	// dispatchFn is indirected so tests can substitute the run stage
	// without a real pool; NewDispatcher wires it to runMode.
	dispatchFn func(ctx context.Context, mode Mode, migrations []migration.Migration) (RunReport, error)
}

// NewDispatcher constructs a Dispatcher with the default lock timeout.
func NewDispatcher(databaseURL string, apply *Runner, dryRun *DryRunner) *Dispatcher {
	d := &Dispatcher{
		DatabaseURL: databaseURL,
		LockTimeout: lock.DefaultTimeout,
		Apply:       apply,
		DryRun:      dryRun,
	}
	d.dispatchFn = d.runMode
	return d
}

// locker is the subset of *lock.Lock the dispatcher depends on, narrowed so
// tests can substitute a fake without a real database connection.
type locker interface {
	Release(ctx context.Context) error
}

// acquireLock is indirected so tests can substitute lock acquisition.
var acquireLock = func(ctx context.Context, databaseURL string, timeout time.Duration) (locker, error) {
	return lock.Acquire(ctx, databaseURL, timeout)
}

// Run acquires the advisory lock, runs migrations in mode, and releases the
// lock. If the inner run fails and release also fails, the returned error
// is the release error with the inner failure preserved as its original
// cause.
func (d *Dispatcher) Run(ctx context.Context, mode Mode, migrations []migration.Migration) (RunReport, error) {
	l, err := acquireLock(ctx, d.DatabaseURL, d.LockTimeout)
	if err != nil {
		return RunReport{}, err
	}

	dispatch := d.dispatchFn
	if dispatch == nil {
		dispatch = d.runMode
	}
	report, runErr := dispatch(ctx, mode, migrations)

	if relErr := l.Release(ctx); relErr != nil {
		if releaseErr, ok := relErr.(lock.ReleaseFailedError); ok && runErr != nil {
			releaseErr.OriginalError = runErr.Error()
			return RunReport{}, releaseErr
		}
		return RunReport{}, relErr
	}

	return report, runErr
}

func (d *Dispatcher) runMode(ctx context.Context, mode Mode, migrations []migration.Migration) (RunReport, error) {
	switch mode {
	case DryRun:
		return d.DryRun.Run(ctx, migrations)
	default:
		return d.Apply.Run(ctx, migrations)
	}
}
