package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func withMockConnect(t *testing.T, mock pgxmock.PgxConnIface) {
	t.Helper()
	prevConnect := connect
	connect = func(ctx context.Context, databaseURL string) (conn, error) {
		return mock, nil
	}
	t.Cleanup(func() { connect = prevConnect })
}

func withFakeClock(t *testing.T) (advance func(d time.Duration)) {
	t.Helper()
	cur := time.Unix(0, 0)
	prevNow, prevSleep := now, sleep
	now = func() time.Time { return cur }
	sleep = func(d time.Duration) { cur = cur.Add(d) }
	t.Cleanup(func() {
		now = prevNow
		sleep = prevSleep
	})
	return func(d time.Duration) { cur = cur.Add(d) }
}

func newMock(t *testing.T) pgxmock.PgxConnIface {
	t.Helper()
	mock, err := pgxmock.NewConn(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("pgxmock.NewConn: %v", err)
	}
	t.Cleanup(func() { _ = mock.Close(context.Background()) })
	return mock
}

func TestAcquireSucceedsOnFirstTry(t *testing.T) {
	mock := newMock(t)
	withMockConnect(t, mock)
	withFakeClock(t)

	mock.ExpectQuery("SELECT current_database()").WillReturnRows(
		mock.NewRows([]string{"current_database"}).AddRow("app"))
	mock.ExpectQuery("SELECT pg_try_advisory_lock($1)").WithArgs(Key("app")).
		WillReturnRows(mock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))

	l, err := Acquire(context.Background(), "postgres://x", 30*time.Second)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if l.key != Key("app") {
		t.Fatalf("Lock.key = %d, want %d", l.key, Key("app"))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAcquireRetriesThenSucceeds(t *testing.T) {
	mock := newMock(t)
	withMockConnect(t, mock)
	withFakeClock(t)

	mock.ExpectQuery("SELECT current_database()").WillReturnRows(
		mock.NewRows([]string{"current_database"}).AddRow("app"))
	mock.ExpectQuery("SELECT pg_try_advisory_lock($1)").WithArgs(Key("app")).
		WillReturnRows(mock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))
	mock.ExpectQuery("SELECT pg_try_advisory_lock($1)").WithArgs(Key("app")).
		WillReturnRows(mock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))

	l, err := Acquire(context.Background(), "postgres://x", 30*time.Second)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if l == nil {
		t.Fatal("Acquire returned nil lock")
	}
}

func TestAcquireTimesOut(t *testing.T) {
	mock := newMock(t)
	withMockConnect(t, mock)
	withFakeClock(t)

	mock.ExpectQuery("SELECT current_database()").WillReturnRows(
		mock.NewRows([]string{"current_database"}).AddRow("app"))
	// Every poll reports the lock held by someone else; the fake clock
	// advances 200ms per sleep call until the 500ms deadline passes.
	mock.ExpectQuery("SELECT pg_try_advisory_lock($1)").WithArgs(Key("app")).
		WillReturnRows(mock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false)).Times(3)

	_, err := Acquire(context.Background(), "postgres://x", 500*time.Millisecond)
	var want UnavailableError
	if !errors.As(err, &want) {
		t.Fatalf("Acquire error = %v, want UnavailableError", err)
	}
	if want.TimeoutMS != 500 {
		t.Fatalf("UnavailableError.TimeoutMS = %d, want 500", want.TimeoutMS)
	}
}

func TestReleaseSuccess(t *testing.T) {
	mock := newMock(t)
	l := &Lock{conn: mock, key: 42}

	mock.ExpectQuery("SELECT pg_advisory_unlock($1)").WithArgs(int64(42)).
		WillReturnRows(mock.NewRows([]string{"pg_advisory_unlock"}).AddRow(true))
	mock.ExpectClose()

	if err := l.Release(context.Background()); err != nil {
		t.Fatalf("Release error: %v", err)
	}
}

func TestReleaseFalseIsError(t *testing.T) {
	mock := newMock(t)
	l := &Lock{conn: mock, key: 42}

	mock.ExpectQuery("SELECT pg_advisory_unlock($1)").WithArgs(int64(42)).
		WillReturnRows(mock.NewRows([]string{"pg_advisory_unlock"}).AddRow(false))
	mock.ExpectClose()

	err := l.Release(context.Background())
	var want ReleaseFailedError
	if !errors.As(err, &want) {
		t.Fatalf("Release error = %v, want ReleaseFailedError", err)
	}
}
