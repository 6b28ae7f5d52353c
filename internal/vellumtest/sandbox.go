// Package vellumtest provides a pgxmock-backed test harness shared across
// the engine's packages, so each one doesn't reinvent connection mocking.
package vellumtest

import (
	"context"
	stdtesting "testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/vellum-db/vellum/internal/postgres"
)

// mockPool adapts pgxmock's connection (whose Close takes a context, as on
// *pgx.Conn) to postgres.Pool (whose Close takes none, as on
// *pgxpool.Pool).
type mockPool struct {
	pgxmock.PgxConnIface
}

func (m *mockPool) Close() {
	_ = m.PgxConnIface.Close(context.Background())
}

var _ postgres.Pool = (*mockPool)(nil)

// Sandbox wraps a mocked connection and cancellable context for tests that
// exercise executor or lock logic without a live database.
type Sandbox struct {
	ctx    context.Context
	cancel context.CancelFunc
	mock   pgxmock.PgxConnIface
	pool   postgres.Pool
}

// NewSandbox returns a Sandbox backed by pgxmock with exact-match query
// semantics, matching how the engine's SQL is written (no query builders
// that would require regex matching).
func NewSandbox(tb stdtesting.TB) *Sandbox {
	tb.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	mock, err := pgxmock.NewConn(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	if err != nil {
		tb.Fatalf("pgxmock.NewConn: %v", err)
	}
	sb := &Sandbox{
		ctx:    ctx,
		cancel: cancel,
		mock:   mock,
		pool:   &mockPool{PgxConnIface: mock},
	}
	tb.Cleanup(sb.Close)
	return sb
}

// Context returns the sandbox's cancellable context.
func (s *Sandbox) Context() context.Context { return s.ctx }

// Mock exposes the underlying pgxmock connection for expectation setup.
func (s *Sandbox) Mock() pgxmock.PgxConnIface { return s.mock }

// Pool returns the postgres.Pool view of the mocked connection.
func (s *Sandbox) Pool() postgres.Pool { return s.pool }

// Close cancels the sandbox context and closes the mocked connection.
func (s *Sandbox) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	_ = s.mock.Close(context.Background())
}

// ExpectationsWereMet fails tb if any configured pgxmock expectation was
// never satisfied.
func (s *Sandbox) ExpectationsWereMet(tb stdtesting.TB) {
	tb.Helper()
	if err := s.mock.ExpectationsWereMet(); err != nil {
		tb.Fatalf("pgxmock expectations: %v", err)
	}
}
