package executor

// Mode selects between committing migrations (Apply) and validating them
// inside a transaction that is always rolled back (DryRun).
type Mode int

const (
	// Apply executes pending migrations, committing each one atomically.
	Apply Mode = iota
	// DryRun executes pending migrations inside a transaction that is
	// always rolled back, regardless of outcome.
	DryRun
)

// String implements fmt.Stringer, matching the value persisted in
// vellum.vellum_runs.mode.
func (m Mode) String() string {
	switch m {
	case DryRun:
		return "dry_run"
	default:
		return "apply"
	}
}
