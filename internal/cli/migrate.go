package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vellum-db/vellum/internal/executor"
	"github.com/vellum-db/vellum/internal/lock"
	"github.com/vellum-db/vellum/internal/migration"
	"github.com/vellum-db/vellum/internal/observability/tracing"
	"github.com/vellum-db/vellum/internal/postgres"
)

// vellumVersion is overridden at build time with -ldflags; it is stored
// verbatim in every vellum_runs row.
var vellumVersion = "dev"

func newMigrateCmd() *cobra.Command {
	var (
		mode    string
		envName string
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or validate pending migrations against the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProjectConfig(".")
			if err != nil {
				return wrapError("migrate: read project config", err, "Ensure vellum.yaml exists in the project root.", 1)
			}
			dsn := resolveDatabaseURL(cfg, envName)
			if dsn == "" {
				return CommandError{
					Message:    "migrate: database.url is not configured",
					Suggestion: "Set database.url in vellum.yaml, configure database.environments, or export DATABASE_URL / VELLUM_DATABASE_URL.",
					ExitCode:   1,
				}
			}

			execMode, err := parseMode(mode)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			migrations, err := migration.Discover(os.DirFS(cfg.migrationsDir()), ".")
			if err != nil {
				return wrapError("migrate: discover migrations", err, "Check the migrations directory exists and filenames match <version>_<name>.sql.", 1)
			}
			fmt.Fprintf(out, "migrate: discovered %d migration(s) in %s\n", len(migrations), cfg.migrationsDir())

			pool, err := postgres.Connect(ctx, dsn, tracing.NoopTracer{})
			if err != nil {
				return wrapError(fmt.Sprintf("migrate: connect database %s", redactDSN(dsn)), err, "Verify the database is reachable and credentials are correct.", 1)
			}
			defer pool.Close()

			if err := postgres.Bootstrap(ctx, pool); err != nil {
				return wrapError("migrate: bootstrap vellum schema", err, "Ensure the connecting role can create schemas and tables.", 1)
			}

			apply := executor.NewRunner(pool, vellumVersion)
			dryRun := executor.NewDryRunner(pool, vellumVersion)
			dispatcher := executor.NewDispatcher(dsn, apply, dryRun)
			dispatcher.LockTimeout = cfg.lockTimeout(lock.DefaultTimeout)

			fmt.Fprintf(out, "migrate: running in %s mode\n", execMode)
			report, err := dispatcher.Run(ctx, execMode, migrations)
			if err != nil {
				return translateMigrateError(err)
			}

			fmt.Fprintf(out, "migrate: run %s complete - applied=%d skipped=%d\n", report.RunID, report.Applied, report.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "apply", "Execution mode: apply or dry-run")
	cmd.Flags().StringVar(&envName, "env", "", "Target environment profile from vellum.yaml")
	return cmd
}

func parseMode(mode string) (executor.Mode, error) {
	switch strings.ToLower(strings.ReplaceAll(mode, "_", "-")) {
	case "", "apply":
		return executor.Apply, nil
	case "dry-run":
		return executor.DryRun, nil
	default:
		return 0, CommandError{
			Message:    fmt.Sprintf("migrate: unsupported mode %q", mode),
			Suggestion: "Use --mode apply or --mode dry-run.",
			ExitCode:   1,
		}
	}
}

// translateMigrateError maps a core error kind to the exit codes from §6:
// lock unavailable is 3, a failure to acquire the lock (connectivity,
// permissions) is 1, and every other engine failure is a migration failure (2).
func translateMigrateError(err error) error {
	var unavailable lock.UnavailableError
	if errors.As(err, &unavailable) {
		return CommandError{
			Message:    fmt.Sprintf("migrate: %s", unavailable.Error()),
			Cause:      err,
			Suggestion: "Another process is holding the advisory lock. Wait for it to finish or investigate a stuck run.",
			ExitCode:   3,
		}
	}
	var acquireFailed lock.AcquireFailedError
	if errors.As(err, &acquireFailed) {
		return wrapError("migrate: acquire advisory lock", err, "Verify the database is reachable and the connecting role can open new connections.", 1)
	}

	var mismatch executor.ChecksumMismatchError
	if errors.As(err, &mismatch) {
		return wrapError(fmt.Sprintf("migrate: %s", mismatch.Error()), err, "A previously applied migration file was modified. Restore its original contents or create a new migration instead.", 2)
	}
	var statementFailed executor.StatementExecutionFailedError
	if errors.As(err, &statementFailed) {
		return wrapError(fmt.Sprintf("migrate: %s", statementFailed.Error()), err, "Fix the failing statement and re-run; already-applied migrations were left committed.", 2)
	}
	var dryRunValidation executor.DryRunValidationError
	if errors.As(err, &dryRunValidation) {
		return wrapError(fmt.Sprintf("migrate: %s", dryRunValidation.Error()), err, "Fix the failing statement before applying.", 2)
	}

	return wrapError("migrate: run failed", err, "", 2)
}
