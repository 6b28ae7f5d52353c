package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vellum-db/vellum/internal/executor"
	"github.com/vellum-db/vellum/internal/migration"
	"github.com/vellum-db/vellum/internal/observability/tracing"
	"github.com/vellum-db/vellum/internal/postgres"
)

func newStatusCmd() *cobra.Command {
	var envName string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProjectConfig(".")
			if err != nil {
				return wrapError("status: read project config", err, "Ensure vellum.yaml exists in the project root.", 1)
			}
			dsn := resolveDatabaseURL(cfg, envName)
			if dsn == "" {
				return CommandError{
					Message:    "status: database.url is not configured",
					Suggestion: "Set database.url in vellum.yaml or export DATABASE_URL.",
					ExitCode:   1,
				}
			}

			ctx := cmd.Context()
			migrations, err := migration.Discover(os.DirFS(cfg.migrationsDir()), ".")
			if err != nil {
				return wrapError("status: discover migrations", err, "Check the migrations directory exists and filenames match <version>_<name>.sql.", 1)
			}

			pool, err := postgres.Connect(ctx, dsn, tracing.NoopTracer{})
			if err != nil {
				return wrapError(fmt.Sprintf("status: connect database %s", redactDSN(dsn)), err, "Verify the database is reachable and credentials are correct.", 1)
			}
			defer pool.Close()

			report, err := executor.GetStatus(ctx, pool, migrations)
			if err != nil {
				return wrapError("status: query engine state", err, "Ensure `vellum migrate` has bootstrapped the vellum schema.", 1)
			}

			out := cmd.OutOrStdout()
			if report.SchemaMissing {
				fmt.Fprintln(out, "vellum schema not initialized; run `vellum migrate` to bootstrap it")
				return nil
			}
			fmt.Fprintf(out, "Applied:         %d\n", report.Applied)
			fmt.Fprintf(out, "Pending:         %d\n", report.Pending)
			if report.LastApplied != "" {
				fmt.Fprintf(out, "Last applied:    %s\n", report.LastApplied)
			} else {
				fmt.Fprintln(out, "Last applied:    (none)")
			}
			if report.LastRunStatus != "" {
				fmt.Fprintf(out, "Last run status: %s\n", report.LastRunStatus)
			} else {
				fmt.Fprintln(out, "Last run status: (none)")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envName, "env", "", "Target environment profile from vellum.yaml")
	return cmd
}
