package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vellum-db/vellum/internal/cli/doctor"
)

func newDoctorCmd() *cobra.Command {
	var envName string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Inspect the environment for common vellum setup issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProjectConfig(".")
			if err != nil {
				return wrapError("doctor: read project config", err, "Ensure vellum.yaml exists in the project root.", 1)
			}
			opts := doctor.Options{
				ConfigPath:    "vellum.yaml",
				MigrationsDir: cfg.migrationsDir(),
				DatabaseURL:   resolveDatabaseURL(cfg, envName),
			}
			results := doctor.Run(cmd.Context(), opts)
			printer := doctor.NewPrinter(cmd.OutOrStdout())
			printer.PrintHeader("vellum doctor")
			printer.PrintSystem(runtime.GOOS, runtime.GOARCH, runtime.Version())
			for _, res := range results {
				printer.PrintCheck(res)
			}
			printer.Summary(results)
			if doctor.HasFailures(results) {
				return CommandError{Message: "doctor: one or more checks failed", ExitCode: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envName, "env", "", "Target environment profile from vellum.yaml")
	return cmd
}
