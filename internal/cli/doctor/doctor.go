package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vellum-db/vellum/internal/migration"
)

// Result captures the outcome of a single diagnostic check.
type Result struct {
	Name    string
	Status  Status
	Details string
}

type Status string

const (
	StatusOK    Status = "ok"
	StatusWarn  Status = "warn"
	StatusError Status = "error"
)

// Options parameterizes the checks that need a resolved configuration.
type Options struct {
	ConfigPath    string
	MigrationsDir string
	DatabaseURL   string
}

// Run executes the full suite of doctor checks against opts.
func Run(ctx context.Context, opts Options) []Result {
	results := []Result{
		checkConfig(opts),
		checkMigrationsDir(opts),
	}
	results = append(results, checkDatabase(ctx, opts))
	return results
}

func HasFailures(results []Result) bool {
	for _, res := range results {
		if res.Status == StatusError {
			return true
		}
	}
	return false
}

func checkConfig(opts Options) Result {
	info, err := os.Stat(opts.ConfigPath)
	if err == nil {
		if info.IsDir() {
			return Result{Name: "vellum.yaml", Status: StatusError, Details: "expected file but found directory"}
		}
		return Result{Name: "vellum.yaml", Status: StatusOK}
	}
	if errors.Is(err, os.ErrNotExist) {
		return Result{Name: "vellum.yaml", Status: StatusWarn, Details: "config missing; set DATABASE_URL or create vellum.yaml"}
	}
	return Result{Name: "vellum.yaml", Status: StatusError, Details: err.Error()}
}

func checkMigrationsDir(opts Options) Result {
	dir := opts.MigrationsDir
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: "migrations directory", Status: StatusWarn, Details: fmt.Sprintf("missing %s/", dir)}
		}
		return Result{Name: "migrations directory", Status: StatusError, Details: err.Error()}
	}
	if !info.IsDir() {
		return Result{Name: "migrations directory", Status: StatusError, Details: "exists but is not a directory"}
	}
	migrations, err := migration.Discover(os.DirFS(dir), ".")
	if err != nil {
		var empty migration.EmptyMigrationsDirError
		if errors.As(err, &empty) {
			return Result{Name: "migrations directory", Status: StatusWarn, Details: "no .sql files found"}
		}
		return Result{Name: "migrations directory", Status: StatusError, Details: err.Error()}
	}
	return Result{Name: "migrations directory", Status: StatusOK, Details: fmt.Sprintf("%d migration file(s)", len(migrations))}
}

func checkDatabase(ctx context.Context, opts Options) Result {
	if opts.DatabaseURL == "" {
		return Result{Name: "database connection", Status: StatusWarn, Details: "DATABASE_URL / VELLUM_DATABASE_URL not set and database.url is empty"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(pingCtx, opts.DatabaseURL)
	if err != nil {
		return Result{Name: "database connection", Status: StatusError, Details: redactURL(opts.DatabaseURL, err.Error())}
	}
	defer pool.Close()

	if err := pool.Ping(pingCtx); err != nil {
		return Result{Name: "database connection", Status: StatusError, Details: redactURL(opts.DatabaseURL, err.Error())}
	}
	return Result{Name: "database connection", Status: StatusOK, Details: "reachable"}
}

// redactURL strips a userinfo credential from the connection string before
// it is echoed back inside an error message.
func redactURL(dsn, detail string) string {
	if at := strings.Index(dsn, "@"); at >= 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme < at {
			detail = strings.ReplaceAll(detail, dsn, dsn[:scheme+3]+"***@"+dsn[at+1:])
		}
	}
	return detail
}
