package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type projectConfig struct {
	Database struct {
		URL          string                         `yaml:"url"`
		Environments map[string]databaseEnvironment `yaml:"environments"`
	} `yaml:"database"`
	Migrations struct {
		Dir string `yaml:"dir"`
	} `yaml:"migrations"`
	Lock struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"lock"`
}

type databaseEnvironment struct {
	URL string `yaml:"url"`
}

func (cfg projectConfig) migrationsDir() string {
	if cfg.Migrations.Dir != "" {
		return cfg.Migrations.Dir
	}
	return "migrations"
}

func (cfg projectConfig) lockTimeout(defaultTimeout time.Duration) time.Duration {
	if cfg.Lock.Timeout > 0 {
		return cfg.Lock.Timeout
	}
	return defaultTimeout
}

func loadProjectConfig(root string) (projectConfig, error) {
	path := filepath.Join(root, "vellum.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return projectConfig{}, nil
		}
		return projectConfig{}, err
	}
	var cfg projectConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return projectConfig{}, err
	}
	return cfg, nil
}

// resolveDatabaseURL applies DATABASE_URL / VELLUM_DATABASE_URL precedence
// over vellum.yaml, per the engine's external interface (spec §6).
func resolveDatabaseURL(cfg projectConfig, envName string) string {
	dsn := cfg.Database.URL
	if envCfg, ok := cfg.Database.Environments[envName]; ok && envCfg.URL != "" {
		dsn = envCfg.URL
	}
	if override := firstNonEmpty(os.Getenv("VELLUM_DATABASE_URL"), os.Getenv("DATABASE_URL")); override != "" {
		dsn = override
	}
	return dsn
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func noColor() bool {
	return os.Getenv("NO_COLOR") != ""
}

// redactDSN hides a connection string's userinfo credential before it is
// echoed back in a diagnostic message.
func redactDSN(dsn string) string {
	scheme := strings.Index(dsn, "://")
	at := strings.LastIndex(dsn, "@")
	if scheme < 0 || at < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***@" + dsn[at+1:]
}
