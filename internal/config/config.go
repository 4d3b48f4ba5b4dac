// Package config loads the orchestrator's YAML configuration, applies
// environment overrides, and (via Watcher) reloads it on change. Grounded
// on the teacher's internal/config package: config.Load(path) is the same
// entry point cmd/config_cmd.go calls, and Watcher is hotreload.go almost
// unchanged — only the reloaded shape differs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the orchestrator's full runtime configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Worker    WorkerConfig    `yaml:"worker"`
	Retry     RetryConfig     `yaml:"retry"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig names the State Store's connection string. DSN's scheme
// prefix (sqlite: or postgres://) selects the driver, per
// store.DriverFromDSN.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// SchedulerConfig controls the scheduler tick loop.
type SchedulerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// WorkerConfig controls the Worker Manager's pool.
type WorkerConfig struct {
	PoolSize     int           `yaml:"pool_size"`
	PollInterval time.Duration `yaml:"poll_interval"`
	GracePeriod  time.Duration `yaml:"grace_period"`
}

// RetryConfig controls the Task Runner's per-task backoff policy.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Factor      float64       `yaml:"factor"`
	Jitter      float64       `yaml:"jitter"`
}

// LogConfig holds the log settings. Load validates Level; neither field is
// applied to slog's default handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Defaults returns the orchestrator's baseline configuration, applied
// before the YAML file and env overrides are layered on top.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			DSN:          "sqlite:./orchestrator.db",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Scheduler: SchedulerConfig{
			TickInterval: 5 * time.Second,
		},
		Worker: WorkerConfig{
			PoolSize:     4,
			PollInterval: time.Second,
			GracePeriod:  30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Factor:      2,
			Jitter:      0.2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides (DATABASE_URL, LOG_LEVEL). A missing file is not
// an error: Load falls back to Defaults()+env so `serve` works with zero
// config present, matching the teacher's config.Load tolerance for a
// missing ~/.goclaw/config.yaml on first run.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through with defaults
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func validate(cfg *Config) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("config: database.dsn (or DATABASE_URL) must be set")
	}
	if cfg.Worker.PoolSize <= 0 {
		return fmt.Errorf("config: worker.pool_size must be positive, got %d", cfg.Worker.PoolSize)
	}
	if cfg.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("config: retry.max_attempts must be positive, got %d", cfg.Retry.MaxAttempts)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level must be one of debug/info/warn/error, got %q", cfg.Log.Level)
	}
	return nil
}
