// Package config loads the diffwatch YAML configuration.
//
// Loading follows a fixed pipeline: .env files, ${VAR} expansion, YAML
// decoding, normalization of enumerations, defaults, validation.
package config

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
)

// Version is the only configuration version this build understands.
const Version = "1"

// Config is the root configuration document.
type Config struct {
	Version    string           `yaml:"version"`
	Source     SourceConfig     `yaml:"source"`
	Session    SessionConfig    `yaml:"session"`
	Identity   IdentityConfig   `yaml:"identity"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	HTTP       HTTPConfig       `yaml:"http"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// SourceConfig selects and configures the event source adapter.
type SourceConfig struct {
	Type     SourceType     `yaml:"type"`
	Postgres PostgresSource `yaml:"postgres,omitempty"`
	NATS     NATSSource     `yaml:"nats,omitempty"`
	SQLite   SQLiteSource   `yaml:"sqlite,omitempty"`
	Retry    RetryConfig    `yaml:"retry"`
}

// PostgresSource reads the backend's update table and listens for inserts.
type PostgresSource struct {
	DSN     string `yaml:"dsn"`
	Table   string `yaml:"table"`
	Channel string `yaml:"channel"`
	// Repository restricts the backfill and live stream to one owner/name.
	RepositoryOwner string `yaml:"repository_owner,omitempty"`
	RepositoryName  string `yaml:"repository_name,omitempty"`
	// Lookback is how many ids behind the cursor each read re-scans for
	// rows that committed out of id order. Zero uses the adapter default.
	Lookback int64 `yaml:"lookback,omitempty"`
}

// NATSSource consumes update records published on a JetStream stream.
type NATSSource struct {
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject"`
}

// SQLiteSource tails an update table in a local SQLite file.
type SQLiteSource struct {
	Path         string `yaml:"path"`
	Table        string `yaml:"table"`
	PollInterval string `yaml:"poll_interval"`
	// Follow keeps tailing after the backfill. Replay turns it off.
	Follow *bool `yaml:"follow,omitempty"`
}

// RetryConfig controls source reconnects.
type RetryConfig struct {
	Backoff      string `yaml:"backoff"`
	InitialDelay string `yaml:"initial_delay"`
	MaxDelay     string `yaml:"max_delay"`
	// MaxRetries bounds reconnects. Zero or negative retries until shutdown.
	MaxRetries int `yaml:"max_retries"`
}

// SessionConfig tunes the ingestion loop.
type SessionConfig struct {
	InboxSize      int    `yaml:"inbox_size"`
	PublishTimeout string `yaml:"publish_timeout"`
}

// IdentityConfig tunes filename canonicalization.
type IdentityConfig struct {
	NoisePrefixes    []string `yaml:"noise_prefixes"`
	KeepDirectories  bool     `yaml:"keep_directories"`
	PreferStructured *bool    `yaml:"prefer_structured,omitempty"`
}

// ReconcileConfig selects the duplicate write policy.
type ReconcileConfig struct {
	DuplicateWrites string `yaml:"duplicate_writes"`
}

// HTTPConfig configures the display API listener. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MonitoringConfig holds observability settings.
type MonitoringConfig struct {
	Metrics        MonitoringMetrics `yaml:"metrics"`
	Logging        MonitoringLogging `yaml:"logging"`
	ReportInterval string            `yaml:"report_interval"`
}

type MonitoringMetrics struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type MonitoringLogging struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads, normalizes, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	if loaded, err := loadEnvFiles(); err == nil {
		slog.Debug("Loaded environment file", slog.String("path", loaded))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.ConfigError("configuration file not found").
				WithContext("path", path).
				UserAction().
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read configuration file").
			WithContext("path", path).
			Build()
	}
	return Parse(data)
}

// Parse runs the loading pipeline on an in-memory document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "decode configuration").Build()
	}
	if cfg.Version != "" && cfg.Version != Version {
		return nil, ferrors.ConfigError("unsupported configuration version").
			WithContext("version", cfg.Version).
			WithContext("expected", Version).
			Build()
	}

	res := Normalize(&cfg)
	for _, w := range res.Warnings {
		slog.Warn("Configuration normalized", slog.String("detail", w))
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a fully defaulted configuration with a static source.
func Default() *Config {
	cfg := &Config{Version: Version}
	ApplyDefaults(cfg)
	return cfg
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists").
			WithContext("path", path).
			WithContext("hint", "use --force to overwrite").
			UserAction().
			Build()
	}

	example := Default()
	example.Source = SourceConfig{
		Type: SourcePostgres,
		Postgres: PostgresSource{
			DSN:     "${DIFFWATCH_DATABASE_URL}",
			Table:   DefaultTable,
			Channel: DefaultChannel,
		},
		Retry: example.Source.Retry,
	}
	example.HTTP.Addr = ":8080"
	example.Monitoring.Metrics.Enabled = true

	data, err := yaml.Marshal(example)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "encode example configuration").Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "write configuration file").
			WithContext("path", path).
			Build()
	}
	return nil
}

// Duration parses a configured duration, returning fallback for empty or
// invalid input. Validation rejects invalid durations before this is used.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
