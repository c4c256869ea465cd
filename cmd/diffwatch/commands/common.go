package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/diffwatch/internal/config"
	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/identity"
	"git.home.luguber.info/inful/diffwatch/internal/metrics"
	"git.home.luguber.info/inful/diffwatch/internal/reconcile"
	"git.home.luguber.info/inful/diffwatch/internal/session"
	"git.home.luguber.info/inful/diffwatch/internal/source"
	"git.home.luguber.info/inful/diffwatch/internal/source/natssource"
	"git.home.luguber.info/inful/diffwatch/internal/source/pgsource"
	"git.home.luguber.info/inful/diffwatch/internal/source/sqlitesource"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
}

// CLI definition and global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"diffwatch.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Watch   WatchCmd   `cmd:"" help:"Follow the configured event source and serve the display API"`
	Replay  ReplayCmd  `cmd:"" help:"Reconcile a recorded SQLite update table and print the comparisons"`
	Check   CheckCmd   `cmd:"" help:"Validate a JSON array of update records"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	Trigger TriggerCmd `cmd:"" help:"Print the Postgres trigger that feeds the LISTEN channel"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// configureLogging replaces the default logger with the configured level and
// format. --verbose still wins over the configured level.
func configureLogging(cfg *config.Config, verbose bool) *slog.Logger {
	level := cfg.Monitoring.Logging.Level.Slog()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Monitoring.Logging.Format == config.LogFormatJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// loadOrDefault loads path, falling back to defaults when the file does not
// exist. Any other load failure is returned.
func loadOrDefault(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newSession builds a session from the identity, reconcile and session
// sections.
func newSession(cfg *config.Config, logger *slog.Logger, recorder metrics.Recorder) (*session.Session, error) {
	policy, err := reconcile.ParsePolicy(cfg.Reconcile.DuplicateWrites)
	if err != nil {
		return nil, err
	}
	r := reconcile.New(
		reconcile.WithPolicy(policy),
		reconcile.WithExtractor(identity.New(cfg.Identity.Options())),
	)
	return session.New(session.Config{
		InboxSize:      cfg.Session.InboxSize,
		PublishTimeout: config.Duration(cfg.Session.PublishTimeout, 0),
	},
		session.WithLogger(logger),
		session.WithRecorder(recorder),
		session.WithReconciler(r),
	), nil
}

// newSource builds the adapter named by source.type.
func newSource(cfg config.SourceConfig, hooks source.Hooks) (source.Source, error) {
	switch cfg.Type {
	case config.SourcePostgres:
		return pgsource.New(pgsource.Config{
			DSN:             cfg.Postgres.DSN,
			Table:           cfg.Postgres.Table,
			Channel:         cfg.Postgres.Channel,
			RepositoryOwner: cfg.Postgres.RepositoryOwner,
			RepositoryName:  cfg.Postgres.RepositoryName,
			Lookback:        cfg.Postgres.Lookback,
		}, hooks), nil
	case config.SourceNATS:
		return natssource.New(natssource.Config{
			URL:     cfg.NATS.URL,
			Stream:  cfg.NATS.Stream,
			Subject: cfg.NATS.Subject,
		}, hooks), nil
	case config.SourceSQLite:
		follow := cfg.SQLite.Follow == nil || *cfg.SQLite.Follow
		return sqlitesource.New(sqlitesource.Config{
			Path:         cfg.SQLite.Path,
			Table:        cfg.SQLite.Table,
			PollInterval: config.Duration(cfg.SQLite.PollInterval, 0),
			Follow:       follow,
		}, hooks), nil
	case config.SourceStatic:
		return source.NewStatic("static", nil), nil
	default:
		return nil, ferrors.ConfigError("unknown source type").
			WithContext("type", string(cfg.Type)).
			Build()
	}
}
