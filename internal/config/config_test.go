package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/identity"
	"git.home.luguber.info/inful/diffwatch/internal/retry"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("version: \"1\"\n"))
	require.NoError(t, err)

	assert.Equal(t, SourceStatic, cfg.Source.Type)
	assert.Equal(t, DefaultTable, cfg.Source.Postgres.Table)
	assert.Equal(t, DefaultChannel, cfg.Source.Postgres.Channel)
	assert.Equal(t, DefaultInboxSize, cfg.Session.InboxSize)
	assert.Equal(t, "first", cfg.Reconcile.DuplicateWrites)
	assert.Equal(t, LogLevelInfo, cfg.Monitoring.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Monitoring.Logging.Format)
	assert.Equal(t, []string{identity.DefaultNoisePrefix}, cfg.Identity.NoisePrefixes)
	require.NotNil(t, cfg.Identity.PreferStructured)
	assert.True(t, *cfg.Identity.PreferStructured)
	require.NotNil(t, cfg.Source.SQLite.Follow)
	assert.True(t, *cfg.Source.SQLite.Follow)
}

func TestParse_NormalizesEnumerations(t *testing.T) {
	doc := `
source:
  type: Supabase
  postgres:
    dsn: postgres://localhost/app
  retry:
    backoff: EXP
reconcile:
  duplicate_writes: " Latest "
monitoring:
  logging:
    level: WARNING
    format: yaml
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, SourcePostgres, cfg.Source.Type)
	assert.Equal(t, string(retry.Exponential), cfg.Source.Retry.Backoff)
	assert.Equal(t, "latest", cfg.Reconcile.DuplicateWrites)
	assert.Equal(t, LogLevelWarn, cfg.Monitoring.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Monitoring.Logging.Format)
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("DIFFWATCH_TEST_DSN", "postgres://db/updates")
	cfg, err := Parse([]byte("source:\n  type: postgres\n  postgres:\n    dsn: ${DIFFWATCH_TEST_DSN}\n"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/updates", cfg.Source.Postgres.DSN)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := map[string]string{
		"missing dsn":         "source:\n  type: postgres\n",
		"unknown source":      "source:\n  type: kafka\n",
		"bad policy":          "reconcile:\n  duplicate_writes: newest\n",
		"bad duration":        "session:\n  publish_timeout: soon\n",
		"bad channel":         "source:\n  type: postgres\n  postgres:\n    dsn: x\n    channel: \"drop table\"\n",
		"sqlite without path": "source:\n  type: sqlite\n",
		"negative lookback":   "source:\n  type: postgres\n  postgres:\n    dsn: x\n    lookback: -1\n",
		"wrong version":       "version: \"9\"\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestInitRoundTrip(t *testing.T) {
	t.Setenv("DIFFWATCH_DATABASE_URL", "postgres://localhost/app")
	path := filepath.Join(t.TempDir(), "diffwatch.yaml")

	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false), "existing file needs force")
	require.NoError(t, Init(path, true))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "${DIFFWATCH_DATABASE_URL}")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourcePostgres, cfg.Source.Type)
	assert.Equal(t, "postgres://localhost/app", cfg.Source.Postgres.DSN)
	assert.True(t, cfg.Monitoring.Metrics.Enabled)
}

func TestSourceRetryPolicy(t *testing.T) {
	cfg := Default()
	cfg.Source.Retry = RetryConfig{Backoff: "linear", InitialDelay: "100ms", MaxDelay: "1s", MaxRetries: 3}
	p := cfg.Source.RetryPolicy()
	assert.Equal(t, retry.Linear, p.Mode)
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.True(t, p.Exhausted(4))
}

func TestIdentityOptions(t *testing.T) {
	off := false
	opts := IdentityConfig{NoisePrefixes: []string{"x/"}, KeepDirectories: true, PreferStructured: &off}.Options()
	assert.Equal(t, []string{"x/"}, opts.NoisePrefixes)
	assert.True(t, opts.KeepDirectories)
	assert.False(t, opts.PreferStructured)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, time.Second, Duration("", time.Second))
	assert.Equal(t, time.Second, Duration("bogus", time.Second))
	assert.Equal(t, 5*time.Millisecond, Duration("5ms", time.Second))
}
