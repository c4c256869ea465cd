package commands

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/diffwatch/internal/config"
	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/source"
	"git.home.luguber.info/inful/diffwatch/internal/source/natssource"
	"git.home.luguber.info/inful/diffwatch/internal/source/pgsource"
	"git.home.luguber.info/inful/diffwatch/internal/source/sqlitesource"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunCheck(t *testing.T) {
	t.Run("all accepted", func(t *testing.T) {
		path := writeFile(t, "ok.json", `[
			{"id":1,"created_at":"2025-03-08T17:45:26Z","status":"READING","message":"Reading a.go..."},
			{"id":1,"created_at":"2025-03-08T17:45:27Z","status":"READING","message":"Reading a.go..."}
		]`)
		var out bytes.Buffer
		require.NoError(t, RunCheck(path, &out))
		assert.Contains(t, out.String(), "2 accepted, 0 rejected")
		assert.Contains(t, out.String(), "duplicate ids")
	})

	t.Run("rejects are reported", func(t *testing.T) {
		path := writeFile(t, "bad.json", `[
			{"id":1,"created_at":"2025-03-08T17:45:26Z","status":"READING","message":"Reading a.go..."},
			{"id":2,"message":"no status"}
		]`)
		var out bytes.Buffer
		err := RunCheck(path, &out)
		require.Error(t, err)
		assert.Equal(t, ferrors.CategoryValidation, ferrors.GetCategory(err))
		assert.Contains(t, out.String(), "1 accepted, 1 rejected")
		assert.Contains(t, out.String(), "record 1:")
	})

	t.Run("missing file", func(t *testing.T) {
		err := RunCheck(filepath.Join(t.TempDir(), "nope.json"), &bytes.Buffer{})
		require.Error(t, err)
	})
}

func TestRunTrigger(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RunTrigger("repo-updates", "repo_updates", &out))
	assert.Contains(t, out.String(), `AFTER INSERT ON "repo-updates"`)
	assert.Contains(t, out.String(), "pg_notify('repo_updates'")
}

func TestNewSource(t *testing.T) {
	cfg := config.Default()
	hooks := source.Hooks{}

	cases := []struct {
		typ  config.SourceType
		want any
	}{
		{config.SourcePostgres, &pgsource.Source{}},
		{config.SourceNATS, &natssource.Source{}},
		{config.SourceSQLite, &sqlitesource.Source{}},
		{config.SourceStatic, &source.Static{}},
	}
	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			sc := cfg.Source
			sc.Type = tc.typ
			src, err := newSource(sc, hooks)
			require.NoError(t, err)
			assert.IsType(t, tc.want, src)
		})
	}

	sc := cfg.Source
	sc.Type = "kafka"
	_, err := newSource(sc, hooks)
	require.Error(t, err)
}

func TestNewSession_RejectsUnknownPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Reconcile.DuplicateWrites = "random"
	_, err := newSession(cfg, slog.Default(), nil)
	require.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := loadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.SourceStatic, cfg.Source.Type)

	path := writeFile(t, "diffwatch.yaml", "version: \"1\"\nsource:\n  type: sqlite\n  sqlite:\n    path: /tmp/x.db\n")
	cfg, err = loadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, config.SourceSQLite, cfg.Source.Type)
}

func recordedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "updates.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE "repo-updates" (
		id INTEGER PRIMARY KEY, created_at TEXT, status TEXT, message TEXT, code TEXT,
		repository_name TEXT, repository_owner TEXT, file_name TEXT, file_path TEXT,
		language TEXT, lines_changed INTEGER)`)
	require.NoError(t, err)
	rows := []struct {
		id             int64
		status, msg    string
		code, language any
	}{
		{1, "READING", "Reading pages/foo.tsx...", "OLD", nil},
		{2, "WRITING", "Writing updates to pages/foo.tsx...", "NEW\nLINE", "typescript"},
		{3, "COMPLETE", "Done", nil, nil},
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO "repo-updates" (id, created_at, status, message, code, language)
			VALUES (?, '2025-03-08 17:45:26+00', ?, ?, ?, ?)`, r.id, r.status, r.msg, r.code, r.language)
		require.NoError(t, err)
	}
	return path
}

func TestRunReplay(t *testing.T) {
	db := recordedDB(t)

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, RunReplay(t.Context(), config.Default(), sqlitesource.Config{Path: db}, false, &out))
		assert.Contains(t, out.String(), "Replayed 3 events (phase PUBLISHING)")
		assert.Contains(t, out.String(), "foo.tsx")
		assert.Contains(t, out.String(), "Files changed: 1, lines written: 2")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, RunReplay(t.Context(), config.Default(), sqlitesource.Config{Path: db}, true, &out))
		var res replayResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
		assert.Equal(t, 3, res.Events)
		require.Len(t, res.Comparisons, 1)
		assert.Equal(t, "OLD", res.Comparisons[0].Before.Content)
		assert.Equal(t, 2, res.Stats.LinesWritten)
	})
}

func TestRunWatch_StaticSourceStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Monitoring.Metrics.Enabled = true

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- RunWatch(ctx, cfg, slog.New(slog.DiscardHandler)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestRunWatch_SourceFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Type = config.SourceSQLite
	cfg.Source.SQLite.Path = filepath.Join(t.TempDir(), "empty.db")
	cfg.Source.Retry.MaxRetries = 1
	cfg.Source.Retry.InitialDelay = "1ms"
	cfg.Source.Retry.MaxDelay = "1m"

	err := RunWatch(t.Context(), cfg, slog.New(slog.DiscardHandler))
	require.Error(t, err)
}
