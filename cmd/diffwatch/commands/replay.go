package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/diffwatch/internal/config"
	"git.home.luguber.info/inful/diffwatch/internal/metrics"
	"git.home.luguber.info/inful/diffwatch/internal/reconcile"
	"git.home.luguber.info/inful/diffwatch/internal/source/sqlitesource"
	"git.home.luguber.info/inful/diffwatch/internal/stats"
)

// ReplayCmd implements the 'replay' command.
type ReplayCmd struct {
	Database string `arg:"" help:"SQLite database holding a recorded update table" type:"existingfile"`
	Table    string `help:"Update table name" default:"repo-updates"`
	JSON     bool   `help:"Print the comparisons and stats as JSON"`
}

func (r *ReplayCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadOrDefault(root.Config)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return RunReplay(ctx, cfg, sqlitesource.Config{Path: r.Database, Table: r.Table}, r.JSON, os.Stdout)
}

// replayResult is the JSON shape printed by replay --json.
type replayResult struct {
	SessionID   string                 `json:"session_id"`
	Events      int                    `json:"events"`
	Phase       string                 `json:"phase,omitempty"`
	Comparisons []reconcile.Comparison `json:"comparisons"`
	Stats       stats.Stats            `json:"stats"`
}

// RunReplay reads the whole table once through a session and writes the
// reconciled result to w.
func RunReplay(ctx context.Context, cfg *config.Config, src sqlitesource.Config, asJSON bool, w io.Writer) error {
	src.Follow = false
	sess, err := newSession(cfg, slog.Default(), metrics.NoopRecorder{})
	if err != nil {
		return err
	}
	defer sess.Dispose()

	if err := sess.Start(ctx, sqlitesource.New(src, sess.SourceHooks())); err != nil {
		return err
	}
	select {
	case <-sess.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := sess.Err(); err != nil {
		return err
	}

	res := replayResult{
		SessionID:   sess.ID(),
		Events:      len(sess.Snapshot()),
		Comparisons: sess.ReconciledComparisons(),
		Stats:       sess.Stats(),
	}
	if p, err := sess.CurrentPhase(); err == nil {
		res.Phase = p.String()
	}
	if res.Comparisons == nil {
		res.Comparisons = []reconcile.Comparison{}
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	_, _ = fmt.Fprintf(w, "Replayed %d events (phase %s)\n", res.Events, orUnknown(res.Phase))
	for _, c := range res.Comparisons {
		_, _ = fmt.Fprintf(w, "  %-40s +%d -%d", c.Identity, c.Delta.Added, c.Delta.Removed)
		if c.Language != "" {
			_, _ = fmt.Fprintf(w, "  [%s]", c.Language)
		}
		_, _ = fmt.Fprintln(w)
	}
	_, _ = fmt.Fprintf(w, "Files changed: %d, lines written: %d (+%d -%d)\n",
		res.Stats.FilesChanged, res.Stats.LinesWritten, res.Stats.LinesAdded, res.Stats.LinesRemoved)
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
