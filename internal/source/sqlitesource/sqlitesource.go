// Package sqlitesource tails an update table in a local SQLite database.
//
// Rows are read in id order. When following, the source wakes on file system
// writes to the database (and its WAL) and also polls, since some writers
// touch the files in ways fsnotify does not report.
package sqlitesource

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/logfields"
	"git.home.luguber.info/inful/diffwatch/internal/source"
	"git.home.luguber.info/inful/diffwatch/internal/update"
)

// Config locates the table and controls tailing.
type Config struct {
	Path         string
	Table        string
	PollInterval time.Duration
	// Follow keeps reading after the recorded rows are exhausted.
	Follow bool
}

// Source implements source.Source over SQLite.
type Source struct {
	cfg   Config
	hooks source.Hooks

	mu     sync.Mutex
	lastID int64
}

// New creates a SQLite source. The database is opened by Stream.
func New(cfg Config, hooks source.Hooks) *Source {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Table == "" {
		cfg.Table = "repo-updates"
	}
	return &Source{cfg: cfg, hooks: hooks}
}

func (s *Source) Name() string { return "sqlite" }

// Stream implements source.Source.
func (s *Source) Stream(ctx context.Context, out chan<- update.Event) error {
	log := s.hooks.Log().With(logfields.Source(s.Name()), logfields.Path(s.cfg.Path))

	db, err := sql.Open("sqlite", s.cfg.Path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryStore, "open sqlite database").
			WithContext("path", s.cfg.Path).
			Build()
	}
	defer db.Close()

	n, err := s.fetch(ctx, db, out)
	if err != nil {
		return err
	}
	log.Info("Backfill complete", logfields.Count(n), logfields.EventID(s.cursor()))
	if !s.cfg.Follow {
		return nil
	}

	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if w, err := s.watch(); err != nil {
		log.Warn("File watching unavailable, polling only", logfields.Error(err))
	} else {
		defer w.Close()
		fsEvents, fsErrors = w.Events, w.Errors
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if !s.relevant(ev) {
				continue
			}
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			log.Warn("File watcher error", logfields.Error(err))
			continue
		case <-ticker.C:
		}
		if n, err := s.fetch(ctx, db, out); err != nil {
			return err
		} else if n > 0 {
			log.Debug("Fetched new rows", logfields.Count(n))
		}
	}
}

// watch observes the database directory; watching the file itself misses
// WAL writes and atomic replacements.
func (s *Source) watch() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(s.cfg.Path)); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (s *Source) relevant(ev fsnotify.Event) bool {
	if !strings.HasPrefix(filepath.Base(ev.Name), filepath.Base(s.cfg.Path)) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (s *Source) query() string {
	quoted := `"` + strings.ReplaceAll(s.cfg.Table, `"`, `""`) + `"`
	return `SELECT id, created_at, status, message, code, repository_name, repository_owner,
		file_name, file_path, language, lines_changed
		FROM ` + quoted + ` WHERE id > ? ORDER BY id ASC`
}

func (s *Source) fetch(ctx context.Context, db *sql.DB, out chan<- update.Event) (int, error) {
	rows, err := db.QueryContext(ctx, s.query(), s.cursor())
	if err != nil {
		return 0, storeError(err, "query updates")
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var r row
		if err := rows.Scan(r.dest()...); err != nil {
			return n, storeError(err, "scan update row")
		}
		e := r.event(s.hooks.Log())
		if err := source.Send(ctx, out, e); err != nil {
			return n, err
		}
		s.advance(e.ID)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, storeError(err, "iterate updates")
	}
	return n, nil
}

func (s *Source) cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

func (s *Source) advance(id int64) {
	s.mu.Lock()
	if id > s.lastID {
		s.lastID = id
	}
	s.mu.Unlock()
}

type row struct {
	id              int64
	createdAt       sql.NullString
	status          sql.NullString
	message         sql.NullString
	code            sql.NullString
	repositoryName  sql.NullString
	repositoryOwner sql.NullString
	fileName        sql.NullString
	filePath        sql.NullString
	language        sql.NullString
	linesChanged    sql.NullInt64
}

func (r *row) dest() []any {
	return []any{
		&r.id, &r.createdAt, &r.status, &r.message, &r.code,
		&r.repositoryName, &r.repositoryOwner, &r.fileName, &r.filePath,
		&r.language, &r.linesChanged,
	}
}

func (r *row) event(log *slog.Logger) update.Event {
	e := update.Event{
		ID:              r.id,
		Status:          r.status.String,
		Message:         r.message.String,
		Code:            r.code.String,
		RepositoryName:  r.repositoryName.String,
		RepositoryOwner: r.repositoryOwner.String,
		FileName:        r.fileName.String,
		FilePath:        r.filePath.String,
		Language:        r.language.String,
	}
	if r.createdAt.Valid {
		ts, err := update.ParseTimestamp(r.createdAt.String)
		if err != nil {
			log.Debug("Unparseable created_at", logfields.EventID(r.id), logfields.Error(err))
		}
		e.CreatedAt = ts
	}
	if r.linesChanged.Valid {
		n := int(r.linesChanged.Int64)
		e.LinesChanged = &n
	}
	return e
}

func storeError(err error, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ferrors.WrapError(err, ferrors.CategoryStore, "sqlite "+op+" failed").
		Retryable().
		Build()
}

var _ source.Source = (*Source)(nil)
