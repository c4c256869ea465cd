// Package pgsource streams update events from the backend's Postgres table.
//
// The source first reads every recorded row in id order, then waits on a
// LISTEN channel fed by an insert trigger (see TriggerSQL) and reads the new
// rows after each notification. Notifications only wake the reader; their
// payload is not trusted to carry the row because pg_notify truncates at 8000
// bytes and file contents routinely exceed that.
//
// Ids are assigned at insert but become visible at commit, so a row can
// appear after a higher id was already read. Every read therefore re-scans
// Lookback ids behind the cursor and skips the ids it already delivered. A
// row committed later than Lookback newer ids is still missed.
package pgsource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/logfields"
	"git.home.luguber.info/inful/diffwatch/internal/source"
	"git.home.luguber.info/inful/diffwatch/internal/update"
)

// Config selects the table, channel and optional repository filter.
type Config struct {
	DSN             string
	Table           string
	Channel         string
	RepositoryOwner string
	RepositoryName  string
	// Lookback is how many ids behind the cursor each read re-scans.
	// Zero means DefaultLookback.
	Lookback int64
}

// DefaultLookback covers concurrent writers committing out of id order.
const DefaultLookback = 64

// Source implements source.Source over Postgres.
type Source struct {
	cfg   Config
	hooks source.Hooks

	// lastID and seen survive reconnects so a resumed stream continues after
	// the last delivered row. seen holds the delivered ids inside the
	// lookback window.
	mu     sync.Mutex
	lastID int64
	seen   map[int64]struct{}
}

// New creates a Postgres source. It does not connect until Stream.
func New(cfg Config, hooks source.Hooks) *Source {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	return &Source{cfg: cfg, hooks: hooks, seen: make(map[int64]struct{})}
}

func (s *Source) Name() string { return "postgres" }

// Stream implements source.Source.
func (s *Source) Stream(ctx context.Context, out chan<- update.Event) error {
	log := s.hooks.Log().With(logfields.Source(s.Name()))

	pool, err := pgxpool.New(ctx, s.cfg.DSN)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid postgres connection string").Build()
	}
	defer pool.Close()

	listener, err := pool.Acquire(ctx)
	if err != nil {
		return connectionError(err, "acquire listen connection")
	}
	defer listener.Release()

	// Listen before the backfill so no insert falls between the two.
	if _, err := listener.Exec(ctx, "LISTEN "+pgx.Identifier{s.cfg.Channel}.Sanitize()); err != nil {
		return connectionError(err, "listen for inserts")
	}

	n, err := s.fetch(ctx, pool, out)
	if err != nil {
		return err
	}
	log.Info("Backfill complete", logfields.Count(n), logfields.EventID(s.cursor()))

	for {
		if _, err := listener.Conn().WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return connectionError(err, "wait for notification")
		}
		n, err := s.fetch(ctx, pool, out)
		if err != nil {
			return err
		}
		log.Debug("Fetched after notification", logfields.Count(n))
	}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// fetch delivers every row inside or after the lookback window that has not
// been delivered yet.
func (s *Source) fetch(ctx context.Context, q querier, out chan<- update.Event) (int, error) {
	query, args := s.query(s.floor())
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return 0, connectionError(err, "query updates")
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var r row
		if err := rows.Scan(r.dest()...); err != nil {
			return n, ferrors.WrapError(err, ferrors.CategorySource, "scan update row").
				WithContext("table", s.cfg.Table).
				Build()
		}
		if s.delivered(r.id) {
			continue
		}
		if err := source.Send(ctx, out, r.event()); err != nil {
			return n, err
		}
		s.claim(r.id)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, connectionError(err, "iterate updates")
	}
	return n, nil
}

func (s *Source) cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

// floor is the id every read starts after.
func (s *Source) floor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(s.lastID-s.cfg.Lookback, 0)
}

func (s *Source) delivered(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// claim records id as delivered, moves the cursor and forgets ids that fell
// out of the window.
func (s *Source) claim(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[id] = struct{}{}
	if id > s.lastID {
		s.lastID = id
	}
	floor := s.lastID - s.cfg.Lookback
	for old := range s.seen {
		if old <= floor {
			delete(s.seen, old)
		}
	}
}

var columns = []string{
	"id", "created_at", "status", "message", "code",
	"repository_name", "repository_owner", "file_name", "file_path",
	"language", "lines_changed",
}

// query builds the read of every row after id.
func (s *Source) query(after int64) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{c}.Sanitize())
	}
	b.WriteString(" FROM ")
	b.WriteString(pgx.Identifier{s.cfg.Table}.Sanitize())
	b.WriteString(" WHERE id > $1")
	args := []any{after}
	if s.cfg.RepositoryOwner != "" {
		args = append(args, s.cfg.RepositoryOwner)
		fmt.Fprintf(&b, " AND repository_owner = $%d", len(args))
	}
	if s.cfg.RepositoryName != "" {
		args = append(args, s.cfg.RepositoryName)
		fmt.Fprintf(&b, " AND repository_name = $%d", len(args))
	}
	b.WriteString(" ORDER BY id ASC")
	return b.String(), args
}

// row mirrors one table row with nullable columns.
type row struct {
	id              int64
	createdAt       *time.Time
	status          *string
	message         *string
	code            *string
	repositoryName  *string
	repositoryOwner *string
	fileName        *string
	filePath        *string
	language        *string
	linesChanged    *int32
}

func (r *row) dest() []any {
	return []any{
		&r.id, &r.createdAt, &r.status, &r.message, &r.code,
		&r.repositoryName, &r.repositoryOwner, &r.fileName, &r.filePath,
		&r.language, &r.linesChanged,
	}
}

func (r *row) event() update.Event {
	e := update.Event{
		ID:              r.id,
		Status:          deref(r.status),
		Message:         deref(r.message),
		Code:            deref(r.code),
		RepositoryName:  deref(r.repositoryName),
		RepositoryOwner: deref(r.repositoryOwner),
		FileName:        deref(r.fileName),
		FilePath:        deref(r.filePath),
		Language:        deref(r.language),
	}
	if r.createdAt != nil {
		e.CreatedAt = update.Timestamp{Time: *r.createdAt}
	}
	if r.linesChanged != nil {
		n := int(*r.linesChanged)
		e.LinesChanged = &n
	}
	return e
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func connectionError(err error, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ferrors.WrapError(err, ferrors.CategoryNetwork, "postgres "+op+" failed").
		Retryable().
		Build()
}

// TriggerSQL returns the DDL that makes inserts into table notify channel
// with the new row id. The adapters never run it; operators apply it once.
// The trigger fires per insert, but rows are read by id range, so late
// commits rely on the lookback window described in the package docs.
func TriggerSQL(table, channel string) string {
	fn := pgx.Identifier{"diffwatch_notify_" + channel}.Sanitize()
	return fmt.Sprintf(`CREATE OR REPLACE FUNCTION %[1]s() RETURNS trigger AS $$
BEGIN
  PERFORM pg_notify(%[2]s, json_build_object('id', NEW.id)::text);
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS diffwatch_notify ON %[3]s;
CREATE TRIGGER diffwatch_notify AFTER INSERT ON %[3]s
  FOR EACH ROW EXECUTE FUNCTION %[1]s();
`, fn, quoteLiteral(channel), pgx.Identifier{table}.Sanitize())
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var _ source.Source = (*Source)(nil)
