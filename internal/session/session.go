// Package session owns one dashboard session: its update log, the views
// derived from it and the goroutines that feed it from an event source.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/diffwatch/internal/events"
	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/logfields"
	"git.home.luguber.info/inful/diffwatch/internal/metrics"
	"git.home.luguber.info/inful/diffwatch/internal/phase"
	"git.home.luguber.info/inful/diffwatch/internal/reconcile"
	"git.home.luguber.info/inful/diffwatch/internal/source"
	"git.home.luguber.info/inful/diffwatch/internal/stats"
	"git.home.luguber.info/inful/diffwatch/internal/update"
	"git.home.luguber.info/inful/diffwatch/internal/updatelog"
)

// Config tunes the ingestion loop.
type Config struct {
	// InboxSize bounds the channel between the source and the consumer.
	InboxSize int
	// PublishTimeout bounds how long a notification may wait on a slow
	// subscriber before it is dropped for that subscriber.
	PublishTimeout time.Duration
}

const (
	defaultInboxSize      = 256
	defaultPublishTimeout = 250 * time.Millisecond
)

var (
	ErrAlreadyStarted = ferrors.RuntimeError("session already started").Build()
	ErrDisposed       = ferrors.RuntimeError("session disposed").Build()
)

// Session is created per dashboard session and torn down with Dispose. The
// log and derived views stay readable after Dispose.
type Session struct {
	id        string
	cfg       Config
	log       *updatelog.Log
	reconcile *reconcile.Reconciler
	bus       *events.Bus
	recorder  metrics.Recorder
	logger    *slog.Logger

	viewsMu sync.Mutex
	views   views
	memo    stats.Memo

	lifeMu   sync.Mutex
	started  bool
	disposed bool
	cancel   context.CancelFunc
	done     chan struct{}
	srcErr   error
	dispose  sync.Once
}

type views struct {
	valid       bool
	version     int
	comparisons []reconcile.Comparison
	// phase and phaseErr describe the last event of the same snapshot.
	phase    phase.Phase
	phaseErr error
	latestID int64
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(s *Session) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithReconciler(r *reconcile.Reconciler) Option {
	return func(s *Session) {
		if r != nil {
			s.reconcile = r
		}
	}
}

func WithBus(b *events.Bus) Option {
	return func(s *Session) {
		if b != nil {
			s.bus = b
		}
	}
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// New creates an idle session.
func New(cfg Config, opts ...Option) *Session {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	s := &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		log:       updatelog.New(),
		reconcile: reconcile.New(),
		bus:       events.NewBus(),
		recorder:  metrics.NoopRecorder{},
		logger:    slog.Default(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logfields.SessionID(s.id))
	return s
}

func (s *Session) ID() string { return s.id }

// Bus is the notification bus the display layer subscribes to.
func (s *Session) Bus() *events.Bus { return s.bus }

// SourceHooks returns hooks that route a source's rejected records through
// the session.
func (s *Session) SourceHooks() source.Hooks {
	return source.Hooks{
		Logger: s.logger,
		OnReject: func(_ []byte, err error) {
			s.reject(0, err)
		},
	}
}

// Start runs src in its own goroutine, feeding a bounded inbox drained by a
// single consumer. It returns immediately; Done reports when both stop.
func (s *Session) Start(ctx context.Context, src source.Source) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	inbox := make(chan update.Event, s.cfg.InboxSize)
	s.logger.Info("Session started", logfields.Source(src.Name()))

	go func() {
		err := src.Stream(ctx, inbox)
		defer close(inbox)
		if err != nil && ctx.Err() == nil {
			s.logger.Error("Event source stopped", logfields.Source(src.Name()), logfields.Error(err))
			s.lifeMu.Lock()
			s.srcErr = err
			s.lifeMu.Unlock()
		} else {
			s.logger.Info("Event source finished", logfields.Source(src.Name()))
		}
	}()

	go func() {
		defer close(s.done)
		s.consume(inbox)
	}()
	return nil
}

// consume appends every event in arrival order. Whatever has queued up since
// the last recompute is appended first, so a burst costs one recompute.
func (s *Session) consume(inbox <-chan update.Event) {
	for e := range inbox {
		s.appendOne(e)
	drain:
		for {
			select {
			case more, ok := <-inbox:
				if !ok {
					break drain
				}
				s.appendOne(more)
			default:
				break drain
			}
		}
		s.refresh()
	}
}

// Done is closed once a started session's consumer has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error that stopped the source, if any. A clean end or a
// cancellation yields nil.
func (s *Session) Err() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.srcErr
}

// Dispose stops the source, waits for the consumer and closes the bus.
// It is safe to call more than once and on a session never started.
func (s *Session) Dispose() {
	s.dispose.Do(func() {
		s.lifeMu.Lock()
		s.disposed = true
		started := s.started
		cancel := s.cancel
		s.lifeMu.Unlock()

		if started {
			cancel()
			<-s.done
		}
		s.bus.Close()
		s.logger.Info("Session disposed", logfields.Count(s.log.Len()))
	})
}

// Ingest appends one event and recomputes the derived views. A malformed
// event is rejected, reported and returned as an error; the log is unchanged.
func (s *Session) Ingest(e update.Event) error {
	if err := s.appendOne(e); err != nil {
		return err
	}
	s.refresh()
	return nil
}

func (s *Session) appendOne(e update.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ferrors.InternalError("panic while ingesting event").
				WithContext("event_id", e.ID).
				WithContext("panic", r).
				Build()
			s.logger.Error("Recovered from ingestion panic", logfields.EventID(e.ID), logfields.Error(err))
		}
	}()

	if err := s.log.Append(e); err != nil {
		s.reject(e.ID, err)
		return err
	}

	label := metrics.UnknownPhase
	if p, perr := phase.Of(e); perr == nil {
		label = p.String()
	}
	s.recorder.IncEventIngested(label)
	s.logger.Debug("Event appended", logfields.EventID(e.ID), logfields.Status(e.Status), logfields.Phase(label))
	s.publish(events.LogAppended{
		SessionID: s.id,
		EventID:   e.ID,
		Status:    e.Status,
		Version:   s.log.Len(),
		At:        time.Now(),
	})
	return nil
}

// refresh brings the derived views up to date and announces them.
func (s *Session) refresh() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered from panic while refreshing views", slog.Any("panic", r))
		}
	}()

	v := s.current()
	st := s.memo.Get(v.version, func() []reconcile.Comparison { return v.comparisons })

	n := events.ViewsChanged{
		SessionID:    s.id,
		Version:      v.version,
		FilesChanged: st.FilesChanged,
		LinesWritten: st.LinesWritten,
		At:           time.Now(),
	}
	n.LatestID = v.latestID
	if v.phaseErr != nil {
		n.UnknownPhase = phaseStatus(v.phaseErr)
		s.recorder.SetCurrentPhase(metrics.UnknownPhase)
	} else {
		n.Phase = v.phase
		s.recorder.SetCurrentPhase(v.phase.String())
	}
	s.recorder.SetComparisons(st.FilesChanged)
	s.recorder.SetLinesWritten(st.LinesWritten)
	s.publish(n)
}

// current returns views matching the log at call time, recomputing them if
// the log has grown.
func (s *Session) current() views {
	s.viewsMu.Lock()
	defer s.viewsMu.Unlock()

	snap := s.log.Snapshot()
	if s.views.valid && s.views.version == len(snap) {
		return s.views
	}
	start := time.Now()
	s.views = views{
		valid:       true,
		version:     len(snap),
		comparisons: s.reconcile.Reconcile(snap),
	}
	s.views.phase, s.views.phaseErr = phase.Current(snap)
	if len(snap) > 0 {
		s.views.latestID = snap[len(snap)-1].ID
	}
	s.recorder.ObserveReconcileDuration(time.Since(start))
	return s.views
}

func (s *Session) reject(id int64, err error) {
	reason := rejectReason(err)
	s.recorder.IncEventRejected(reason)
	s.logger.Warn("Event rejected", logfields.EventID(id), slog.String("reason", reason), logfields.Error(err))
	s.publish(events.EventRejected{SessionID: s.id, EventID: id, Reason: err.Error(), At: time.Now()})
}

func (s *Session) publish(n events.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PublishTimeout)
	defer cancel()
	if err := s.bus.Publish(ctx, n); err != nil {
		s.logger.Debug("Notification not delivered", slog.String("kind", n.Kind()), logfields.Error(err))
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, update.ErrMalformedEvent):
		return "malformed"
	case errors.Is(err, update.ErrSchemaViolation):
		return "schema"
	case errors.Is(err, update.ErrDecodeFailed):
		return "decode"
	default:
		return "other"
	}
}

func phaseStatus(err error) string {
	if c, ok := ferrors.AsClassified(err); ok {
		if v, ok := c.Context().GetString("status"); ok {
			return v
		}
	}
	return "unknown"
}
