// Package report periodically logs a session's progress.
package report

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/logfields"
	"git.home.luguber.info/inful/diffwatch/internal/phase"
	"git.home.luguber.info/inful/diffwatch/internal/stats"
	"git.home.luguber.info/inful/diffwatch/internal/update"
)

// Progress is the subset of session views a report reads.
type Progress interface {
	ID() string
	CurrentPhase() (phase.Phase, error)
	Stats() stats.Stats
	Latest() (update.Event, bool)
}

// Reporter logs a progress summary on a fixed interval.
type Reporter struct {
	scheduler gocron.Scheduler
	progress  Progress
	logger    *slog.Logger
}

// New schedules a progress report every interval. Nothing runs until Start.
func New(p Progress, interval time.Duration, logger *slog.Logger) (*Reporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		return nil, ferrors.ConfigError("report interval must be positive").
			WithContext("interval", interval.String()).
			Build()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "create report scheduler").Build()
	}
	r := &Reporter{scheduler: s, progress: p, logger: logger}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.Report),
		gocron.WithName("progress-report"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "schedule progress report").
			WithContext("interval", interval.String()).
			Build()
	}
	return r, nil
}

// Start begins the schedule.
func (r *Reporter) Start() {
	r.scheduler.Start()
}

// Stop waits for a running report and shuts the scheduler down.
func (r *Reporter) Stop() error {
	return r.scheduler.Shutdown()
}

// Report logs one progress summary.
func (r *Reporter) Report() {
	st := r.progress.Stats()
	attrs := []any{
		logfields.SessionID(r.progress.ID()),
		slog.Int("files_changed", st.FilesChanged),
		slog.Int("lines_written", st.LinesWritten),
		slog.Int("lines_added", st.LinesAdded),
		slog.Int("lines_removed", st.LinesRemoved),
	}
	if p, err := r.progress.CurrentPhase(); err == nil {
		attrs = append(attrs, logfields.Phase(p.String()))
	} else if c, ok := ferrors.AsClassified(err); ok {
		status, _ := c.Context().GetString("status")
		attrs = append(attrs, logfields.Phase("unknown"), logfields.Status(status))
	}
	if e, ok := r.progress.Latest(); ok {
		attrs = append(attrs, logfields.EventID(e.ID))
	}
	r.logger.Info("Session progress", attrs...)
}
