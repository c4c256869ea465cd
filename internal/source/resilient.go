package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/logfields"
	"git.home.luguber.info/inful/diffwatch/internal/metrics"
	"git.home.luguber.info/inful/diffwatch/internal/retry"
	"git.home.luguber.info/inful/diffwatch/internal/update"
)

// ErrRetriesExhausted wraps the last failure once the retry budget is spent.
var ErrRetriesExhausted = ferrors.NewError(ferrors.CategorySource, "event source retries exhausted").Build()

// Resilient restarts a source after retryable failures, waiting according to
// a retry policy. Non-retryable failures and a clean end pass through.
//
// The wrapped source is expected to resume after the last event it
// delivered. When it cannot, it may redeliver; the session tolerates that.
type Resilient struct {
	inner    Source
	policy   retry.Policy
	log      *slog.Logger
	recorder metrics.Recorder
	// sleep is replaced in tests.
	sleep func(ctx context.Context, n int) error
}

// NewResilient wraps inner. A nil logger means slog.Default and a nil
// recorder means metrics.NoopRecorder.
func NewResilient(inner Source, policy retry.Policy, log *slog.Logger, recorder metrics.Recorder) *Resilient {
	if log == nil {
		log = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Resilient{inner: inner, policy: policy, log: log, recorder: recorder, sleep: policy.Wait}
}

func (r *Resilient) Name() string { return r.inner.Name() }

func (r *Resilient) Stream(ctx context.Context, out chan<- update.Event) error {
	attempt := 0
	for {
		started := time.Now()
		err := r.inner.Stream(ctx, out)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.Canceled), !ferrors.CanRetry(err):
			return err
		}

		// A connection that stayed up longer than the backoff cap counts as
		// healthy, so the next failure starts from the first delay again.
		if time.Since(started) > r.policy.Max {
			attempt = 0
		}
		attempt++
		if r.policy.Exhausted(attempt) {
			return ErrRetriesExhausted.WithCause(err).
				WithContext("source", r.inner.Name()).
				WithContext("attempts", attempt-1)
		}

		r.log.Warn("Event source failed, reconnecting",
			logfields.Source(r.inner.Name()),
			logfields.Attempt(attempt),
			slog.Duration("delay", r.policy.Delay(attempt)),
			logfields.Error(err))
		r.recorder.IncSourceReconnect(r.inner.Name())

		if err := r.sleep(ctx, attempt); err != nil {
			return err
		}
	}
}
