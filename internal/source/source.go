// Package source defines how update events reach a session.
//
// A Source pushes events into a channel owned by the session. It delivers the
// already recorded events first and then, if it follows, new events as they
// are recorded. Reconnecting is the source's concern; the session only reads.
package source

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/diffwatch/internal/update"
)

// Source streams update events in arrival order.
type Source interface {
	Name() string
	// Stream sends events to out until the source is exhausted (nil), ctx
	// ends (ctx.Err()) or the source fails. Stream never closes out.
	Stream(ctx context.Context, out chan<- update.Event) error
}

// RejectFunc receives raw records a source could not turn into an event.
// It may be called from the source's goroutine.
type RejectFunc func(raw []byte, err error)

// Hooks are the callbacks shared by all adapters.
type Hooks struct {
	Logger   *slog.Logger
	OnReject RejectFunc
}

// Reject reports a record that failed decoding.
func (h Hooks) Reject(raw []byte, err error) {
	if h.OnReject != nil {
		h.OnReject(raw, err)
		return
	}
	h.Log().Warn("Dropping undecodable record", slog.String("error", err.Error()), slog.Int("bytes", len(raw)))
}

// Log returns the configured logger or slog.Default.
func (h Hooks) Log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Send delivers e unless ctx ends first.
func Send(ctx context.Context, out chan<- update.Event, e update.Event) error {
	select {
	case out <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
