package source

import (
	"context"

	"git.home.luguber.info/inful/diffwatch/internal/update"
)

// Static replays a fixed event sequence and then ends.
type Static struct {
	name   string
	events []update.Event
}

// NewStatic creates a source over events. The slice is not copied.
func NewStatic(name string, events []update.Event) *Static {
	if name == "" {
		name = "static"
	}
	return &Static{name: name, events: events}
}

func (s *Static) Name() string { return s.name }

func (s *Static) Stream(ctx context.Context, out chan<- update.Event) error {
	for _, e := range s.events {
		if err := Send(ctx, out, e); err != nil {
			return err
		}
	}
	return nil
}
