// Package phase classifies update events into the backend's three-step lifecycle.
package phase

import (
	"strings"

	"git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/foundation/normalization"
	"git.home.luguber.info/inful/diffwatch/internal/update"
)

// Phase is the backend's current activity.
type Phase string

const (
	Scanning   Phase = "SCANNING"
	Writing    Phase = "WRITING"
	Publishing Phase = "PUBLISHING"
)

// Initial is the phase reported before any event has arrived.
const Initial = Scanning

// ErrUnknownPhase is returned for a status tag outside the known lifecycle.
// The raw tag is attached as the "status" context value.
var ErrUnknownPhase = errors.ClassifyError("unknown status tag").Build()

// The backend's own tags (READING, LOADING, COMPLETE) are accepted as aliases.
var tags = normalization.WithCustomNormalizer(map[string]Phase{
	"SCANNING":   Scanning,
	"READING":    Scanning,
	"WRITING":    Writing,
	"PUBLISHING": Publishing,
	"LOADING":    Publishing,
	"COMPLETE":   Publishing,
}, "", func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) })

// Parse maps a raw status tag to its phase.
func Parse(status string) (Phase, error) {
	p, ok := tags.Lookup(status)
	if !ok {
		return "", ErrUnknownPhase.WithContext("status", status)
	}
	return p, nil
}

// Of returns the phase signaled by e.
func Of(e update.Event) (Phase, error) {
	p, err := Parse(e.Status)
	if err != nil {
		return "", ErrUnknownPhase.
			WithContext("status", e.Status).
			WithContext("event_id", e.ID)
	}
	return p, nil
}

// Is reports whether e classifies as p. Unknown tags never match.
func Is(e update.Event, p Phase) bool {
	got, err := Of(e)
	return err == nil && got == p
}

// Current returns the phase of the most recent event in log, or Initial for an
// empty log. An unknown last tag is reported, not replaced by an earlier phase.
func Current(log []update.Event) (Phase, error) {
	if len(log) == 0 {
		return Initial, nil
	}
	return Of(log[len(log)-1])
}

// Valid reports whether p is one of the three lifecycle phases.
func (p Phase) Valid() bool {
	return p == Scanning || p == Writing || p == Publishing
}

func (p Phase) String() string { return string(p) }

// All lists the phases in lifecycle order.
func All() []Phase {
	return []Phase{Scanning, Writing, Publishing}
}
