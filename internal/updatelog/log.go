// Package updatelog holds the ordered, append-only sequence of update events
// received during a dashboard session.
package updatelog

import (
	"sync"

	"git.home.luguber.info/inful/diffwatch/internal/update"
)

// Log is append-only. It does not dedup by id, so a redelivering adapter shows
// up as repeated entries, and it imposes no size bound.
//
// Appends are expected from a single writer; snapshots may be taken from any
// goroutine and stay valid forever because appended slots are never rewritten.
type Log struct {
	mu     sync.RWMutex
	events []update.Event
}

// New creates an empty log.
func New() *Log {
	return &Log{}
}

// Append validates e and adds it to the end of the log.
// A malformed event is rejected and the log is left unmodified.
func (l *Log) Append(e update.Event) error {
	if err := update.Validate(e); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

// Snapshot returns the full ordered sequence at call time. The slice's
// capacity is clipped so appending to it can never alias the log.
func (l *Log) Snapshot() []update.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.events[:len(l.events):len(l.events)]
}

// Len returns the number of events appended so far. It doubles as the log
// version: derived views keyed by Len are current iff Len has not changed.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Last returns the most recently appended event.
func (l *Log) Last() (update.Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return update.Event{}, false
	}
	return l.events[len(l.events)-1], true
}

// DuplicateIDs reports ids that occur more than once, in first-repeat order.
// A non-empty result means the adapter redelivered events.
func DuplicateIDs(snapshot []update.Event) []int64 {
	seen := make(map[int64]int, len(snapshot))
	var dups []int64
	for _, e := range snapshot {
		seen[e.ID]++
		if seen[e.ID] == 2 {
			dups = append(dups, e.ID)
		}
	}
	return dups
}
