// Package reconcile pairs the before and after snapshots of each file touched
// during a maintenance run.
//
// Reconciliation is a pure function of a log snapshot. It is recomputed from
// scratch on every call and keeps no state between calls.
package reconcile

import (
	"git.home.luguber.info/inful/diffwatch/internal/identity"
	"git.home.luguber.info/inful/diffwatch/internal/phase"
	"git.home.luguber.info/inful/diffwatch/internal/update"
)

const (
	BeforeDescription = "Original file content"
	AfterDescription  = "Updated file content"
)

// FileSnapshot is one side of a comparison.
type FileSnapshot struct {
	Name        string `json:"name"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// Comparison is a matched before/after pair for one file.
type Comparison struct {
	Identity string       `json:"identity"`
	Before   FileSnapshot `json:"before"`
	After    FileSnapshot `json:"after"`
	// BeforeEventID is zero when no scan of the file was seen.
	BeforeEventID int64  `json:"before_event_id,omitempty"`
	AfterEventID  int64  `json:"after_event_id"`
	Language      string `json:"language,omitempty"`
	Delta         Delta  `json:"delta"`
}

// Reconciler holds the identity rules and duplicate write policy.
// It is immutable and safe for concurrent use.
type Reconciler struct {
	ids    *identity.Extractor
	policy Policy
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithExtractor sets the identity extractor.
func WithExtractor(x *identity.Extractor) Option {
	return func(r *Reconciler) {
		if x != nil {
			r.ids = x
		}
	}
}

// WithPolicy sets the duplicate write policy.
func WithPolicy(p Policy) Option {
	return func(r *Reconciler) {
		if p != "" {
			r.policy = p
		}
	}
}

// New creates a reconciler with the default extractor and FirstWrite policy.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		ids:    identity.New(identity.DefaultOptions()),
		policy: DefaultPolicy,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the configured duplicate write policy.
func (r *Reconciler) Policy() Policy { return r.policy }

// Extractor returns the identity extractor in use.
func (r *Reconciler) Extractor() *identity.Extractor { return r.ids }

type candidate struct {
	identity string
	event    update.Event
}

// Reconcile produces the ordered comparisons for a log snapshot.
//
// Writes with code form the candidate set, scans the match set. Each identity
// yields a comparison whose before side is the earliest scan of that identity
// (empty when none) and whose after side is the write. Events with no
// recognizable identity and events with unknown status tags never participate.
// Output follows the order in which identities are first written.
func (r *Reconciler) Reconcile(snapshot []update.Event) []Comparison {
	var writes []candidate
	scans := make(map[string]update.Event)

	for _, e := range snapshot {
		p, err := phase.Of(e)
		if err != nil {
			continue
		}
		switch p {
		case phase.Writing:
			if !e.HasCode() {
				continue
			}
			if id := r.ids.Of(e); id != "" {
				writes = append(writes, candidate{identity: id, event: e})
			}
		case phase.Scanning:
			id := r.ids.Of(e)
			if id == "" {
				continue
			}
			if _, seen := scans[id]; !seen {
				scans[id] = e
			}
		case phase.Publishing:
		}
	}

	switch r.policy {
	case LatestWrite:
		return r.latest(writes, scans)
	case Sequence:
		return r.sequence(writes, scans)
	default:
		return r.first(writes, scans)
	}
}

func (r *Reconciler) first(writes []candidate, scans map[string]update.Event) []Comparison {
	out := make([]Comparison, 0, len(writes))
	seen := make(map[string]struct{}, len(writes))
	for _, w := range writes {
		if _, dup := seen[w.identity]; dup {
			continue
		}
		seen[w.identity] = struct{}{}
		scan, ok := scans[w.identity]
		out = append(out, compare(w, scanPtr(scan, ok)))
	}
	return out
}

func (r *Reconciler) latest(writes []candidate, scans map[string]update.Event) []Comparison {
	order := make([]string, 0, len(writes))
	last := make(map[string]candidate, len(writes))
	for _, w := range writes {
		if _, ok := last[w.identity]; !ok {
			order = append(order, w.identity)
		}
		last[w.identity] = w
	}
	out := make([]Comparison, 0, len(order))
	for _, id := range order {
		scan, ok := scans[id]
		out = append(out, compare(last[id], scanPtr(scan, ok)))
	}
	return out
}

func (r *Reconciler) sequence(writes []candidate, scans map[string]update.Event) []Comparison {
	out := make([]Comparison, 0, len(writes))
	prev := make(map[string]update.Event, len(writes))
	for _, w := range writes {
		var before *update.Event
		if p, ok := prev[w.identity]; ok {
			before = &p
		} else if s, ok := scans[w.identity]; ok {
			before = &s
		}
		out = append(out, compare(w, before))
		prev[w.identity] = w.event
	}
	return out
}

func scanPtr(e update.Event, ok bool) *update.Event {
	if !ok {
		return nil
	}
	return &e
}

func compare(w candidate, before *update.Event) Comparison {
	c := Comparison{
		Identity: w.identity,
		Before: FileSnapshot{
			Name:        w.identity,
			Description: BeforeDescription,
		},
		After: FileSnapshot{
			Name:        w.identity,
			Content:     w.event.Code,
			Description: AfterDescription,
		},
		AfterEventID: w.event.ID,
		Language:     w.event.Language,
	}
	if before != nil {
		c.Before.Content = before.Code
		c.BeforeEventID = before.ID
	}
	c.Delta = LineDelta(c.Before.Content, c.After.Content)
	return c
}
