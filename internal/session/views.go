package session

import (
	"git.home.luguber.info/inful/diffwatch/internal/phase"
	"git.home.luguber.info/inful/diffwatch/internal/reconcile"
	"git.home.luguber.info/inful/diffwatch/internal/stats"
	"git.home.luguber.info/inful/diffwatch/internal/update"
)

// CurrentPhase is the phase of the latest event, SCANNING before any event.
// An unrecognized latest status yields phase.ErrUnknownPhase.
func (s *Session) CurrentPhase() (phase.Phase, error) {
	last, ok := s.log.Last()
	if !ok {
		return phase.Initial, nil
	}
	return phase.Of(last)
}

// ReconciledComparisons returns the before/after pairs for the current log.
// The slice is shared; callers must not modify it.
func (s *Session) ReconciledComparisons() []reconcile.Comparison {
	return s.current().comparisons
}

// Stats summarizes ReconciledComparisons.
func (s *Session) Stats() stats.Stats {
	v := s.current()
	return s.memo.Get(v.version, func() []reconcile.Comparison { return v.comparisons })
}

// Latest is the most recent event, passed through for the live view.
func (s *Session) Latest() (update.Event, bool) {
	return s.log.Last()
}

// Snapshot returns the full log.
func (s *Session) Snapshot() []update.Event {
	return s.log.Snapshot()
}

// Repository is the repository named by the most recent event that names one.
func (s *Session) Repository() (update.Repository, bool) {
	snap := s.log.Snapshot()
	for i := len(snap) - 1; i >= 0; i-- {
		if r, ok := snap[i].Repository(); ok {
			return r, true
		}
	}
	return update.Repository{}, false
}

// PullRequestsURL links to the pull requests of the session's repository, or
// "" when no event has named one yet.
func (s *Session) PullRequestsURL() string {
	r, ok := s.Repository()
	if !ok {
		return ""
	}
	return r.PullRequestsURL()
}
