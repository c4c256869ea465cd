// Package stats aggregates reconciled comparisons into the dashboard's summary
// figures.
package stats

import (
	"strings"
	"sync"

	"git.home.luguber.info/inful/diffwatch/internal/reconcile"
)

// Stats summarizes a reconciled comparison sequence.
type Stats struct {
	FilesChanged int `json:"files_changed"`
	LinesWritten int `json:"lines_written"`
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
}

// Compute derives Stats from comparisons. FilesChanged is always
// len(comparisons).
func Compute(comparisons []reconcile.Comparison) Stats {
	s := Stats{FilesChanged: len(comparisons)}
	for _, c := range comparisons {
		s.LinesWritten += LineCount(c.After.Content)
		s.LinesAdded += c.Delta.Added
		s.LinesRemoved += c.Delta.Removed
	}
	return s
}

// LineCount counts newline-delimited lines. Empty content has zero lines.
func LineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// Memo caches the last computation keyed by a log version.
type Memo struct {
	mu      sync.Mutex
	version int
	valid   bool
	stats   Stats
}

// Get returns the cached Stats for version, calling compute only when the
// version changed since the last call.
func (m *Memo) Get(version int, compute func() []reconcile.Comparison) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid && m.version == version {
		return m.stats
	}
	m.stats = Compute(compute())
	m.version = version
	m.valid = true
	return m.stats
}

// Reset drops the cached value.
func (m *Memo) Reset() {
	m.mu.Lock()
	m.valid = false
	m.mu.Unlock()
}
