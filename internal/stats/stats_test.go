package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/diffwatch/internal/reconcile"
)

func cmp(after string, d reconcile.Delta) reconcile.Comparison {
	return reconcile.Comparison{After: reconcile.FileSnapshot{Content: after}, Delta: d}
}

func TestLineCount(t *testing.T) {
	assert.Equal(t, 0, LineCount(""))
	assert.Equal(t, 1, LineCount("a"))
	assert.Equal(t, 3, LineCount("a\nb\nc"))
	assert.Equal(t, 2, LineCount("a\n"))
}

func TestCompute(t *testing.T) {
	got := Compute([]reconcile.Comparison{
		cmp("a\nb\nc", reconcile.Delta{Added: 3}),
		cmp("", reconcile.Delta{Removed: 2}),
	})
	assert.Equal(t, Stats{FilesChanged: 2, LinesWritten: 3, LinesAdded: 3, LinesRemoved: 2}, got)
	assert.Equal(t, Stats{}, Compute(nil))
}

func TestMemo(t *testing.T) {
	var m Memo
	calls := 0
	src := func() []reconcile.Comparison {
		calls++
		return []reconcile.Comparison{cmp("x", reconcile.Delta{})}
	}

	first := m.Get(1, src)
	second := m.Get(1, src)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	m.Get(2, src)
	assert.Equal(t, 2, calls)

	m.Reset()
	m.Get(2, src)
	assert.Equal(t, 3, calls)
}
