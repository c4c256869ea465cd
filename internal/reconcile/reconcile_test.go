package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/diffwatch/internal/identity"
	"git.home.luguber.info/inful/diffwatch/internal/update"
)

func scan(id int64, msg, code string) update.Event {
	return update.Event{ID: id, Status: "SCANNING", Message: msg, Code: code}
}

func write(id int64, msg, code string) update.Event {
	return update.Event{ID: id, Status: "WRITING", Message: msg, Code: code}
}

func TestReconcile_PairsScanWithWrite(t *testing.T) {
	log := []update.Event{
		scan(1, "reading pages/foo.tsx...", "OLD"),
		write(2, "updates to pages/foo.tsx...", "NEW"),
	}

	got := New().Reconcile(log)

	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, "foo.tsx", c.Identity)
	assert.Equal(t, "OLD", c.Before.Content)
	assert.Equal(t, "NEW", c.After.Content)
	assert.Equal(t, BeforeDescription, c.Before.Description)
	assert.Equal(t, AfterDescription, c.After.Description)
	assert.Equal(t, int64(1), c.BeforeEventID)
	assert.Equal(t, int64(2), c.AfterEventID)
	assert.Equal(t, Delta{Added: 1, Removed: 1}, c.Delta)
}

func TestReconcile_WriteWithoutScan(t *testing.T) {
	got := New().Reconcile([]update.Event{write(1, "Writing updates to bar.ts...", "NEW")})

	require.Len(t, got, 1)
	assert.Equal(t, "bar.ts", got[0].Identity)
	assert.Empty(t, got[0].Before.Content)
	assert.Zero(t, got[0].BeforeEventID)
	assert.Equal(t, "NEW", got[0].After.Content)
}

func TestReconcile_IgnoresUnidentifiable(t *testing.T) {
	log := []update.Event{
		write(1, "Processing files...", "NEW"),
		write(2, "working", "NEW"),
	}
	assert.NotPanics(t, func() {
		assert.Empty(t, New().Reconcile(log))
	})
}

func TestReconcile_SkipsWritesWithoutCode(t *testing.T) {
	log := []update.Event{write(1, "Writing updates to a.go...", "")}
	assert.Empty(t, New().Reconcile(log))
}

func TestReconcile_SkipsUnknownStatus(t *testing.T) {
	log := []update.Event{
		{ID: 1, Status: "ERROR", Message: "Writing updates to a.go...", Code: "x"},
		scan(2, "Reading b.go...", "old"),
	}
	assert.Empty(t, New().Reconcile(log))
}

func TestReconcile_EarliestScanWins(t *testing.T) {
	log := []update.Event{
		scan(1, "Reading a.go...", "first"),
		scan(2, "Reading a.go...", "second"),
		write(3, "Writing updates to a.go...", "new"),
	}
	got := New().Reconcile(log)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Before.Content)
	assert.Equal(t, int64(1), got[0].BeforeEventID)
}

func TestReconcile_ScanAfterWriteStillMatches(t *testing.T) {
	log := []update.Event{
		write(1, "Writing updates to a.go...", "new"),
		scan(2, "Reading a.go...", "old"),
	}
	got := New().Reconcile(log)
	require.Len(t, got, 1)
	assert.Equal(t, "old", got[0].Before.Content)
}

func TestReconcile_OrderFollowsFirstWrite(t *testing.T) {
	log := []update.Event{
		scan(1, "Reading a.go...", "a0"),
		scan(2, "Reading b.go...", "b0"),
		write(3, "Writing updates to b.go...", "b1"),
		write(4, "Writing updates to a.go...", "a1"),
		write(5, "Writing updates to b.go...", "b2"),
	}
	got := New().Reconcile(log)
	require.Len(t, got, 2)
	assert.Equal(t, "b.go", got[0].Identity)
	assert.Equal(t, "a.go", got[1].Identity)
}

func TestReconcile_DuplicateWritePolicies(t *testing.T) {
	log := []update.Event{
		scan(1, "Reading baz.py...", "v0"),
		write(2, "Writing updates to baz.py...", "v1"),
		write(3, "Writing updates to other.py...", "o1"),
		write(4, "Writing updates to baz.py...", "v2"),
	}

	t.Run("first", func(t *testing.T) {
		got := New(WithPolicy(FirstWrite)).Reconcile(log)
		require.Len(t, got, 2)
		assert.Equal(t, "baz.py", got[0].Identity)
		assert.Equal(t, "v0", got[0].Before.Content)
		assert.Equal(t, "v1", got[0].After.Content)
		assert.Equal(t, int64(2), got[0].AfterEventID)
	})

	t.Run("latest", func(t *testing.T) {
		got := New(WithPolicy(LatestWrite)).Reconcile(log)
		require.Len(t, got, 2)
		assert.Equal(t, "baz.py", got[0].Identity)
		assert.Equal(t, "v0", got[0].Before.Content)
		assert.Equal(t, "v2", got[0].After.Content)
		assert.Equal(t, "other.py", got[1].Identity)
	})

	t.Run("sequence", func(t *testing.T) {
		got := New(WithPolicy(Sequence)).Reconcile(log)
		require.Len(t, got, 3)
		assert.Equal(t, [2]string{"v0", "v1"}, [2]string{got[0].Before.Content, got[0].After.Content})
		assert.Equal(t, "other.py", got[1].Identity)
		assert.Equal(t, [2]string{"v1", "v2"}, [2]string{got[2].Before.Content, got[2].After.Content})
		assert.Equal(t, int64(2), got[2].BeforeEventID)
	})
}

func TestReconcile_RedeliveredWritesCollapse(t *testing.T) {
	w := write(9, "Writing updates to a.go...", "new")
	got := New().Reconcile([]update.Event{w, w, w})
	assert.Len(t, got, 1)
}

func TestReconcile_Deterministic(t *testing.T) {
	log := []update.Event{
		scan(1, "Reading pages/x.tsx...", "x0"),
		write(2, "Writing updates to pages/x.tsx...", "x1"),
		scan(3, "Reading y.go...", "y0"),
		write(4, "Writing updates to y.go...", "y1"),
		{ID: 5, Status: "PUBLISHING", Message: "Updating repo..."},
	}
	r := New(WithPolicy(Sequence))
	assert.Equal(t, r.Reconcile(log), r.Reconcile(log))
}

func TestReconcile_PrefersStructuredPath(t *testing.T) {
	log := []update.Event{
		{ID: 1, Status: "SCANNING", Message: "Reading something", FilePath: "src/app.ts", Code: "old"},
		{ID: 2, Status: "WRITING", Message: "Writing updates", FilePath: "src/app.ts", Code: "new"},
	}

	got := New().Reconcile(log)
	require.Len(t, got, 1)
	assert.Equal(t, "app.ts", got[0].Identity)

	keep := identity.DefaultOptions()
	keep.KeepDirectories = true
	got = New(WithExtractor(identity.New(keep))).Reconcile(log)
	require.Len(t, got, 1)
	assert.Equal(t, "src/app.ts", got[0].Identity)
}

func TestReconcile_KeepDirectoriesJoinsPages(t *testing.T) {
	log := []update.Event{
		{ID: 1, Status: "READING", Message: "Reading pages/about.tsx...", Code: "old"},
		{ID: 2, Status: "WRITING", Message: "Writing updates to pages/about.tsx...", Code: "new"},
	}

	keep := identity.DefaultOptions()
	keep.KeepDirectories = true
	got := New(WithExtractor(identity.New(keep))).Reconcile(log)
	require.Len(t, got, 1)
	assert.Equal(t, "about.tsx", got[0].Identity)
	assert.Equal(t, "old", got[0].Before.Content)
	assert.Equal(t, "new", got[0].After.Content)
}

func TestReconcile_Empty(t *testing.T) {
	assert.Empty(t, New().Reconcile(nil))
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{
		"":         FirstWrite,
		"first":    FirstWrite,
		" LATEST ": LatestWrite,
		"last":     LatestWrite,
		"sequence": Sequence,
		"all":      Sequence,
	} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePolicy("newest")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestLineDelta(t *testing.T) {
	tests := []struct {
		name          string
		before, after string
		want          Delta
	}{
		{"identical", "a\nb", "a\nb", Delta{}},
		{"from empty", "", "a\nb\nc", Delta{Added: 3}},
		{"to empty", "a\nb\n", "", Delta{Removed: 2}},
		{"one line changed", "a\nb\nc\n", "a\nB\nc\n", Delta{Added: 1, Removed: 1}},
		{"append", "a\n", "a\nb\n", Delta{Added: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LineDelta(tt.before, tt.after))
		})
	}
}
