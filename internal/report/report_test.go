package report

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/diffwatch/internal/session"
	"git.home.luguber.info/inful/diffwatch/internal/update"
)

// syncBuffer guards a buffer shared with the scheduler goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func lastRecord(t *testing.T, out string) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &rec))
	return rec
}

func TestReport(t *testing.T) {
	s := session.New(session.Config{})
	defer s.Dispose()
	require.NoError(t, s.Ingest(update.Event{ID: 1, Status: "READING", Message: "Reading a.go...", Code: "a"}))
	require.NoError(t, s.Ingest(update.Event{ID: 2, Status: "WRITING", Message: "Writing updates to a.go...", Code: "a\nb"}))

	var out syncBuffer
	r, err := New(s, time.Hour, slog.New(slog.NewJSONHandler(&out, nil)))
	require.NoError(t, err)
	defer func() { _ = r.Stop() }()

	r.Report()
	rec := lastRecord(t, out.String())
	assert.Equal(t, "Session progress", rec["msg"])
	assert.Equal(t, s.ID(), rec["session_id"])
	assert.Equal(t, "WRITING", rec["phase"])
	assert.InDelta(t, 1, rec["files_changed"], 0)
	assert.InDelta(t, 2, rec["lines_written"], 0)
	assert.InDelta(t, 2, rec["event_id"], 0)
}

func TestReport_UnknownPhase(t *testing.T) {
	s := session.New(session.Config{})
	defer s.Dispose()
	require.NoError(t, s.Ingest(update.Event{ID: 1, Status: "ERROR", Message: "boom"}))

	var out syncBuffer
	r, err := New(s, time.Hour, slog.New(slog.NewJSONHandler(&out, nil)))
	require.NoError(t, err)
	defer func() { _ = r.Stop() }()

	r.Report()
	rec := lastRecord(t, out.String())
	assert.Equal(t, "unknown", rec["phase"])
	assert.Equal(t, "ERROR", rec["status"])
}

func TestReporter_Schedules(t *testing.T) {
	s := session.New(session.Config{})
	defer s.Dispose()

	var out syncBuffer
	r, err := New(s, 20*time.Millisecond, slog.New(slog.NewJSONHandler(&out, nil)))
	require.NoError(t, err)
	r.Start()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Session progress"))
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, r.Stop())
}

func TestNew_RejectsNonPositiveInterval(t *testing.T) {
	_, err := New(nil, 0, nil)
	require.Error(t, err)
}
