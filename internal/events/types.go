package events

import (
	"time"

	"git.home.luguber.info/inful/diffwatch/internal/phase"
)

// Notification is implemented by every type the session publishes.
type Notification interface {
	Kind() string
}

// LogAppended reports that an event was accepted into the session log.
type LogAppended struct {
	SessionID string `json:"session_id"`
	EventID   int64  `json:"event_id"`
	Status    string `json:"status"`
	// Version is the log length after the append.
	Version int       `json:"version"`
	At      time.Time `json:"at"`
}

// ViewsChanged carries the recomputed derived views after an append.
type ViewsChanged struct {
	SessionID    string      `json:"session_id"`
	Version      int         `json:"version"`
	Phase        phase.Phase `json:"phase,omitempty"`
	UnknownPhase string      `json:"unknown_status,omitempty"`
	FilesChanged int         `json:"files_changed"`
	LinesWritten int         `json:"lines_written"`
	LatestID     int64       `json:"latest_event_id"`
	At           time.Time   `json:"at"`
}

// EventRejected reports a malformed event dropped at the ingestion boundary.
type EventRejected struct {
	SessionID string    `json:"session_id"`
	EventID   int64     `json:"event_id,omitempty"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// Notification kinds, also used as server-sent event names.
const (
	KindLogAppended   = "log_appended"
	KindViewsChanged  = "views_changed"
	KindEventRejected = "event_rejected"
)

func (LogAppended) Kind() string   { return KindLogAppended }
func (ViewsChanged) Kind() string  { return KindViewsChanged }
func (EventRejected) Kind() string { return KindEventRejected }
