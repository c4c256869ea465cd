// Package logfields holds the canonical slog attribute keys.
package logfields

import (
	"log/slog"
	"time"
)

const (
	KeySessionID  = "session_id"
	KeyEventID    = "event_id"
	KeyStatus     = "status"
	KeyPhase      = "phase"
	KeyIdentity   = "identity"
	KeySource     = "source"
	KeyRepo       = "repository"
	KeyVersion    = "version"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyAddr       = "addr"
	KeyCount      = "count"
	KeyError      = "error"
)

func SessionID(id string) slog.Attr { return slog.String(KeySessionID, id) }
func EventID(id int64) slog.Attr    { return slog.Int64(KeyEventID, id) }
func Status(s string) slog.Attr     { return slog.String(KeyStatus, s) }
func Phase(p string) slog.Attr      { return slog.String(KeyPhase, p) }
func Identity(id string) slog.Attr  { return slog.String(KeyIdentity, id) }
func Source(name string) slog.Attr  { return slog.String(KeySource, name) }
func Repository(r string) slog.Attr { return slog.String(KeyRepo, r) }
func Version(v int) slog.Attr       { return slog.Int(KeyVersion, v) }
func Attempt(n int) slog.Attr       { return slog.Int(KeyAttempt, n) }
func Path(p string) slog.Attr       { return slog.String(KeyPath, p) }
func Addr(a string) slog.Attr       { return slog.String(KeyAddr, a) }
func Count(n int) slog.Attr         { return slog.Int(KeyCount, n) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
