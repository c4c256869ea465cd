package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"git.home.luguber.info/inful/diffwatch/internal/events"
	"git.home.luguber.info/inful/diffwatch/internal/logfields"
)

const streamBuffer = 32

// snapshot is the first message on every stream so a client that connects
// mid-session starts from the current views.
type snapshot struct {
	SessionID    string `json:"session_id"`
	Phase        string `json:"phase,omitempty"`
	FilesChanged int    `json:"files_changed"`
	LinesWritten int    `json:"lines_written"`
}

// handleEvents streams session notifications as server-sent events. The
// stream ends when the client leaves or the session's bus closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, unsubscribe := events.Subscribe[events.Notification](s.view.Bus(), streamBuffer)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	st := s.view.Stats()
	first := snapshot{SessionID: s.view.ID(), FilesChanged: st.FilesChanged, LinesWritten: st.LinesWritten}
	if p, err := s.view.CurrentPhase(); err == nil {
		first.Phase = p.String()
	}
	s.sendEvent(w, "snapshot", first)
	flusher.Flush()

	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case n, ok := <-ch:
			if !ok {
				s.sendEvent(w, "closed", struct{}{})
				flusher.Flush()
				return
			}
			s.sendEvent(w, n.Kind(), n)
			flusher.Flush()
		}
	}
}

func (s *Server) sendEvent(w http.ResponseWriter, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to marshal stream event", logfields.Error(err))
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}
