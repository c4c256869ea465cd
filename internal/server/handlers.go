package server

import (
	"encoding/json"
	"net/http"
	"time"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/logfields"
	"git.home.luguber.info/inful/diffwatch/internal/phase"
	"git.home.luguber.info/inful/diffwatch/internal/reconcile"
)

type healthResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Uptime    string `json:"uptime"`
}

type phaseResponse struct {
	Phase  phase.Phase   `json:"phase"`
	Phases []phase.Phase `json:"phases"`
}

type comparisonsResponse struct {
	Comparisons []reconcile.Comparison `json:"comparisons"`
	Count       int                    `json:"count"`
}

type repositoryResponse struct {
	Owner           string `json:"owner"`
	Name            string `json:"name"`
	PullRequestsURL string `json:"pull_requests_url"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		SessionID: s.view.ID(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	})
}

// handlePhase answers 422 with the raw tag when the latest status is not
// recognized; the display layer picks its own fallback.
func (s *Server) handlePhase(w http.ResponseWriter, r *http.Request) {
	p, err := s.view.CurrentPhase()
	if err != nil {
		s.errors.WriteErrorResponse(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, phaseResponse{Phase: p, Phases: phase.All()})
}

func (s *Server) handleComparisons(w http.ResponseWriter, _ *http.Request) {
	cs := s.view.ReconciledComparisons()
	if cs == nil {
		cs = []reconcile.Comparison{}
	}
	s.writeJSON(w, http.StatusOK, comparisonsResponse{Comparisons: cs, Count: len(cs)})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.view.Stats())
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	e, ok := s.view.Latest()
	if !ok {
		s.errors.WriteErrorResponse(w, r, ferrors.NewError(ferrors.CategoryNotFound, "no events received yet").Info().Build())
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleRepository(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.view.Repository()
	if !ok {
		s.errors.WriteErrorResponse(w, r, ferrors.NewError(ferrors.CategoryNotFound, "no event has named a repository yet").Info().Build())
		return
	}
	s.writeJSON(w, http.StatusOK, repositoryResponse{
		Owner:           repo.Owner,
		Name:            repo.Name,
		PullRequestsURL: repo.PullRequestsURL(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", logfields.Error(err))
	}
}
