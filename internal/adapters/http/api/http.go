// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/otv/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Candidates lists the roster; validOnly keeps candidates whose last
	// validity pass succeeded.
	Candidates(ctx context.Context, validOnly bool) ([]model.Candidate, error)
	Candidate(ctx context.Context, stash string) (model.Candidate, error)

	// Score and ScoreMetadata read a scoring round; session 0 selects the
	// latest round.
	Score(ctx context.Context, stash string, session uint32) (model.ScoreRecord, error)
	ScoreMetadata(ctx context.Context, session uint32) (model.ScoreMetadata, error)
}

// Server wires HTTP routes for the read API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	candidateHandler *CandidateHandler
	scoreHandler     *ScoreHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		candidateHandler: NewCandidateHandler(deps),
		scoreHandler:     NewScoreHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /candidates", MetricsMiddleware(s.candidateHandler.HandleList, "candidates"))
	mux.HandleFunc("GET /candidates/{stash}", MetricsMiddleware(s.candidateHandler.HandleGet, "candidate"))
	mux.HandleFunc("GET /scores/{stash}", MetricsMiddleware(s.scoreHandler.HandleGetScore, "score"))
	mux.HandleFunc("GET /score-metadata/{session}", MetricsMiddleware(s.scoreHandler.HandleGetMetadata, "score_metadata"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeLookupError maps a read failure to 404 or 500.
func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err)
}
