package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/otv/internal/domain/model"
)

// ScoreDependencies defines the scoring-round reads.
type ScoreDependencies interface {
	Score(ctx context.Context, stash string, session uint32) (model.ScoreRecord, error)
	ScoreMetadata(ctx context.Context, session uint32) (model.ScoreMetadata, error)
}

// ScoreHandler handles score requests.
type ScoreHandler struct {
	deps ScoreDependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

// HandleGetScore handles GET /scores/{stash}[?session=N].
func (h *ScoreHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	session, err := parseSession(r.URL.Query().Get("session"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rec, err := h.deps.Score(r.Context(), r.PathValue("stash"), session)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleGetMetadata handles GET /score-metadata/{session}.
func (h *ScoreHandler) HandleGetMetadata(w http.ResponseWriter, r *http.Request) {
	session, err := parseSession(r.PathValue("session"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	meta, err := h.deps.ScoreMetadata(r.Context(), session)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// parseSession reads a session index; "" and "latest" mean 0.
func parseSession(raw string) (uint32, error) {
	if raw == "" || raw == "latest" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return 0, ErrBadSession
	}
	return uint32(n), nil
}
