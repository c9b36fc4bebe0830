package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/otv/internal/domain/model"
)

// CandidateDependencies defines the roster reads.
type CandidateDependencies interface {
	Candidates(ctx context.Context, validOnly bool) ([]model.Candidate, error)
	Candidate(ctx context.Context, stash string) (model.Candidate, error)
}

// CandidateHandler handles roster requests.
type CandidateHandler struct {
	deps CandidateDependencies
}

// NewCandidateHandler creates a new candidate handler.
func NewCandidateHandler(deps CandidateDependencies) *CandidateHandler {
	return &CandidateHandler{deps: deps}
}

// HandleList handles GET /candidates[?valid=true].
func (h *CandidateHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	validOnly := false
	if v := r.URL.Query().Get("valid"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		validOnly = b
	}
	list, err := h.deps.Candidates(r.Context(), validOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if list == nil {
		list = []model.Candidate{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGet handles GET /candidates/{stash}.
func (h *CandidateHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Candidate(r.Context(), r.PathValue("stash"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
