package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/footprint/internal/domain/model"
)

// VisitorDependencies defines the read side for single visitors.
type VisitorDependencies interface {
	Visitor(ctx context.Context, id string) (model.VisitorRecord, error)
	VisitorInsight(ctx context.Context, id string) (model.VisitorInsight, error)
}

// VisitorsHandler handles visitor lookups.
type VisitorsHandler struct {
	deps VisitorDependencies
}

// NewVisitorsHandler creates a new visitors handler.
func NewVisitorsHandler(deps VisitorDependencies) *VisitorsHandler {
	return &VisitorsHandler{deps: deps}
}

// HandleGetVisitor handles GET /v1/visitors/{id}.
func (h *VisitorsHandler) HandleGetVisitor(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.Visitor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleGetPatterns handles GET /v1/visitors/{id}/patterns.
func (h *VisitorsHandler) HandleGetPatterns(w http.ResponseWriter, r *http.Request) {
	insight, err := h.deps.VisitorInsight(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}
