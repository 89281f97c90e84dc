package api

import (
	"context"
	"net/http"

	service "github.com/okian/footprint/internal/app"
)

// AnalyticsDependencies defines the site-wide report source.
type AnalyticsDependencies interface {
	Analytics(ctx context.Context) (service.AnalyticsReport, error)
}

// AnalyticsHandler handles analytics requests.
type AnalyticsHandler struct {
	deps AnalyticsDependencies
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(deps AnalyticsDependencies) *AnalyticsHandler {
	return &AnalyticsHandler{deps: deps}
}

// HandleGetAnalytics handles GET /v1/analytics.
func (h *AnalyticsHandler) HandleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Analytics(r.Context())
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
