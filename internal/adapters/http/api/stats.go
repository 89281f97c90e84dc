package api

import (
	"net/http"
	"time"
)

// StatsProvider reports runtime counters of the visit pipeline.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the pipeline counters plus the API's own uptime.
type StatsHandler struct {
	provider StatsProvider
	since    time.Time
}

// NewStatsHandler creates a stats handler; uptime is counted from now.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider, since: time.Now()}
}

// HandleStats handles GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	src := h.provider.GetStats()
	out := make(map[string]interface{}, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	out["uptimeSeconds"] = int64(time.Since(h.since).Seconds())
	writeJSON(w, http.StatusOK, out)
}
