package api

import (
	"context"
	"net/http"
	"time"
)

// StatsProvider reports a point-in-time view of the service.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
	now      func() time.Time
}

// NewStatsHandler creates a stats handler over provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider, now: time.Now}
}

// HandleStats writes the provider's stats plus a "generatedAt" timestamp.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.provider.GetStats(r.Context())
	out := make(map[string]any, len(stats)+1)
	for k, v := range stats {
		out[k] = v
	}
	out["generatedAt"] = h.now().UTC().Format(time.RFC3339Nano)
	writeJSON(w, http.StatusOK, out)
}
