package handler

import (
	"net/http"
	"time"

	"github.com/hedgescan/hedgescan/internal/domain"
)

// StatsHandler serves aggregate batch statistics plus process metadata for
// dashboards.
type StatsHandler struct {
	evals     EvalSource
	mode      string
	startedAt time.Time
}

// NewStatsHandler creates a StatsHandler reporting the given run mode.
func NewStatsHandler(evals EvalSource, mode string, startedAt time.Time) *StatsHandler {
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &StatsHandler{evals: evals, mode: mode, startedAt: startedAt}
}

// Get returns the latest evaluation's aggregate statistics together with the
// run mode and uptime. Before the first cycle the stats are zero-valued.
// GET /api/stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	uptime := int64(time.Since(h.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	resp := map[string]any{
		"mode":           h.mode,
		"started_at":     h.startedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": uptime,
		"stats":          domain.BatchStats{},
	}
	if eval, ok := h.evals.Latest(); ok {
		resp["evaluation_id"] = eval.ID
		resp["evaluated_at"] = eval.At.Format(time.RFC3339)
		resp["stats"] = eval.Stats
	}

	writeJSON(w, http.StatusOK, resp)
}
