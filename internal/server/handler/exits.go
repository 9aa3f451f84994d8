package handler

import (
	"log/slog"
	"net/http"

	"github.com/hedgescan/hedgescan/internal/domain"
)

// ExitSource provides the most recent exit records for the open hedges.
type ExitSource interface {
	Latest() []domain.ExitRecord
}

// ExitHandler serves the exit-monitoring read endpoint.
type ExitHandler struct {
	exits  ExitSource // optional; when nil the endpoint returns 501
	logger *slog.Logger
}

// NewExitHandler creates an ExitHandler with the given source and logger.
func NewExitHandler(exits ExitSource, logger *slog.Logger) *ExitHandler {
	return &ExitHandler{exits: exits, logger: logger}
}

// listExitsResponse wraps the exit record list.
type listExitsResponse struct {
	Exits []domain.ExitRecord `json:"exits"`
}

// List returns the latest exit valuation for every tracked hedge.
// GET /api/exits
func (h *ExitHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.exits == nil {
		writeError(w, http.StatusNotImplemented, "exit monitoring not configured")
		return
	}

	records := h.exits.Latest()
	if records == nil {
		records = []domain.ExitRecord{}
	}
	writeJSON(w, http.StatusOK, listExitsResponse{Exits: records})
}
