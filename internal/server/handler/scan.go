package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// ScanTrigger requests an immediate scan cycle from the poll loop.
type ScanTrigger interface {
	Trigger()
}

// ScanHandler serves the manual scan trigger endpoint.
type ScanHandler struct {
	scanner ScanTrigger // optional; when nil the endpoint returns 501
	logger  *slog.Logger
}

// NewScanHandler creates a ScanHandler with the given trigger and logger.
func NewScanHandler(scanner ScanTrigger, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{scanner: scanner, logger: logger}
}

// Trigger enqueues one scan cycle. The request returns immediately; results
// arrive through the usual evaluation fan-out.
// POST /api/scan/trigger
func (h *ScanHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.scanner == nil {
		writeError(w, http.StatusNotImplemented, "scanning not available in this mode")
		return
	}

	h.logger.InfoContext(r.Context(), "handler: scan trigger requested")
	h.scanner.Trigger()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"message":      "scan cycle enqueued",
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
