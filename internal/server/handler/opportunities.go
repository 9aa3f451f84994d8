package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hedgescan/hedgescan/internal/domain"
)

// EvalSource provides the latest evaluation batch and filtered views of it.
type EvalSource interface {
	Latest() (domain.Evaluation, bool)
	Filter(f domain.OpportunityFilter) []domain.Opportunity
}

// OpportunityHandler serves the opportunity read endpoints.
type OpportunityHandler struct {
	evals  EvalSource
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler with the given source
// and logger.
func NewOpportunityHandler(evals EvalSource, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{evals: evals, logger: logger}
}

// listOpportunitiesResponse wraps a filtered slice of the latest evaluation.
// EvaluationID is empty until the first cycle completes.
type listOpportunitiesResponse struct {
	EvaluationID  string               `json:"evaluation_id"`
	EvaluatedAt   string               `json:"evaluated_at,omitempty"`
	Opportunities []domain.Opportunity `json:"opportunities"`
}

// List returns the latest batch, filtered and ordered by query parameters.
// GET /api/opportunities?signal=HOT&minProfitPct=0.03&event=...&sort=apy&limit=20
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.OpportunityFilter{
		Signal: q.Get("signal"),
		Event:  q.Get("event"),
		Sort:   q.Get("sort"),
		Limit:  parseLimit(r, 100, 500),
	}
	if v := q.Get("minProfitPct"); v != "" {
		min, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "minProfitPct must be a number")
			return
		}
		filter.MinProfitPct = &min
	}
	if s := filter.Sort; s != "" && s != "profit_pct" && s != "apy" {
		writeError(w, http.StatusBadRequest, "sort must be profit_pct or apy")
		return
	}

	writeJSON(w, http.StatusOK, h.respond(filter))
}

// ListByEvent returns the latest batch narrowed to one event.
// GET /api/opportunities/{event}
func (h *OpportunityHandler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	event := r.PathValue("event")
	if event == "" {
		writeError(w, http.StatusBadRequest, "missing event")
		return
	}
	writeJSON(w, http.StatusOK, h.respond(domain.OpportunityFilter{Event: event}))
}

func (h *OpportunityHandler) respond(filter domain.OpportunityFilter) listOpportunitiesResponse {
	resp := listOpportunitiesResponse{
		Opportunities: h.evals.Filter(filter),
	}
	if eval, ok := h.evals.Latest(); ok {
		resp.EvaluationID = eval.ID
		resp.EvaluatedAt = eval.At.Format(time.RFC3339)
	}
	return resp
}
