package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hedgescan/hedgescan/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEvals struct {
	eval       domain.Evaluation
	ok         bool
	filtered   []domain.Opportunity
	lastFilter domain.OpportunityFilter
}

func (f *fakeEvals) Latest() (domain.Evaluation, bool) { return f.eval, f.ok }

func (f *fakeEvals) Filter(filter domain.OpportunityFilter) []domain.Opportunity {
	f.lastFilter = filter
	if f.filtered == nil {
		return []domain.Opportunity{}
	}
	return f.filtered
}

func TestOpportunityList(t *testing.T) {
	evals := &fakeEvals{
		eval: domain.Evaluation{ID: "batch-1", At: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)},
		ok:   true,
		filtered: []domain.Opportunity{
			{Event: "pres-2028", Outcome: "a", Signal: domain.SignalHot},
		},
	}
	h := NewOpportunityHandler(evals, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/opportunities?signal=HOT&minProfitPct=0.03&sort=apy&limit=20", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if evals.lastFilter.Signal != "HOT" || evals.lastFilter.Sort != "apy" || evals.lastFilter.Limit != 20 {
		t.Errorf("filter = %+v, want query params applied", evals.lastFilter)
	}
	if evals.lastFilter.MinProfitPct == nil || *evals.lastFilter.MinProfitPct != 0.03 {
		t.Errorf("MinProfitPct = %v, want 0.03", evals.lastFilter.MinProfitPct)
	}

	var resp listOpportunitiesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.EvaluationID != "batch-1" {
		t.Errorf("EvaluationID = %q, want batch-1", resp.EvaluationID)
	}
	if len(resp.Opportunities) != 1 || resp.Opportunities[0].Outcome != "a" {
		t.Errorf("Opportunities = %+v", resp.Opportunities)
	}
}

func TestOpportunityListRejectsBadParams(t *testing.T) {
	h := NewOpportunityHandler(&fakeEvals{}, testLogger())

	for _, query := range []string{"sort=volume", "minProfitPct=lots"} {
		req := httptest.NewRequest(http.MethodGet, "/api/opportunities?"+query, nil)
		rec := httptest.NewRecorder()
		h.List(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, rec.Code)
		}
	}
}

func TestOpportunityListBeforeFirstCycle(t *testing.T) {
	h := NewOpportunityHandler(&fakeEvals{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/opportunities", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp listOpportunitiesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.EvaluationID != "" || len(resp.Opportunities) != 0 {
		t.Errorf("resp = %+v, want empty batch", resp)
	}
}

func TestOpportunityListByEvent(t *testing.T) {
	evals := &fakeEvals{}
	h := NewOpportunityHandler(evals, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/opportunities/pres-2028", nil)
	req.SetPathValue("event", "pres-2028")
	rec := httptest.NewRecorder()
	h.ListByEvent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if evals.lastFilter.Event != "pres-2028" {
		t.Errorf("filter event = %q, want pres-2028", evals.lastFilter.Event)
	}
}

type fakeExits struct {
	records []domain.ExitRecord
}

func (f *fakeExits) Latest() []domain.ExitRecord { return f.records }

func TestExitList(t *testing.T) {
	h := NewExitHandler(&fakeExits{records: []domain.ExitRecord{
		{Event: "pres-2028", Outcome: "a", NetProfit: 3.1, CanExit: true},
	}}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/exits", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp listExitsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Exits) != 1 || !resp.Exits[0].CanExit {
		t.Errorf("Exits = %+v", resp.Exits)
	}
}

func TestExitListUnconfigured(t *testing.T) {
	h := NewExitHandler(nil, testLogger())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/exits", nil))

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

type fakeTrigger struct {
	calls int
}

func (f *fakeTrigger) Trigger() { f.calls++ }

func TestScanTrigger(t *testing.T) {
	trigger := &fakeTrigger{}
	h := NewScanHandler(trigger, testLogger())

	rec := httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/scan/trigger", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if trigger.calls != 1 {
		t.Errorf("trigger called %d times, want 1", trigger.calls)
	}
}

func TestScanTriggerUnavailable(t *testing.T) {
	h := NewScanHandler(nil, testLogger())

	rec := httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/scan/trigger", nil))

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestStatsGet(t *testing.T) {
	evals := &fakeEvals{
		eval: domain.Evaluation{
			ID:    "batch-2",
			At:    time.Now().UTC(),
			Stats: domain.BatchStats{TotalMarkets: 4, GoCount: 1},
		},
		ok: true,
	}
	h := NewStatsHandler(evals, "scan", time.Now().Add(-time.Minute))

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["mode"] != "scan" {
		t.Errorf("mode = %v, want scan", resp["mode"])
	}
	if resp["evaluation_id"] != "batch-2" {
		t.Errorf("evaluation_id = %v, want batch-2", resp["evaluation_id"])
	}
	if uptime, ok := resp["uptime_seconds"].(float64); !ok || uptime < 59 {
		t.Errorf("uptime_seconds = %v, want >= 59", resp["uptime_seconds"])
	}
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(testLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %v, want ok", resp["status"])
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 100},
		{"limit=20", 20},
		{"limit=9999", 500},
		{"limit=-3", 100},
		{"limit=abc", 100},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		if got := parseLimit(req, 100, 500); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
