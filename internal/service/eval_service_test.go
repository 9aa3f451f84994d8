package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hedgescan/hedgescan/internal/arbitrage"
	"github.com/hedgescan/hedgescan/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) *arbitrage.Engine {
	t.Helper()
	eng, err := arbitrage.NewEngine(arbitrage.DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng
}

// askBook builds a one-level book quoting an ask at price with a bid two
// cents under it.
func askBook(price, size float64) domain.Book {
	return domain.Book{
		Source: domain.QuotePresent,
		Asks:   domain.BookSide{{Price: price, Size: size}},
		Bids:   domain.BookSide{{Price: price - 0.02, Size: size}},
	}
}

func profitableQuote() domain.OutcomeQuote {
	return domain.OutcomeQuote{
		Event:     "pres-2028",
		Outcome:   "candidate-a",
		KalshiYes: askBook(0.40, 200),
		KalshiNo:  askBook(0.62, 200),
		PolyYes:   askBook(0.61, 200),
		PolyNo:    askBook(0.40, 200),
		Timestamp: time.Now(),
	}
}

type fakeBus struct {
	published map[string][][]byte
	appended  map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		published: make(map[string][][]byte),
		appended:  make(map[string][][]byte),
	}
}

func (f *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (f *fakeBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	f.appended[stream] = append(f.appended[stream], payload)
	return nil
}

func (f *fakeBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestEvaluateCycleStoresLatest(t *testing.T) {
	svc := NewEvalService(newTestEngine(t), nil, testLogger())

	if _, ok := svc.Latest(); ok {
		t.Fatal("Latest should report no evaluation before any cycle")
	}

	eval := svc.EvaluateCycle(context.Background(), []arbitrage.QuoteInput{{Quote: profitableQuote()}})

	if eval.ID == "" {
		t.Error("evaluation ID missing")
	}
	if eval.Stats.TotalMarkets != 1 {
		t.Errorf("Stats.TotalMarkets = %d, want 1", eval.Stats.TotalMarkets)
	}
	if len(eval.Opportunities) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(eval.Opportunities))
	}
	if dir := eval.Opportunities[0].Direction; dir != domain.DirectionKalshiYesPolyNo {
		t.Errorf("direction = %s, want %s", dir, domain.DirectionKalshiYesPolyNo)
	}

	latest, ok := svc.Latest()
	if !ok {
		t.Fatal("Latest should report the completed cycle")
	}
	if latest.ID != eval.ID {
		t.Errorf("Latest ID = %s, want %s", latest.ID, eval.ID)
	}
}

func TestEvaluateCyclePublishes(t *testing.T) {
	bus := newFakeBus()
	svc := NewEvalService(newTestEngine(t), bus, testLogger())

	eval := svc.EvaluateCycle(context.Background(), []arbitrage.QuoteInput{{Quote: profitableQuote()}})

	if got := len(bus.published[OpportunitiesChannel]); got != 1 {
		t.Fatalf("published %d messages on %s, want 1", got, OpportunitiesChannel)
	}
	if got := len(bus.appended[OpportunitiesStream]); got != 1 {
		t.Fatalf("appended %d messages to %s, want 1", got, OpportunitiesStream)
	}

	var decoded domain.Evaluation
	if err := json.Unmarshal(bus.published[OpportunitiesChannel][0], &decoded); err != nil {
		t.Fatalf("unmarshal published payload: %v", err)
	}
	if decoded.ID != eval.ID {
		t.Errorf("published ID = %s, want %s", decoded.ID, eval.ID)
	}
	if len(decoded.Opportunities) != len(eval.Opportunities) {
		t.Errorf("published %d opportunities, want %d", len(decoded.Opportunities), len(eval.Opportunities))
	}
}

func TestSetLatest(t *testing.T) {
	svc := NewEvalService(newTestEngine(t), nil, testLogger())

	eval := domain.Evaluation{ID: "mirrored", At: time.Now()}
	svc.SetLatest(eval)

	got, ok := svc.Latest()
	if !ok || got.ID != "mirrored" {
		t.Errorf("Latest = %+v, want the mirrored evaluation", got)
	}
}

func TestFilter(t *testing.T) {
	mk := func(event, outcome string, profitPct float64, sig domain.Signal, apy *float64) domain.Opportunity {
		return domain.Opportunity{
			Event:    event,
			Outcome:  outcome,
			Signal:   sig,
			APY:      apy,
			Strategy: domain.StrategyResult{ProfitPct: profitPct},
		}
	}
	apy := func(v float64) *float64 { return &v }

	svc := NewEvalService(newTestEngine(t), nil, testLogger())

	if got := svc.Filter(domain.OpportunityFilter{}); got == nil || len(got) != 0 {
		t.Fatalf("Filter before any cycle = %v, want empty non-nil slice", got)
	}

	svc.SetLatest(domain.Evaluation{
		ID: "batch",
		Opportunities: []domain.Opportunity{
			mk("pres-2028", "a", 0.01, domain.SignalNone, nil),
			mk("pres-2028", "b", 0.06, domain.SignalHot, apy(0.31)),
			mk("senate-2028", "c", 0.03, domain.SignalGo, apy(0.80)),
			mk("senate-2028", "d", 0.045, domain.SignalGo, nil),
		},
	})

	t.Run("default sort by profit desc", func(t *testing.T) {
		got := svc.Filter(domain.OpportunityFilter{})
		want := []string{"b", "d", "c", "a"}
		assertOutcomeOrder(t, got, want)
	})

	t.Run("signal filter is case-insensitive", func(t *testing.T) {
		got := svc.Filter(domain.OpportunityFilter{Signal: "go"})
		assertOutcomeOrder(t, got, []string{"d", "c"})
	})

	t.Run("event filter", func(t *testing.T) {
		got := svc.Filter(domain.OpportunityFilter{Event: "senate-2028"})
		assertOutcomeOrder(t, got, []string{"d", "c"})
	})

	t.Run("min profit", func(t *testing.T) {
		min := 0.04
		got := svc.Filter(domain.OpportunityFilter{MinProfitPct: &min})
		assertOutcomeOrder(t, got, []string{"b", "d"})
	})

	t.Run("apy sort puts undated last", func(t *testing.T) {
		got := svc.Filter(domain.OpportunityFilter{Sort: "apy"})
		// c (0.80) then b (0.31), then the nil-APY rows by profit desc.
		assertOutcomeOrder(t, got, []string{"c", "b", "d", "a"})
	})

	t.Run("limit truncates after sort", func(t *testing.T) {
		got := svc.Filter(domain.OpportunityFilter{Limit: 2})
		assertOutcomeOrder(t, got, []string{"b", "d"})
	})
}

func assertOutcomeOrder(t *testing.T, got []domain.Opportunity, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d opportunities, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Outcome != w {
			t.Errorf("position %d: outcome = %s, want %s", i, got[i].Outcome, w)
		}
	}
}
