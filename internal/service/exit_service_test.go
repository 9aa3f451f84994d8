package service

import (
	"context"
	"testing"
	"time"

	"github.com/hedgescan/hedgescan/internal/domain"
)

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Notify(ctx context.Context, event, title, message string) error {
	f.events = append(f.events, event)
	return nil
}

func bidBook(bid, size float64) domain.Book {
	return domain.Book{
		Source: domain.QuotePresent,
		Bids:   domain.BookSide{{Price: bid, Size: size}},
	}
}

func hedgedPositionService() *PositionService {
	return NewPositionService([]PositionEntry{
		{Event: "pres-2028", Outcome: "a", Venue: "kalshi", Side: "YES", Shares: 100, AvgPrice: 0.45},
		{Event: "pres-2028", Outcome: "a", Venue: "poly", Side: "NO", Shares: 100, AvgPrice: 0.40},
	}, nil, &fakeMeta{}, nil, "", testLogger())
}

func exitQuotes(kalshiBid, polyBid float64) map[domain.OutcomeKey]domain.OutcomeQuote {
	key := domain.OutcomeKey{Event: "pres-2028", Outcome: "a"}
	return map[domain.OutcomeKey]domain.OutcomeQuote{
		key: {
			Event:     key.Event,
			Outcome:   key.Outcome,
			KalshiYes: bidBook(kalshiBid, 500),
			PolyNo:    bidBook(polyBid, 500),
		},
	}
}

func TestExitCycleNotifiesOnTransition(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := NewExitService(newTestEngine(t), hedgedPositionService(), notifier, 0, testLogger())
	ctx := context.Background()

	// Cycle 1: bids too low, no exit.
	records := svc.EvaluateCycle(ctx, exitQuotes(0.30, 0.30))
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].CanExit {
		t.Error("hedge should not be exit-ready at 0.60 combined")
	}
	if len(notifier.events) != 0 {
		t.Fatalf("no notification expected, got %v", notifier.events)
	}

	// Cycle 2: bids rise, hedge crosses the gate.
	records = svc.EvaluateCycle(ctx, exitQuotes(0.60, 0.55))
	if !records[0].CanExit {
		t.Fatal("hedge should be exit-ready at 1.15 combined")
	}
	if records[0].NetProfit <= 0 {
		t.Errorf("net profit = %v, want positive", records[0].NetProfit)
	}
	if len(notifier.events) != 1 || notifier.events[0] != "exit_ready" {
		t.Fatalf("events = %v, want one exit_ready", notifier.events)
	}

	// Cycle 3: still ready, no re-notification without a transition.
	svc.EvaluateCycle(ctx, exitQuotes(0.60, 0.55))
	if len(notifier.events) != 1 {
		t.Fatalf("events = %v, want still one exit_ready", notifier.events)
	}

	latest := svc.Latest()
	if len(latest) != 1 || !latest[0].CanExit {
		t.Errorf("Latest = %+v, want the ready record", latest)
	}
}

func TestExitCycleCooldownSuppressesFlapping(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := NewExitService(newTestEngine(t), hedgedPositionService(), notifier, time.Hour, testLogger())
	ctx := context.Background()

	svc.EvaluateCycle(ctx, exitQuotes(0.60, 0.55)) // ready: notifies
	svc.EvaluateCycle(ctx, exitQuotes(0.30, 0.30)) // drops back
	svc.EvaluateCycle(ctx, exitQuotes(0.60, 0.55)) // ready again within cooldown

	if len(notifier.events) != 1 {
		t.Fatalf("events = %v, want flapping suppressed to one", notifier.events)
	}
}

func TestExitCycleSkipsUnquotedHedges(t *testing.T) {
	svc := NewExitService(newTestEngine(t), hedgedPositionService(), nil, 0, testLogger())

	records := svc.EvaluateCycle(context.Background(), map[domain.OutcomeKey]domain.OutcomeQuote{})
	if len(records) != 0 {
		t.Fatalf("got %d records for an unquoted hedge, want 0", len(records))
	}
}
