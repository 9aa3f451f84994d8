package arbitrage

import (
	"testing"

	"github.com/hedgescan/hedgescan/internal/domain"
)

func testHedge(kalshiSide domain.Side, kalshiAvg, polyAvg, shares float64) domain.HedgePosition {
	kalshiLeg := domain.Position{
		Event: "election", Outcome: "candidate-a",
		Venue: domain.VenueKalshi, Side: kalshiSide, Shares: shares, AvgPrice: kalshiAvg,
	}
	polyLeg := domain.Position{
		Event: "election", Outcome: "candidate-a",
		Venue: domain.VenuePolymarket, Side: kalshiSide.Opposite(), Shares: shares, AvgPrice: polyAvg,
	}
	h := domain.HedgePosition{Event: "election", Outcome: "candidate-a"}
	if kalshiSide == domain.SideYes {
		h.YesLeg, h.NoLeg = kalshiLeg, polyLeg
	} else {
		h.YesLeg, h.NoLeg = polyLeg, kalshiLeg
	}
	return h
}

func bidBook(price, size float64) domain.Book {
	return domain.Book{Source: domain.QuotePresent, Bids: domain.BookSide{{Price: price, Size: size}}}
}

func TestEvaluateExit_ProfitableAndReady(t *testing.T) {
	// Entered at 0.45 + 0.49; bids moved to 0.51 + 0.48, summing to 0.99.
	e := testEngine(t)
	h := testHedge(domain.SideYes, 0.45, 0.49, 100)
	q := domain.OutcomeQuote{
		Event: "election", Outcome: "candidate-a",
		KalshiYes: bidBook(0.51, 200),
		PolyNo:    bidBook(0.48, 200),
	}

	rec, ok := e.EvaluateExit(h, q)
	if !ok {
		t.Fatal("expected an exit record")
	}
	if !almostEqual(rec.EntryPriceSum, 0.94) {
		t.Fatalf("entry price sum=%v want 0.94", rec.EntryPriceSum)
	}
	// 94.0 principal plus the 0.891 Kalshi entry fee.
	if !almostEqual(rec.EntryCost, 94.891) {
		t.Fatalf("entry cost=%v want 94.891", rec.EntryCost)
	}
	if !almostEqual(rec.ExitPriceSum, 0.99) {
		t.Fatalf("exit price sum=%v want 0.99", rec.ExitPriceSum)
	}
	if !almostEqual(rec.ExitValue, 99.0) {
		t.Fatalf("exit value=%v want 99.0", rec.ExitValue)
	}
	// Kalshi fee on selling 100 at 0.51.
	if !almostEqual(rec.ExitFee, 1.019592) {
		t.Fatalf("exit fee=%v want 1.019592", rec.ExitFee)
	}
	if !almostEqual(rec.NetProfit, 3.089408) {
		t.Fatalf("net profit=%v want 3.089408", rec.NetProfit)
	}
	if !rec.CanExit {
		t.Fatal("profitable unwind above the exit threshold must be ready")
	}
	if rec.Direction != domain.DirectionKalshiYesPolyNo {
		t.Fatalf("direction=%s want %s", rec.Direction, domain.DirectionKalshiYesPolyNo)
	}
}

func TestEvaluateExit_ThresholdGatesProfitableUnwind(t *testing.T) {
	// Entered cheap at 0.90 combined; bids sum to only 0.97. The unwind
	// nets a profit but stays below the 0.98 readiness bar.
	e := testEngine(t)
	h := testHedge(domain.SideYes, 0.45, 0.45, 100)
	q := domain.OutcomeQuote{
		Event: "election", Outcome: "candidate-a",
		KalshiYes: bidBook(0.50, 200),
		PolyNo:    bidBook(0.47, 200),
	}

	rec, ok := e.EvaluateExit(h, q)
	if !ok {
		t.Fatal("expected an exit record")
	}
	if rec.NetProfit <= 0 {
		t.Fatalf("net profit=%v want positive", rec.NetProfit)
	}
	if !almostEqual(rec.ExitPriceSum, 0.97) {
		t.Fatalf("exit price sum=%v want 0.97", rec.ExitPriceSum)
	}
	if rec.CanExit {
		t.Fatal("exit price sum below threshold must not be ready")
	}
}

func TestEvaluateExit_LastPriceFallback(t *testing.T) {
	e := testEngine(t)
	h := testHedge(domain.SideYes, 0.45, 0.49, 100)
	q := domain.OutcomeQuote{
		Event: "election", Outcome: "candidate-a",
		KalshiYes: domain.Book{Source: domain.QuotePresent, LastPrice: 0.51},
		PolyNo:    bidBook(0.48, 200),
	}

	rec, ok := e.EvaluateExit(h, q)
	if !ok {
		t.Fatal("expected an exit record")
	}
	if !almostEqual(rec.ExitPriceSum, 0.99) {
		t.Fatalf("exit price sum=%v want 0.99 via last price", rec.ExitPriceSum)
	}
	if !rec.CanExit {
		t.Fatal("fallback-priced unwind must still be ready")
	}
}

func TestEvaluateExit_MissingPriceValuesLegAtZero(t *testing.T) {
	e := testEngine(t)
	h := testHedge(domain.SideYes, 0.45, 0.49, 100)
	q := domain.OutcomeQuote{
		Event: "election", Outcome: "candidate-a",
		PolyNo: bidBook(0.48, 200),
	}

	rec, ok := e.EvaluateExit(h, q)
	if !ok {
		t.Fatal("expected an exit record even with an unpriceable leg")
	}
	if !almostEqual(rec.ExitPriceSum, 0.48) {
		t.Fatalf("exit price sum=%v want 0.48", rec.ExitPriceSum)
	}
	if rec.CanExit || rec.NetProfit > 0 {
		t.Fatalf("unpriceable leg cannot be ready: canExit=%v net=%v", rec.CanExit, rec.NetProfit)
	}
}

func TestEvaluateExit_MinSharesSkips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinShares = 10
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	h := testHedge(domain.SideYes, 0.45, 0.49, 5)
	q := domain.OutcomeQuote{
		Event: "election", Outcome: "candidate-a",
		KalshiYes: bidBook(0.51, 200),
		PolyNo:    bidBook(0.48, 200),
	}
	if _, ok := e.EvaluateExit(h, q); ok {
		t.Fatal("hedge below min shares must be skipped")
	}
}

func TestEvaluateExit_UnequalLegsUseSmaller(t *testing.T) {
	e := testEngine(t)
	h := testHedge(domain.SideYes, 0.45, 0.49, 100)
	h.NoLeg.Shares = 60

	q := domain.OutcomeQuote{
		Event: "election", Outcome: "candidate-a",
		KalshiYes: bidBook(0.51, 200),
		PolyNo:    bidBook(0.48, 200),
	}
	rec, ok := e.EvaluateExit(h, q)
	if !ok {
		t.Fatal("expected an exit record")
	}
	if rec.Shares != 60 {
		t.Fatalf("shares=%v want 60", rec.Shares)
	}
}

func TestEvaluateExits_KeepsHigherOfBothDirections(t *testing.T) {
	e := testEngine(t)
	key := domain.OutcomeKey{Event: "election", Outcome: "candidate-a"}

	profitable := testHedge(domain.SideYes, 0.45, 0.49, 100)
	losing := testHedge(domain.SideNo, 0.50, 0.50, 100)

	quotes := map[domain.OutcomeKey]domain.OutcomeQuote{
		key: {
			Event: "election", Outcome: "candidate-a",
			KalshiYes: bidBook(0.51, 200),
			KalshiNo:  bidBook(0.49, 200),
			PolyYes:   bidBook(0.50, 200),
			PolyNo:    bidBook(0.48, 200),
		},
	}

	records := e.EvaluateExits([]domain.HedgePosition{losing, profitable}, quotes)
	rec, ok := records[key]
	if !ok {
		t.Fatal("expected a record for the outcome")
	}
	if rec.Direction != domain.DirectionKalshiYesPolyNo {
		t.Fatalf("direction=%s want the profitable hedge kept", rec.Direction)
	}
	if !almostEqual(rec.NetProfit, 3.089408) {
		t.Fatalf("net profit=%v want 3.089408", rec.NetProfit)
	}
}

func TestEvaluateExits_SkipsOutcomeWithoutQuote(t *testing.T) {
	e := testEngine(t)
	h := testHedge(domain.SideYes, 0.45, 0.49, 100)

	records := e.EvaluateExits([]domain.HedgePosition{h}, nil)
	if len(records) != 0 {
		t.Fatalf("records=%v want none without quotes", records)
	}
}
