package arbitrage

import (
	"testing"

	"github.com/hedgescan/hedgescan/internal/domain"
)

var (
	testFeeKalshi = QuadraticFee(0.08, 0.50)
	testFeePoly   = FeeFn(NoFee)
)

func TestSearchStrategies_DeeperAmortizesFloor(t *testing.T) {
	// A thin top level pays the 50 cent floor on almost no shares; taking
	// the second level spreads fees over two hundred more.
	legA := domain.BookSide{{Price: 0.45, Size: 5}, {Price: 0.46, Size: 200}}
	legB := domain.BookSide{{Price: 0.50, Size: 500}}

	res, ok := searchStrategies(legA, legB, testFeeKalshi, testFeePoly, 3)
	if !ok {
		t.Fatal("expected a strategy")
	}
	if res.LegADepth != 2 || res.LegBDepth != 1 {
		t.Fatalf("depths=(%d,%d) want (2,1)", res.LegADepth, res.LegBDepth)
	}
	if res.Shares != 205 {
		t.Fatalf("shares=%v want 205", res.Shares)
	}
	// Fee = floor on the 5-share fill + quadratic on the 200-share fill.
	if want := 0.50 + 1.828224; !almostEqual(res.Fee, want) {
		t.Fatalf("fee=%v want %v", res.Fee, want)
	}
	if !almostEqual(res.Profit, 5.921776) {
		t.Fatalf("profit=%v want 5.921776", res.Profit)
	}
}

func TestSearchStrategies_DeeperLevelTooExpensive(t *testing.T) {
	// The second ask level is priced past breakeven; taking it turns the
	// hedge into a loss, so the top level alone must win.
	legA := domain.BookSide{{Price: 0.45, Size: 100}, {Price: 0.60, Size: 100}}
	legB := domain.BookSide{{Price: 0.50, Size: 200}}

	res, ok := searchStrategies(legA, legB, testFeeKalshi, testFeePoly, 3)
	if !ok {
		t.Fatal("expected a strategy")
	}
	if res.LegADepth != 1 {
		t.Fatalf("legA depth=%d want 1", res.LegADepth)
	}
	if !almostEqual(res.Profit, 4.109) {
		t.Fatalf("profit=%v want 4.109", res.Profit)
	}
}

func TestSearchStrategies_ThinLegCapsShares(t *testing.T) {
	legA := domain.BookSide{{Price: 0.40, Size: 50}}
	legB := domain.BookSide{{Price: 0.55, Size: 10}}

	res, ok := searchStrategies(legA, legB, testFeeKalshi, testFeePoly, 3)
	if !ok {
		t.Fatal("expected a strategy")
	}
	if res.Shares != 10 {
		t.Fatalf("shares=%v want 10 (thinner leg)", res.Shares)
	}
	if !almostEqual(res.TotalCost, 9.5) {
		t.Fatalf("total cost=%v want 9.5", res.TotalCost)
	}
}

func TestSearchStrategies_TieKeepsFirstCombination(t *testing.T) {
	// legB has a single level, so every legB depth aggregates identically
	// and (dA,1) must win over the equal (dA,2) and (dA,3).
	legA := domain.BookSide{{Price: 0.45, Size: 100}}
	legB := domain.BookSide{{Price: 0.50, Size: 100}}

	res, ok := searchStrategies(legA, legB, testFeeKalshi, testFeePoly, 3)
	if !ok {
		t.Fatal("expected a strategy")
	}
	if res.LegADepth != 1 || res.LegBDepth != 1 {
		t.Fatalf("depths=(%d,%d) want (1,1)", res.LegADepth, res.LegBDepth)
	}
}

func TestSearchStrategies_ZeroCostNeverBeatsReal(t *testing.T) {
	// Depth (1,1) costs nothing and takes the sentinel; the real (1,2)
	// combination must be selected over it.
	legA := domain.BookSide{{Price: 0, Size: 10}}
	legB := domain.BookSide{{Price: 0, Size: 10}, {Price: 0.50, Size: 100}}

	res, ok := searchStrategies(legA, legB, testFeeKalshi, testFeePoly, 3)
	if !ok {
		t.Fatal("expected a strategy")
	}
	if res.LegBDepth != 2 {
		t.Fatalf("legB depth=%d want 2", res.LegBDepth)
	}
	if res.ProfitPct <= 0 {
		t.Fatalf("profitPct=%v want positive", res.ProfitPct)
	}
}

func TestSearchStrategies_NoLiquidity(t *testing.T) {
	if _, ok := searchStrategies(nil, nil, testFeeKalshi, testFeePoly, 3); ok {
		t.Fatal("expected no strategy for empty books")
	}
	legB := domain.BookSide{{Price: 0.50, Size: 100}}
	if _, ok := searchStrategies(nil, legB, testFeeKalshi, testFeePoly, 3); ok {
		t.Fatal("expected no strategy when one leg is empty")
	}
}

func TestSearchStrategies_Deterministic(t *testing.T) {
	legA := domain.BookSide{{Price: 0.44, Size: 30}, {Price: 0.45, Size: 70}, {Price: 0.47, Size: 200}}
	legB := domain.BookSide{{Price: 0.51, Size: 40}, {Price: 0.52, Size: 90}, {Price: 0.53, Size: 150}}

	first, ok := searchStrategies(legA, legB, testFeeKalshi, testFeePoly, 3)
	if !ok {
		t.Fatal("expected a strategy")
	}
	second, _ := searchStrategies(legA, legB, testFeeKalshi, testFeePoly, 3)
	if first != second {
		t.Fatalf("search not deterministic:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestWalkFee_BillsPartialLastLevel(t *testing.T) {
	levels := []domain.PriceLevel{{Price: 0.45, Size: 100}, {Price: 0.46, Size: 100}}

	// 150 shares consume the first level fully and half the second.
	got := walkFee(levels, 150, testFeeKalshi)
	want := testFeeKalshi(0.45, 100) + testFeeKalshi(0.46, 50)
	if !almostEqual(got, want) {
		t.Fatalf("walk fee=%v want %v", got, want)
	}
}
