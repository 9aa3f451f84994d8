package arbitrage

import (
	"math"
	"testing"

	"github.com/hedgescan/hedgescan/internal/domain"
)

func TestDeriveComplement_MirrorsSides(t *testing.T) {
	yes := domain.Book{
		Source:    domain.QuotePresent,
		Asks:      domain.BookSide{{Price: 0.45, Size: 100}, {Price: 0.47, Size: 50}},
		Bids:      domain.BookSide{{Price: 0.43, Size: 80}, {Price: 0.41, Size: 60}},
		LastPrice: 0.44,
	}

	no := deriveComplement(yes)
	if no.Source != domain.QuoteDerived {
		t.Fatalf("source=%s want %s", no.Source, domain.QuoteDerived)
	}

	// NO asks come from YES bids at 1-p; descending bids map to ascending
	// asks with the best level still first.
	if len(no.Asks) != 2 {
		t.Fatalf("len(asks)=%d want 2", len(no.Asks))
	}
	if !almostEqual(no.Asks[0].Price, 0.57) || no.Asks[0].Size != 80 {
		t.Fatalf("asks[0]=%+v want {0.57 80}", no.Asks[0])
	}
	if !almostEqual(no.Asks[1].Price, 0.59) || no.Asks[1].Size != 60 {
		t.Fatalf("asks[1]=%+v want {0.59 60}", no.Asks[1])
	}

	// NO bids come from YES asks, descending.
	if !almostEqual(no.Bids[0].Price, 0.55) || no.Bids[0].Size != 100 {
		t.Fatalf("bids[0]=%+v want {0.55 100}", no.Bids[0])
	}
	if !almostEqual(no.Bids[1].Price, 0.53) || no.Bids[1].Size != 50 {
		t.Fatalf("bids[1]=%+v want {0.53 50}", no.Bids[1])
	}

	if !almostEqual(no.LastPrice, 0.56) {
		t.Fatalf("last price=%v want 0.56", no.LastPrice)
	}
}

func TestDeriveComplement_EmptyYesStaysMissing(t *testing.T) {
	no := deriveComplement(domain.Book{Source: domain.QuoteMissing})
	if no.Source != domain.QuoteMissing {
		t.Fatalf("source=%s want %s", no.Source, domain.QuoteMissing)
	}
	if len(no.Asks) != 0 || len(no.Bids) != 0 {
		t.Fatalf("derived book from nothing: %+v", no)
	}
}

func TestNormalizeQuote_KeepsPresentNoBook(t *testing.T) {
	q := domain.OutcomeQuote{
		KalshiYes: domain.Book{Source: domain.QuotePresent, Asks: domain.BookSide{{Price: 0.45, Size: 100}}},
		KalshiNo:  domain.Book{Source: domain.QuotePresent, Asks: domain.BookSide{{Price: 0.56, Size: 40}}},
	}

	got := normalizeQuote(q)
	if got.KalshiNo.Source != domain.QuotePresent {
		t.Fatalf("present NO book replaced: source=%s", got.KalshiNo.Source)
	}
	if got.KalshiNo.Asks[0].Price != 0.56 {
		t.Fatalf("present NO ask=%v want 0.56", got.KalshiNo.Asks[0].Price)
	}
}

func TestNormalizeQuote_MissingYesDerivesNothing(t *testing.T) {
	got := normalizeQuote(domain.OutcomeQuote{})
	if got.KalshiNo.Source != domain.QuoteMissing || got.PolyNo.Source != domain.QuoteMissing {
		t.Fatalf("NO books derived without YES data: kalshi=%s poly=%s",
			got.KalshiNo.Source, got.PolyNo.Source)
	}
}

func TestSanitizeSide_DropsAndMerges(t *testing.T) {
	side := domain.BookSide{
		{Price: 0, Size: 10},         // boundary price
		{Price: 0.40, Size: 10},
		{Price: 0.40, Size: 15},      // same price, merged
		{Price: 0.42, Size: -5},      // negative size
		{Price: 0.42, Size: 5},
		{Price: 1, Size: 10},         // boundary price
		{Price: 1.2, Size: 10},       // out of range
		{Price: math.NaN(), Size: 10},
		{Price: 0.43, Size: math.Inf(1)},
	}

	got := sanitizeSide(side)
	if len(got) != 2 {
		t.Fatalf("len=%d want 2: %+v", len(got), got)
	}
	if got[0].Price != 0.40 || got[0].Size != 25 {
		t.Fatalf("got[0]=%+v want {0.40 25}", got[0])
	}
	if got[1].Price != 0.42 || got[1].Size != 5 {
		t.Fatalf("got[1]=%+v want {0.42 5}", got[1])
	}
}

func TestSanitizeBook_ClearsBogusLastPrice(t *testing.T) {
	b := sanitizeBook(domain.Book{LastPrice: 1.5})
	if b.LastPrice != 0 {
		t.Fatalf("last price=%v want 0", b.LastPrice)
	}
	b = sanitizeBook(domain.Book{LastPrice: 0.47})
	if b.LastPrice != 0.47 {
		t.Fatalf("last price=%v want 0.47", b.LastPrice)
	}
}
