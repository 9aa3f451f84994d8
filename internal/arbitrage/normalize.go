package arbitrage

import (
	"math"

	"github.com/hedgescan/hedgescan/internal/domain"
)

// normalizeQuote sanitizes every book of an outcome quote and derives any
// absent NO book from its venue's YES book. YES books are never derived; an
// outcome missing a YES book simply has no admissible strategy in the
// directions that need it.
func normalizeQuote(q domain.OutcomeQuote) domain.OutcomeQuote {
	q.KalshiYes = sanitizeBook(q.KalshiYes)
	q.KalshiNo = sanitizeBook(q.KalshiNo)
	q.PolyYes = sanitizeBook(q.PolyYes)
	q.PolyNo = sanitizeBook(q.PolyNo)

	if bookEmpty(q.KalshiNo) {
		q.KalshiNo = deriveComplement(q.KalshiYes)
	}
	if bookEmpty(q.PolyNo) {
		q.PolyNo = deriveComplement(q.PolyYes)
	}
	return q
}

// sanitizeBook drops levels that cannot be executed and merges runs of
// levels quoting the same price, so per-fill fee minimums bill each distinct
// price exactly once. A last price outside (0,1) is cleared rather than kept
// as a bogus exit fallback.
func sanitizeBook(b domain.Book) domain.Book {
	b.Asks = sanitizeSide(b.Asks)
	b.Bids = sanitizeSide(b.Bids)
	if !validPrice(b.LastPrice) {
		b.LastPrice = 0
	}
	return b
}

func sanitizeSide(side domain.BookSide) domain.BookSide {
	var out domain.BookSide
	for _, lvl := range side {
		if !validPrice(lvl.Price) || !validSize(lvl.Size) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Price == lvl.Price {
			out[n-1].Size += lvl.Size
			continue
		}
		out = append(out, lvl)
	}
	return out
}

// validPrice accepts probabilities strictly inside (0,1). NaN fails both
// comparisons, infinities fail one of them.
func validPrice(p float64) bool {
	return p > 0 && p < 1
}

func validSize(s float64) bool {
	return s > 0 && !math.IsInf(s, 0)
}

func bookEmpty(b domain.Book) bool {
	return len(b.Asks) == 0 && len(b.Bids) == 0
}

// deriveComplement synthesizes the NO book implied by a YES book. Buying NO
// at 1-p fills against someone selling YES at p, so NO asks mirror YES bids
// and NO bids mirror YES asks. The 1-p map reverses the price ordering on
// its own: descending YES bids come out as ascending NO asks with the best
// level still first. Sizes carry over unchanged. An empty YES book derives
// nothing and the result stays Missing.
func deriveComplement(yes domain.Book) domain.Book {
	no := domain.Book{Source: domain.QuoteMissing, UpdatedAt: yes.UpdatedAt}
	if bookEmpty(yes) {
		return no
	}

	no.Source = domain.QuoteDerived
	no.Asks = complementSide(yes.Bids)
	no.Bids = complementSide(yes.Asks)
	if validPrice(yes.LastPrice) {
		no.LastPrice = 1 - yes.LastPrice
	}
	return no
}

func complementSide(side domain.BookSide) domain.BookSide {
	if len(side) == 0 {
		return nil
	}
	out := make(domain.BookSide, len(side))
	for i, lvl := range side {
		out[i] = domain.PriceLevel{Price: 1 - lvl.Price, Size: lvl.Size}
	}
	return out
}
