package domain

import "time"

// QuoteSource tags where a book came from, so downstream logic can tell real
// venue quotes apart from synthesized ones.
type QuoteSource string

const (
	// QuotePresent marks a book fetched directly from the venue.
	QuotePresent QuoteSource = "present"
	// QuoteDerived marks a book synthesized as the 1-price complement of the
	// opposite contract's book.
	QuoteDerived QuoteSource = "derived"
	// QuoteMissing marks a book that could not be fetched or derived.
	QuoteMissing QuoteSource = "missing"
)

// Book is the two-sided order book of one contract, with provenance.
// LastPrice is the venue's scalar price field, used as the exit-side fallback
// when the bid side is absent.
type Book struct {
	Source    QuoteSource
	Asks      BookSide
	Bids      BookSide
	LastPrice float64
	UpdatedAt time.Time
}

// BestBid returns the top bid price, falling back to LastPrice when the bid
// side is empty. The second return reports whether any usable price exists.
func (b Book) BestBid() (float64, bool) {
	if top, ok := b.Bids.Top(); ok {
		return top.Price, true
	}
	if b.LastPrice > 0 {
		return b.LastPrice, true
	}
	return 0, false
}

// OutcomeQuote bundles the four contract books for one event outcome:
// Kalshi YES/NO and Polymarket YES/NO. The YES books are mandatory for
// evaluation; NO books may be absent and derived by the normalizer.
type OutcomeQuote struct {
	Event     string
	Outcome   string
	KalshiYes Book
	KalshiNo  Book
	PolyYes   Book
	PolyNo    Book
	Timestamp time.Time
}

// Key returns the quote's identity in the (event, outcome) key space.
func (q OutcomeQuote) Key() OutcomeKey {
	return OutcomeKey{Event: q.Event, Outcome: q.Outcome}
}
