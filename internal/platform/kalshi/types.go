package kalshi

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hedgescan/hedgescan/internal/domain"
)

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// Market represents a market as returned by the Kalshi REST API. Prices are
// integer cents in [1,99].
type Market struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	Status       string `json:"status"` // "active", "closed", "settled"
	YesBid       int64  `json:"yes_bid"`
	YesAsk       int64  `json:"yes_ask"`
	NoBid        int64  `json:"no_bid"`
	NoAsk        int64  `json:"no_ask"`
	LastPrice    int64  `json:"last_price"`
	Volume       int64  `json:"volume"`
	Volume24H    int64  `json:"volume_24h"`
	OpenInterest int64  `json:"open_interest"`
	Result       string `json:"result"` // "yes", "no", "" (unsettled)
	OpenTime     string `json:"open_time"`
	CloseTime    string `json:"close_time"`
}

// PriceLevel is a single price+quantity entry in the Kalshi orderbook.
type PriceLevel struct {
	Price    int64 // cents (1-99)
	Quantity int64 // number of contracts
}

// UnmarshalJSON accepts both encodings the API has used for a level: the
// compact [price, quantity] pair and the keyed object form.
func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair [2]int64
	if err := json.Unmarshal(data, &pair); err == nil {
		l.Price, l.Quantity = pair[0], pair[1]
		return nil
	}

	var obj struct {
		Price    int64 `json:"price"`
		Quantity int64 `json:"quantity"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("kalshi: decode price level %s: %w", string(data), err)
	}
	l.Price, l.Quantity = obj.Price, obj.Quantity
	return nil
}

// Orderbook represents the orderbook for a Kalshi market. Kalshi publishes
// resting bids only, one array per contract side; the ask side of each
// contract is implied by the opposite side's bids.
type Orderbook struct {
	Ticker    string       `json:"-"`
	Yes       []PriceLevel `json:"yes"`
	No        []PriceLevel `json:"no"`
	Timestamp time.Time    `json:"-"`
}

// ErrorResponse represents a Kalshi API error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --------------------------------------------------------------------------
// Conversion helpers
// --------------------------------------------------------------------------

// Prob converts a Kalshi cent price to a probability-style quote.
func Prob(cents int64) float64 {
	return float64(cents) / 100
}

// YesBook builds the two-sided YES contract book. Bids come straight from
// the YES bid array; asks are the complement of the NO bid array, because a
// resting NO bid at p cents fills a YES buy at 100-p. lastYes is the
// market's last trade price as a probability, kept as the exit fallback.
func (ob Orderbook) YesBook(lastYes float64) domain.Book {
	book := domain.Book{
		Source:    domain.QuotePresent,
		Bids:      bidSide(ob.Yes),
		Asks:      askSide(ob.No),
		UpdatedAt: ob.Timestamp,
	}
	if lastYes > 0 && lastYes < 1 {
		book.LastPrice = lastYes
	}
	return book
}

// NoBook builds the two-sided NO contract book, the mirror of YesBook: bids
// from the NO bid array, asks as the complement of the YES bid array.
func (ob Orderbook) NoBook(lastYes float64) domain.Book {
	book := domain.Book{
		Source:    domain.QuotePresent,
		Bids:      bidSide(ob.No),
		Asks:      askSide(ob.Yes),
		UpdatedAt: ob.Timestamp,
	}
	if lastYes > 0 && lastYes < 1 {
		book.LastPrice = 1 - lastYes
	}
	return book
}

// bidSide converts a bid array to a probability-priced side sorted best
// (highest) first. Levels at 0 or 100 cents cannot be executed and are
// dropped.
func bidSide(levels []PriceLevel) domain.BookSide {
	side := convertLevels(levels, func(cents int64) float64 { return Prob(cents) })
	sort.SliceStable(side, func(i, j int) bool { return side[i].Price > side[j].Price })
	return side
}

// askSide converts the opposite contract's bid array into this contract's
// ask side (price 1-p, size carried) sorted best (lowest) first.
func askSide(levels []PriceLevel) domain.BookSide {
	side := convertLevels(levels, func(cents int64) float64 { return 1 - Prob(cents) })
	sort.SliceStable(side, func(i, j int) bool { return side[i].Price < side[j].Price })
	return side
}

func convertLevels(levels []PriceLevel, price func(int64) float64) domain.BookSide {
	var side domain.BookSide
	for _, lvl := range levels {
		if lvl.Price <= 0 || lvl.Price >= 100 || lvl.Quantity <= 0 {
			continue
		}
		side = append(side, domain.PriceLevel{
			Price: price(lvl.Price),
			Size:  float64(lvl.Quantity),
		})
	}
	return side
}
