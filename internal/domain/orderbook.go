package domain

// PriceLevel is a single price+size entry in an order book. Price is a
// probability-style quote strictly inside (0,1); Size is a share count.
type PriceLevel struct {
	Price float64
	Size  float64
}

// BookSide is one side of an order book, top-of-book first: asks ascending
// by price, bids descending. Sides are immutable snapshots replaced wholesale
// each poll cycle, never mutated in place.
type BookSide []PriceLevel

// Top returns the best level of the side.
func (s BookSide) Top() (PriceLevel, bool) {
	if len(s) == 0 {
		return PriceLevel{}, false
	}
	return s[0], true
}

// TotalSize sums the available shares across all levels.
func (s BookSide) TotalSize() float64 {
	var total float64
	for _, lvl := range s {
		total += lvl.Size
	}
	return total
}
