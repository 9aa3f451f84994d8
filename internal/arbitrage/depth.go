package arbitrage

import "github.com/hedgescan/hedgescan/internal/domain"

// depthQuote is the first levels of one book side collapsed into a single
// fill candidate: size-weighted average price, total available size, and the
// consumed levels retained so fees can be billed per level rather than at the
// blended average.
type depthQuote struct {
	AvgPrice  float64
	TotalSize float64
	Levels    []domain.PriceLevel
}

// aggregateDepth collapses the first depth levels of side. Fewer levels than
// requested aggregates what exists; an empty side yields a zero-size quote,
// which no strategy can use.
func aggregateDepth(side domain.BookSide, depth int) depthQuote {
	if depth < 0 {
		depth = 0
	}
	if depth > len(side) {
		depth = len(side)
	}

	var q depthQuote
	var notional float64
	for _, lvl := range side[:depth] {
		notional += lvl.Price * lvl.Size
		q.TotalSize += lvl.Size
		q.Levels = append(q.Levels, lvl)
	}
	if q.TotalSize > 0 {
		q.AvgPrice = notional / q.TotalSize
	}
	return q
}
