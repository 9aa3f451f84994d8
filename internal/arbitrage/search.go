package arbitrage

import "github.com/hedgescan/hedgescan/internal/domain"

// profitPctFloor is assigned when a combination has no positive total cost.
// It sits far below any real return so the combination can never be selected.
const profitPctFloor = -1e9

// searchStrategies enumerates every depth pair across the two legs of one
// hedge direction and returns the combination with the strictly highest
// profit percentage. Leg A is the fee-bearing Kalshi side in both directions.
// The enumeration order is fixed (legA depth outer, legB depth inner, both
// ascending), so equal-profit combinations resolve to the first one found and
// the search is deterministic for a given book. ok is false when no depth
// pair yields an executable fill on both legs.
func searchStrategies(legA, legB domain.BookSide, feeA, feeB FeeFn, maxLevels int) (domain.StrategyResult, bool) {
	var best domain.StrategyResult
	found := false

	for dA := 1; dA <= maxLevels; dA++ {
		qA := aggregateDepth(legA, dA)
		if qA.TotalSize <= 0 {
			continue
		}
		for dB := 1; dB <= maxLevels; dB++ {
			qB := aggregateDepth(legB, dB)
			if qB.TotalSize <= 0 {
				continue
			}
			res := costStrategy(qA, qB, dA, dB, feeA, feeB)
			if !found || res.ProfitPct > best.ProfitPct {
				best = res
				found = true
			}
		}
	}
	return best, found
}

// costStrategy prices one depth combination. The hedge is capped by the
// thinner leg; every matched share pays out 1 at settlement regardless of
// which side wins, so profit is shares minus cost minus fees.
func costStrategy(qA, qB depthQuote, dA, dB int, feeA, feeB FeeFn) domain.StrategyResult {
	shares := qA.TotalSize
	if qB.TotalSize < shares {
		shares = qB.TotalSize
	}

	costPerShare := qA.AvgPrice + qB.AvgPrice
	totalCost := costPerShare * shares
	fee := walkFee(qA.Levels, shares, feeA) + walkFee(qB.Levels, shares, feeB)
	profit := shares - totalCost - fee

	profitPct := profitPctFloor
	if totalCost > 0 {
		profitPct = profit / totalCost
	}

	return domain.StrategyResult{
		LegADepth:    dA,
		LegBDepth:    dB,
		LegAAvgPrice: qA.AvgPrice,
		LegBAvgPrice: qB.AvgPrice,
		Shares:       shares,
		CostPerShare: costPerShare,
		TotalCost:    totalCost,
		Fee:          fee,
		Profit:       profit,
		ProfitPct:    profitPct,
	}
}

// walkFee bills a fill of up to shares against the retained levels in book
// order. Each level is billed at its own price on the quantity actually taken
// from it, never at the blended average, so a per-fill minimum applies once
// per distinct price level consumed.
func walkFee(levels []domain.PriceLevel, shares float64, fee FeeFn) float64 {
	var total float64
	remaining := shares
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		fill := lvl.Size
		if fill > remaining {
			fill = remaining
		}
		total += fee(lvl.Price, fill)
		remaining -= fill
	}
	return total
}
