package arbitrage

import "github.com/hedgescan/hedgescan/internal/domain"

// EvaluateExit marks an opened hedge to market against the outcome's current
// books. Each leg unwinds into the top bid of the contract it holds, falling
// back to the venue's last trade price when no bid is quoted; a side with
// neither is valued at zero, which keeps the record visible while making the
// exit unprofitable. Entry and exit fees use single-fill semantics at the
// historical average and current bid respectively. ok is false only when the
// matched share count is below the configured minimum.
func (e *Engine) EvaluateExit(h domain.HedgePosition, q domain.OutcomeQuote) (domain.ExitRecord, bool) {
	shares := h.Shares()
	if shares < e.cfg.MinShares || shares <= 0 {
		return domain.ExitRecord{}, false
	}

	q = normalizeQuote(q)

	kalshiLeg, polyLeg := h.YesLeg, h.NoLeg
	if kalshiLeg.Venue != domain.VenueKalshi {
		kalshiLeg, polyLeg = h.NoLeg, h.YesLeg
	}
	kalshiBid := legExitPrice(kalshiLeg, q.KalshiYes, q.KalshiNo)
	polyBid := legExitPrice(polyLeg, q.PolyYes, q.PolyNo)

	entryPriceSum := h.YesLeg.AvgPrice + h.NoLeg.AvgPrice
	entryFee := e.feeKalshi(kalshiLeg.AvgPrice, shares) + e.feePoly(polyLeg.AvgPrice, shares)
	entryCost := entryPriceSum*shares + entryFee

	exitPriceSum := kalshiBid + polyBid
	exitValue := exitPriceSum * shares
	exitFee := e.feeKalshi(kalshiBid, shares) + e.feePoly(polyBid, shares)

	netProfit := (exitValue - exitFee) - entryCost
	var profitPct float64
	if entryCost > 0 {
		profitPct = netProfit / entryCost
	}

	return domain.ExitRecord{
		Event:         h.Event,
		Outcome:       h.Outcome,
		Direction:     h.Direction(),
		Shares:        shares,
		EntryCost:     entryCost,
		ExitValue:     exitValue,
		ExitFee:       exitFee,
		NetProfit:     netProfit,
		ProfitPct:     profitPct,
		EntryPriceSum: entryPriceSum,
		ExitPriceSum:  exitPriceSum,
		CanExit:       netProfit > 0 && exitPriceSum >= e.cfg.ExitThreshold,
	}, true
}

// legExitPrice picks the book the leg sells into and returns its best bid.
func legExitPrice(leg domain.Position, yes, no domain.Book) float64 {
	book := yes
	if leg.Side == domain.SideNo {
		book = no
	}
	price, ok := book.BestBid()
	if !ok {
		return 0
	}
	return price
}
