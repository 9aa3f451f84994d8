package arbitrage

import (
	"math"
	"time"

	"github.com/hedgescan/hedgescan/internal/domain"
)

// BuildOpportunity evaluates one outcome in both hedge directions and returns
// the better strategy as an Opportunity. Direction 1 (Kalshi YES + Polymarket
// NO) is evaluated first and wins profit ties. ok is false when neither
// direction admits a strategy; malformed books degrade to a skipped
// direction, never an error.
func (e *Engine) BuildOpportunity(q domain.OutcomeQuote, settlement *time.Time, now time.Time) (domain.Opportunity, bool) {
	q = normalizeQuote(q)

	type candidate struct {
		dir     domain.Direction
		res     domain.StrategyResult
		derived bool
	}
	var cands []candidate

	if res, ok := searchStrategies(q.KalshiYes.Asks, q.PolyNo.Asks, e.feeKalshi, e.feePoly, e.cfg.MaxLevels); ok {
		cands = append(cands, candidate{
			dir:     domain.DirectionKalshiYesPolyNo,
			res:     res,
			derived: q.KalshiYes.Source == domain.QuoteDerived || q.PolyNo.Source == domain.QuoteDerived,
		})
	}
	if res, ok := searchStrategies(q.KalshiNo.Asks, q.PolyYes.Asks, e.feeKalshi, e.feePoly, e.cfg.MaxLevels); ok {
		cands = append(cands, candidate{
			dir:     domain.DirectionPolyYesKalshiNo,
			res:     res,
			derived: q.KalshiNo.Source == domain.QuoteDerived || q.PolyYes.Source == domain.QuoteDerived,
		})
	}
	if len(cands) == 0 {
		return domain.Opportunity{}, false
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.res.ProfitPct > best.res.ProfitPct {
			best = c
		}
	}

	return domain.Opportunity{
		Event:          q.Event,
		Outcome:        q.Outcome,
		Direction:      best.dir,
		Strategy:       best.res,
		Signal:         e.classify(best.res.ProfitPct),
		APY:            annualize(best.res.ProfitPct, settlement, now),
		DerivedQuote:   best.derived,
		SettlementDate: settlement,
		EvaluatedAt:    now,
	}, true
}

// classify buckets a return against the configured thresholds. Both bounds
// are strict: a return sitting exactly on a threshold takes the lower tier.
func (e *Engine) classify(profitPct float64) domain.Signal {
	switch {
	case profitPct > e.cfg.HotThreshold:
		return domain.SignalHot
	case profitPct > e.cfg.GoThreshold:
		return domain.SignalGo
	}
	return domain.SignalNone
}

// annualize projects a per-cycle return over the days remaining until
// settlement. No settlement date, or a settlement today or in the past,
// leaves the annualized figure undefined and returns nil; callers must not
// treat nil as zero.
func annualize(profitPct float64, settlement *time.Time, now time.Time) *float64 {
	if settlement == nil {
		return nil
	}
	days := daysUntil(*settlement, now)
	if days <= 0 {
		return nil
	}
	apy := profitPct * 365 / float64(days)
	return &apy
}

// daysUntil counts calendar days from now to t with both stamps truncated to
// midnight UTC, rounding any partial day up.
func daysUntil(t, now time.Time) int {
	diff := midnightUTC(t).Sub(midnightUTC(now))
	return int(math.Ceil(diff.Hours() / 24))
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
