package domain

import "time"

// Direction names which venue holds the YES leg of a hedge. The other venue
// always holds the NO leg of the same outcome.
type Direction string

const (
	DirectionKalshiYesPolyNo Direction = "kalshi_yes_poly_no"
	DirectionPolyYesKalshiNo Direction = "poly_yes_kalshi_no"
)

// Signal is the coarse profitability tier of an opportunity.
type Signal string

const (
	SignalHot  Signal = "HOT"
	SignalGo   Signal = "GO"
	SignalNone Signal = "NONE"
)

// StrategyResult is the costed outcome of one depth combination for one hedge
// direction. Leg A is always the fee-bearing Kalshi leg, leg B the Polymarket
// leg. Results are ephemeral: recomputed every evaluation, immutable once
// produced.
type StrategyResult struct {
	LegADepth    int
	LegBDepth    int
	LegAAvgPrice float64
	LegBAvgPrice float64
	Shares       float64
	CostPerShare float64
	TotalCost    float64
	Fee          float64
	Profit       float64
	ProfitPct    float64
}

// SpreadPct is the fee-free edge of the strategy, 1 - costPerShare.
func (r StrategyResult) SpreadPct() float64 {
	return 1 - r.CostPerShare
}

// Opportunity is the best hedge found for one (event, outcome) pair in one
// evaluation cycle. It is superseded wholesale on the next cycle, never
// patched in place.
//
// APY is nil when no future settlement date is known; it must never be
// treated as a numeric zero for sorting. DerivedQuote is true when the chosen
// direction consumed a book synthesized by the normalizer rather than fetched
// from the venue.
type Opportunity struct {
	Event          string
	Outcome        string
	Direction      Direction
	Strategy       StrategyResult
	Signal         Signal
	APY            *float64
	DerivedQuote   bool
	SettlementDate *time.Time
	EvaluatedAt    time.Time
}

// Key returns the opportunity's identity in the (event, outcome) key space.
func (o Opportunity) Key() OutcomeKey {
	return OutcomeKey{Event: o.Event, Outcome: o.Outcome}
}

// Evaluation is one complete, consistent, point-in-time batch of
// opportunities plus its aggregate statistics. Consumers must treat it as a
// whole; partial updates within one evaluation do not exist.
type Evaluation struct {
	ID            string
	At            time.Time
	Opportunities []Opportunity
	Stats         BatchStats
}

// OpportunityFilter narrows and orders an evaluation's opportunities for
// presentation. The zero value selects everything, sorted by profit
// percentage descending.
type OpportunityFilter struct {
	Signal       string // HOT | GO | NONE (case-insensitive); empty for all
	Event        string
	MinProfitPct *float64
	Sort         string // profit_pct (default) | apy
	Limit        int    // 0 = unlimited
}
