package domain

// Side is a binary contract side on either venue.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite returns the complementary side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Position is one leg of a hedge: shares held on one venue, one side, at a
// volume-weighted entry price. AvgPrice is in probability units (0..1).
type Position struct {
	Event    string
	Outcome  string
	Venue    Venue
	Side     Side
	Shares   float64
	AvgPrice float64
}

// Cost is the capital committed to the leg, excluding entry fees.
func (p Position) Cost() float64 {
	return p.Shares * p.AvgPrice
}

// HedgePosition pairs a YES leg on one venue with a NO leg on the other for
// the same (event, outcome). Legs may be unequal in shares; exit math uses
// the smaller of the two.
type HedgePosition struct {
	Event   string
	Outcome string
	YesLeg  Position
	NoLeg   Position
}

// Direction reports which venue holds the YES leg.
func (h HedgePosition) Direction() Direction {
	if h.YesLeg.Venue == VenueKalshi {
		return DirectionKalshiYesPolyNo
	}
	return DirectionPolyYesKalshiNo
}

// Shares returns the matched share count across both legs.
func (h HedgePosition) Shares() float64 {
	if h.YesLeg.Shares < h.NoLeg.Shares {
		return h.YesLeg.Shares
	}
	return h.NoLeg.Shares
}

// Key returns the hedge's identity in the (event, outcome) key space.
func (h HedgePosition) Key() OutcomeKey {
	return OutcomeKey{Event: h.Event, Outcome: h.Outcome}
}

// ExitRecord is the result of costing an early unwind of a hedge at current
// bids. EntryCost includes the entry fee paid; ExitFee is the fee due on the
// closing trades. CanExit requires positive net profit and a combined exit
// price of at least the exit threshold.
type ExitRecord struct {
	Event         string
	Outcome       string
	Direction     Direction
	Shares        float64
	EntryCost     float64
	ExitValue     float64
	ExitFee       float64
	NetProfit     float64
	ProfitPct     float64
	EntryPriceSum float64
	ExitPriceSum  float64
	CanExit       bool
}
