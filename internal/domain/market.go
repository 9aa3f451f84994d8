package domain

import "time"

// Venue identifies one of the two quoting venues.
type Venue string

const (
	VenueKalshi     Venue = "kalshi"
	VenuePolymarket Venue = "polymarket"
)

// OutcomeKey identifies one outcome of one event, the key space shared by
// quotes, opportunities, and exit records.
type OutcomeKey struct {
	Event   string
	Outcome string
}

func (k OutcomeKey) String() string {
	return k.Event + "/" + k.Outcome
}

// OutcomeMeta is the resolved venue identity of one configured outcome:
// the Kalshi market ticker and the Polymarket CLOB token IDs for its YES and
// NO contracts, plus the settlement date used for annualized projections
// (per-outcome override already applied). Produced by the metadata cache,
// consumed by the quote scanner.
type OutcomeMeta struct {
	Event          string
	Outcome        string
	KalshiTicker   string
	PolyYesToken   string
	PolyNoToken    string
	PolySlug       string
	SettlementDate *time.Time
}

// Key returns the meta's identity in the (event, outcome) key space.
func (m OutcomeMeta) Key() OutcomeKey {
	return OutcomeKey{Event: m.Event, Outcome: m.Outcome}
}
