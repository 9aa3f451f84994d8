package polymarket

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hedgescan/hedgescan/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// stringList unmarshals from a JSON array of strings or from a JSON-encoded
// string holding one (`"[\"a\",\"b\"]"`). Gamma emits both encodings for
// outcomes and CLOB token IDs.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*l = nil
		return nil
	}
	var inner []string
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return err
	}
	*l = inner
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// GammaMarket represents a market as returned by the Polymarket Gamma API.
type GammaMarket struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	ConditionID   string     `json:"conditionId"`
	Slug          string     `json:"slug"`
	Active        flexBool   `json:"active"`
	Closed        bool       `json:"closed"`
	Outcomes      stringList `json:"outcomes"`
	OutcomePrices stringList `json:"outcomePrices"`
	ClobTokenIDs  stringList `json:"clobTokenIds"`
	Volume        string     `json:"volume"`
	EndDate       string     `json:"endDate"`
	NegRisk       bool       `json:"negRisk"`
}

// TokenPair returns the YES and NO CLOB token IDs for a binary market.
// Gamma lists tokens in outcome order, normally ["Yes","No"]; when the
// labels say otherwise the pair is swapped to match.
func (m *GammaMarket) TokenPair() (yes, no string, ok bool) {
	if len(m.ClobTokenIDs) < 2 {
		return "", "", false
	}
	yes, no = m.ClobTokenIDs[0], m.ClobTokenIDs[1]
	if len(m.Outcomes) >= 2 && strings.EqualFold(m.Outcomes[1], "yes") {
		yes, no = no, yes
	}
	return yes, no, true
}

// SettlementDate parses the market's end date, nil when absent or malformed.
func (m *GammaMarket) SettlementDate() *time.Time {
	if m.EndDate == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, m.EndDate)
	if err != nil {
		return nil
	}
	return &t
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// WSPriceLevel is a single bid/ask level; the CLOB encodes prices and sizes
// as decimal strings over both REST and WebSocket.
type WSPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BookSnapshot is a full orderbook for one token, the shared shape of the
// CLOB GET /book response and the WebSocket "book" event.
type BookSnapshot struct {
	Market    string         `json:"market"`
	AssetID   string         `json:"asset_id"`
	Bids      []WSPriceLevel `json:"bids"`
	Asks      []WSPriceLevel `json:"asks"`
	Timestamp string         `json:"timestamp"`
	Hash      string         `json:"hash"`
}

// ToBook converts the snapshot to a domain book: string levels parsed,
// unfillable ones dropped, asks sorted ascending and bids descending so the
// best level sits at index 0 regardless of the order the API sent them in.
func (b *BookSnapshot) ToBook() domain.Book {
	book := domain.Book{
		Source:    domain.QuotePresent,
		Bids:      parseLevels(b.Bids),
		Asks:      parseLevels(b.Asks),
		UpdatedAt: parseTimestamp(b.Timestamp),
	}
	sort.SliceStable(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	sort.SliceStable(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	return book
}

func parseLevels(levels []WSPriceLevel) domain.BookSide {
	var side domain.BookSide
	for _, lvl := range levels {
		p, errP := strconv.ParseFloat(lvl.Price, 64)
		s, errS := strconv.ParseFloat(lvl.Size, 64)
		if errP != nil || errS != nil || p <= 0 || p >= 1 || s <= 0 {
			continue
		}
		side = append(side, domain.PriceLevel{Price: p, Size: s})
	}
	return side
}

// parseTimestamp handles the CLOB's unix-millisecond strings plus the
// RFC3339 form some endpoints use; anything else falls back to now.
func parseTimestamp(raw string) time.Time {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	return time.Now()
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// DataPosition represents one holding as returned by the Polymarket data
// API's /positions endpoint. Asset is the CLOB token ID of the held outcome
// contract.
type DataPosition struct {
	ProxyWallet  string  `json:"proxyWallet"`
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	CurPrice     float64 `json:"curPrice"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Outcome      string  `json:"outcome"`
	OutcomeIndex int     `json:"outcomeIndex"`
	Redeemable   bool    `json:"redeemable"`
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSMessage is the outer envelope of a market-channel frame; the event type
// field has drifted between protocol versions.
type WSMessage struct {
	MsgType   string `json:"msg_type"`
	EventType string `json:"event_type"`
}

// Type returns the message's event type regardless of which field carried it.
func (m WSMessage) Type() string {
	if m.MsgType != "" {
		return m.MsgType
	}
	return m.EventType
}

// PriceChangeMessage represents incremental orderbook level updates. Newer
// protocol versions batch entries under price_changes; older ones put a
// single change at the top level.
type PriceChangeMessage struct {
	AssetID   string        `json:"asset_id"`
	Market    string        `json:"market"`
	Side      string        `json:"side"`
	Price     string        `json:"price"`
	Size      string        `json:"size"`
	Changes   []PriceChange `json:"price_changes"`
	Timestamp string        `json:"timestamp"`
}

// PriceChange is one entry of a batched price_change event. Size is the new
// resting size at the level; "0" removes it.
type PriceChange struct {
	AssetID string `json:"asset_id"`
	Side    string `json:"side"` // "BUY" (bid side) or "SELL" (ask side)
	Price   string `json:"price"`
	Size    string `json:"size"`
}

// Levels flattens the message to individual changes, covering both
// encodings. Batched entries missing an asset ID inherit the envelope's.
func (m *PriceChangeMessage) Levels() []PriceChange {
	if len(m.Changes) > 0 {
		out := make([]PriceChange, len(m.Changes))
		copy(out, m.Changes)
		for i := range out {
			if out[i].AssetID == "" {
				out[i].AssetID = m.AssetID
			}
		}
		return out
	}
	if m.Price == "" {
		return nil
	}
	return []PriceChange{{AssetID: m.AssetID, Side: m.Side, Price: m.Price, Size: m.Size}}
}

// PriceMessage represents the most recent trade price for an asset.
type PriceMessage struct {
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
}

// WSCommand is the JSON payload sent on connect to subscribe the market
// channel to a set of asset IDs.
type WSCommand struct {
	Type   string   `json:"type"`
	Assets []string `json:"assets_ids,omitempty"`
}
