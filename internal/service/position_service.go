package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/hedgescan/hedgescan/internal/domain"
	"github.com/hedgescan/hedgescan/internal/platform/polymarket"
)

// WalletPositions is the slice of the Polymarket data API the position
// service reads: current holdings for one wallet.
type WalletPositions interface {
	GetPositions(ctx context.Context, wallet string) ([]polymarket.DataPosition, error)
}

// PositionEntry is one externally-declared hedge leg as written in the
// configuration file, before normalization. Kalshi exposes no public position
// endpoint, so its legs always arrive this way; Polymarket legs may too, for
// wallets the operator does not want to disclose.
type PositionEntry struct {
	Event    string
	Outcome  string
	Venue    string
	Side     string
	Shares   float64
	AvgPrice float64
}

// PositionService merges configured position entries with the wallet's live
// Polymarket holdings and pairs them into hedges. Sourcing degrades
// gracefully: a failing data API or unresolvable metadata drops those legs
// with a warning rather than failing the cycle.
type PositionService struct {
	entries []PositionEntry
	keys    []domain.OutcomeKey
	meta    domain.MarketMetaCache
	data    WalletPositions // nil when no wallet is configured
	wallet  string
	logger  *slog.Logger
}

// NewPositionService creates a PositionService. keys lists the configured
// outcomes whose metadata maps Polymarket token IDs back to outcomes; data
// and wallet may be empty to run from configuration entries alone.
func NewPositionService(
	entries []PositionEntry,
	keys []domain.OutcomeKey,
	meta domain.MarketMetaCache,
	data WalletPositions,
	wallet string,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		entries: entries,
		keys:    keys,
		meta:    meta,
		data:    data,
		wallet:  wallet,
		logger:  logger,
	}
}

// Positions returns every known leg, normalized and deduplicated. Duplicate
// legs of the same (event, outcome, venue, side) merge into one with summed
// shares and a volume-weighted average price.
func (s *PositionService) Positions(ctx context.Context) []domain.Position {
	legs := make([]domain.Position, 0, len(s.entries))

	for i, e := range s.entries {
		pos, ok := normalizeEntry(e)
		if !ok {
			s.logger.WarnContext(ctx, "position_service: skipping malformed entry",
				slog.Int("index", i),
				slog.String("event", e.Event),
				slog.String("outcome", e.Outcome),
			)
			continue
		}
		legs = append(legs, pos)
	}

	legs = append(legs, s.walletLegs(ctx)...)

	return dedupeLegs(legs)
}

// Hedges pairs the current legs into hedge positions: a YES leg on one venue
// matched with a NO leg on the other for the same outcome. Both pairings can
// coexist for one outcome when all four legs are held. Legs that match
// nothing come back in the second slice; they are a reporting concern, not an
// error.
func (s *PositionService) Hedges(ctx context.Context) ([]domain.HedgePosition, []domain.Position) {
	legs := s.Positions(ctx)

	byKey := make(map[domain.OutcomeKey][]domain.Position)
	keys := make([]domain.OutcomeKey, 0, len(legs))
	for _, leg := range legs {
		k := domain.OutcomeKey{Event: leg.Event, Outcome: leg.Outcome}
		if _, seen := byKey[k]; !seen {
			keys = append(keys, k)
		}
		byKey[k] = append(byKey[k], leg)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	var hedges []domain.HedgePosition
	var unpaired []domain.Position

	for _, k := range keys {
		var kalshiYes, kalshiNo, polyYes, polyNo *domain.Position
		for i := range byKey[k] {
			leg := &byKey[k][i]
			switch {
			case leg.Venue == domain.VenueKalshi && leg.Side == domain.SideYes:
				kalshiYes = leg
			case leg.Venue == domain.VenueKalshi && leg.Side == domain.SideNo:
				kalshiNo = leg
			case leg.Venue == domain.VenuePolymarket && leg.Side == domain.SideYes:
				polyYes = leg
			case leg.Venue == domain.VenuePolymarket && leg.Side == domain.SideNo:
				polyNo = leg
			}
		}

		used := make(map[*domain.Position]bool)
		if kalshiYes != nil && polyNo != nil {
			hedges = append(hedges, domain.HedgePosition{
				Event: k.Event, Outcome: k.Outcome,
				YesLeg: *kalshiYes, NoLeg: *polyNo,
			})
			used[kalshiYes], used[polyNo] = true, true
		}
		if polyYes != nil && kalshiNo != nil {
			hedges = append(hedges, domain.HedgePosition{
				Event: k.Event, Outcome: k.Outcome,
				YesLeg: *polyYes, NoLeg: *kalshiNo,
			})
			used[polyYes], used[kalshiNo] = true, true
		}
		for _, leg := range []*domain.Position{kalshiYes, kalshiNo, polyYes, polyNo} {
			if leg != nil && !used[leg] {
				unpaired = append(unpaired, *leg)
			}
		}
	}

	if len(unpaired) > 0 {
		s.logger.InfoContext(ctx, "position_service: unpaired legs",
			slog.Int("count", len(unpaired)),
		)
	}

	return hedges, unpaired
}

// walletLegs pulls the configured wallet's Polymarket holdings and maps them
// onto configured outcomes through the metadata cache's token IDs. Holdings
// in markets outside the configured set are ignored.
func (s *PositionService) walletLegs(ctx context.Context) []domain.Position {
	if s.data == nil || s.wallet == "" {
		return nil
	}

	type tokenSlot struct {
		key  domain.OutcomeKey
		side domain.Side
	}
	byToken := make(map[string]tokenSlot)
	for _, k := range s.keys {
		meta, err := s.meta.Resolve(ctx, k)
		if err != nil {
			s.logger.WarnContext(ctx, "position_service: resolve metadata failed",
				slog.String("outcome", k.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if meta.PolyYesToken != "" {
			byToken[meta.PolyYesToken] = tokenSlot{key: k, side: domain.SideYes}
		}
		if meta.PolyNoToken != "" {
			byToken[meta.PolyNoToken] = tokenSlot{key: k, side: domain.SideNo}
		}
	}
	if len(byToken) == 0 {
		return nil
	}

	holdings, err := s.data.GetPositions(ctx, s.wallet)
	if err != nil {
		s.logger.WarnContext(ctx, "position_service: wallet position fetch failed",
			slog.String("wallet", s.wallet),
			slog.String("error", err.Error()),
		)
		return nil
	}

	var legs []domain.Position
	for _, h := range holdings {
		slot, ok := byToken[h.Asset]
		if !ok {
			continue
		}
		if h.AvgPrice <= 0 || h.AvgPrice >= 1 {
			s.logger.WarnContext(ctx, "position_service: skipping holding with out-of-range price",
				slog.String("asset", h.Asset),
				slog.Float64("avg_price", h.AvgPrice),
			)
			continue
		}
		legs = append(legs, domain.Position{
			Event:    slot.key.Event,
			Outcome:  slot.key.Outcome,
			Venue:    domain.VenuePolymarket,
			Side:     slot.side,
			Shares:   h.Size,
			AvgPrice: h.AvgPrice,
		})
	}
	return legs
}

// normalizeEntry maps a raw configuration entry onto a domain position,
// accepting the common venue and side spellings.
func normalizeEntry(e PositionEntry) (domain.Position, bool) {
	var venue domain.Venue
	switch strings.ToLower(strings.TrimSpace(e.Venue)) {
	case "kalshi":
		venue = domain.VenueKalshi
	case "polymarket", "poly", "pm":
		venue = domain.VenuePolymarket
	default:
		return domain.Position{}, false
	}

	var side domain.Side
	switch strings.ToUpper(strings.TrimSpace(e.Side)) {
	case "YES", "Y":
		side = domain.SideYes
	case "NO", "N":
		side = domain.SideNo
	default:
		return domain.Position{}, false
	}

	if e.Event == "" || e.Outcome == "" || e.Shares <= 0 || e.AvgPrice <= 0 || e.AvgPrice >= 1 {
		return domain.Position{}, false
	}

	return domain.Position{
		Event:    e.Event,
		Outcome:  e.Outcome,
		Venue:    venue,
		Side:     side,
		Shares:   e.Shares,
		AvgPrice: e.AvgPrice,
	}, true
}

// dedupeLegs merges legs sharing (event, outcome, venue, side): shares sum,
// entry prices combine volume-weighted. First-seen order is preserved.
func dedupeLegs(legs []domain.Position) []domain.Position {
	type legKey struct {
		event, outcome string
		venue          domain.Venue
		side           domain.Side
	}

	index := make(map[legKey]int)
	out := make([]domain.Position, 0, len(legs))
	for _, leg := range legs {
		k := legKey{leg.Event, leg.Outcome, leg.Venue, leg.Side}
		if i, ok := index[k]; ok {
			merged := &out[i]
			totalShares := merged.Shares + leg.Shares
			merged.AvgPrice = (merged.AvgPrice*merged.Shares + leg.AvgPrice*leg.Shares) / totalShares
			merged.Shares = totalShares
			continue
		}
		index[k] = len(out)
		out = append(out, leg)
	}
	return out
}
