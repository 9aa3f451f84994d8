// Package arbitrage prices risk-free YES/NO hedges between Kalshi and
// Polymarket order books. The engine is pure: it holds only validated
// configuration and resolved fee functions, takes immutable book snapshots,
// and returns opportunities, exit records, and batch statistics with no I/O
// and no state retained between calls.
package arbitrage

import (
	"fmt"
	"strings"
	"time"

	"github.com/hedgescan/hedgescan/internal/domain"
)

// Config carries every engine tunable. Validate rejects a bad config up
// front; a validated config never changes during a run.
type Config struct {
	// MaxLevels bounds the depth search on each leg. The classic search is
	// 3, giving nine depth combinations per direction.
	MaxLevels int

	// GoThreshold and HotThreshold classify profit percentages into signals.
	// Both comparisons are strict and go must sit below hot.
	GoThreshold  float64
	HotThreshold float64

	// ExitThreshold is the minimum combined exit price for an unwind to be
	// flagged ready. MinShares skips hedges too small to bother exiting.
	ExitThreshold float64
	MinShares     float64

	KalshiFees FeePolicy
	PolyFees   FeePolicy
}

// DefaultConfig returns the stock tuning: three-level search, 2%/5% signal
// thresholds, 0.98 exit gate, quadratic Kalshi fees with a 50 cent floor,
// fee-free Polymarket.
func DefaultConfig() Config {
	return Config{
		MaxLevels:     3,
		GoThreshold:   0.02,
		HotThreshold:  0.05,
		ExitThreshold: 0.98,
		MinShares:     1,
		KalshiFees:    FeePolicy{Policy: FeePolicyQuadratic, Rate: 0.08, MinFee: 0.50},
		PolyFees:      FeePolicy{Policy: FeePolicyNone},
	}
}

// Validate reports every problem with the config in a single error.
func (c Config) Validate() error {
	var problems []string

	if c.MaxLevels < 1 {
		problems = append(problems, fmt.Sprintf("max_levels must be >= 1, got %d", c.MaxLevels))
	}
	if c.GoThreshold < 0 {
		problems = append(problems, fmt.Sprintf("go_threshold must be >= 0, got %v", c.GoThreshold))
	}
	if c.HotThreshold < 0 {
		problems = append(problems, fmt.Sprintf("hot_threshold must be >= 0, got %v", c.HotThreshold))
	}
	if c.GoThreshold >= c.HotThreshold {
		problems = append(problems, fmt.Sprintf("go_threshold %v must be below hot_threshold %v", c.GoThreshold, c.HotThreshold))
	}
	if c.ExitThreshold <= 0 || c.ExitThreshold > 2 {
		problems = append(problems, fmt.Sprintf("exit_threshold must be in (0,2], got %v", c.ExitThreshold))
	}
	if c.MinShares < 0 {
		problems = append(problems, fmt.Sprintf("min_shares must be >= 0, got %v", c.MinShares))
	}
	if err := c.KalshiFees.validate(); err != nil {
		problems = append(problems, "kalshi fees: "+err.Error())
	}
	if err := c.PolyFees.validate(); err != nil {
		problems = append(problems, "polymarket fees: "+err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("engine config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Engine evaluates outcome quotes into opportunities and open hedges into
// exit records.
type Engine struct {
	cfg       Config
	feeKalshi FeeFn
	feePoly   FeeFn
}

// NewEngine validates cfg and resolves its per-venue fee policies.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	feeKalshi, err := cfg.KalshiFees.Fn()
	if err != nil {
		return nil, fmt.Errorf("kalshi fee policy: %w", err)
	}
	feePoly, err := cfg.PolyFees.Fn()
	if err != nil {
		return nil, fmt.Errorf("polymarket fee policy: %w", err)
	}
	return &Engine{cfg: cfg, feeKalshi: feeKalshi, feePoly: feePoly}, nil
}

// Config returns the validated configuration the engine runs with.
func (e *Engine) Config() Config { return e.cfg }

// QuoteInput pairs one outcome's books with its resolved settlement date.
type QuoteInput struct {
	Quote      domain.OutcomeQuote
	Settlement *time.Time
}

// Evaluate runs a full batch: every quote through the opportunity builder,
// then aggregate statistics over the results. The input slice is expected to
// cover every configured outcome, including those whose fetch failed this
// cycle, so the batch total reflects configured markets rather than lucky
// fetches.
func (e *Engine) Evaluate(inputs []QuoteInput, now time.Time) ([]domain.Opportunity, domain.BatchStats) {
	opps := make([]domain.Opportunity, 0, len(inputs))
	for _, in := range inputs {
		if opp, ok := e.BuildOpportunity(in.Quote, in.Settlement, now); ok {
			opps = append(opps, opp)
		}
	}
	return opps, ComputeStats(opps, len(inputs))
}

// EvaluateExits marks every hedge to market against its outcome's current
// quote. Hedges whose outcome has no quote this cycle are skipped; when both
// hedge directions are held for one outcome the record with the higher net
// profit is kept.
func (e *Engine) EvaluateExits(hedges []domain.HedgePosition, quotes map[domain.OutcomeKey]domain.OutcomeQuote) map[domain.OutcomeKey]domain.ExitRecord {
	records := make(map[domain.OutcomeKey]domain.ExitRecord)
	for _, h := range hedges {
		q, ok := quotes[h.Key()]
		if !ok {
			continue
		}
		rec, ok := e.EvaluateExit(h, q)
		if !ok {
			continue
		}
		if prev, exists := records[h.Key()]; exists && prev.NetProfit >= rec.NetProfit {
			continue
		}
		records[h.Key()] = rec
	}
	return records
}
