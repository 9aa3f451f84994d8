package arbitrage

import "fmt"

// FeeFn prices the taker fee for a single fill at the given price for the
// given share count. Implementations must be pure: no state, no I/O.
type FeeFn func(price, shares float64) float64

// Fee policy kinds selectable per venue.
const (
	FeePolicyQuadratic = "quadratic"
	FeePolicyFlat      = "flat"
	FeePolicyNone      = "none"
)

// FeePolicy describes one venue's taker fee schedule. Rate is the quadratic
// coefficient or the flat proportional rate depending on Policy; MinFee is
// the per-fill floor and applies to the quadratic schedule only.
type FeePolicy struct {
	Policy string
	Rate   float64
	MinFee float64
}

// Fn resolves the policy into a fee function. An empty policy means no fee.
func (p FeePolicy) Fn() (FeeFn, error) {
	switch p.Policy {
	case FeePolicyQuadratic:
		return QuadraticFee(p.Rate, p.MinFee), nil
	case FeePolicyFlat:
		return FlatFee(p.Rate), nil
	case FeePolicyNone, "":
		return NoFee, nil
	}
	return nil, fmt.Errorf("arbitrage: unknown fee policy %q", p.Policy)
}

func (p FeePolicy) validate() error {
	switch p.Policy {
	case FeePolicyQuadratic, FeePolicyFlat, FeePolicyNone, "":
	default:
		return fmt.Errorf("unknown policy %q", p.Policy)
	}
	if p.Rate < 0 {
		return fmt.Errorf("rate must be >= 0, got %v", p.Rate)
	}
	if p.MinFee < 0 {
		return fmt.Errorf("min_fee must be >= 0, got %v", p.MinFee)
	}
	return nil
}

// QuadraticFee returns the convex schedule Kalshi charges takers: the nominal
// rate k*p*(1-p) applied to the fill notional p*shares, floored at minFee per
// fill. The rate peaks at p=0.5 and vanishes toward either boundary, so the
// floor dominates small or extreme-priced fills. Fills priced outside (0,1)
// or with non-positive size carry no fee and are never executable anyway.
func QuadraticFee(k, minFee float64) FeeFn {
	return func(price, shares float64) float64 {
		if price <= 0 || price >= 1 || shares <= 0 {
			return 0
		}
		fee := k * price * (1 - price) * price * shares
		if fee < minFee {
			return minFee
		}
		return fee
	}
}

// FlatFee returns a proportional schedule with no per-fill minimum.
func FlatFee(rate float64) FeeFn {
	return func(price, shares float64) float64 {
		if price <= 0 || price >= 1 || shares <= 0 {
			return 0
		}
		return rate * price * shares
	}
}

// NoFee is the fee schedule of a venue that charges takers nothing.
func NoFee(price, shares float64) float64 { return 0 }
