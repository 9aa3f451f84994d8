package arbitrage

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

func TestQuadraticFee_Schedule(t *testing.T) {
	fee := QuadraticFee(0.08, 0.50)

	tests := []struct {
		name   string
		price  float64
		shares float64
		want   float64
	}{
		{"peak rate", 0.50, 100, 1.0},          // 0.08*0.5*0.5*0.5*100
		{"worked example fill", 0.45, 100, 0.891}, // 0.08*0.45*0.55*0.45*100
		{"floor binds on cheap fill", 0.05, 10, 0.50},
		{"floor binds on small fill", 0.45, 1, 0.50},
		{"zero price", 0, 100, 0},
		{"unit price", 1, 100, 0},
		{"negative price", -0.2, 100, 0},
		{"above unit price", 1.2, 100, 0},
		{"zero shares", 0.45, 0, 0},
		{"negative shares", 0.45, -5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fee(tt.price, tt.shares)
			if !almostEqual(got, tt.want) {
				t.Fatalf("fee(%v, %v)=%v want %v", tt.price, tt.shares, got, tt.want)
			}
		})
	}
}

func TestQuadraticFee_MonotonicInShares(t *testing.T) {
	fee := QuadraticFee(0.08, 0.50)
	sizes := []float64{1, 10, 100, 200, 500}

	prev := 0.0
	for _, s := range sizes {
		got := fee(0.30, s)
		if got < prev {
			t.Fatalf("fee(0.30, %v)=%v dropped below %v", s, got, prev)
		}
		if got < 0.50 {
			t.Fatalf("fee(0.30, %v)=%v below the per-fill floor", s, got)
		}
		prev = got
	}
	// Past the floor the quadratic term takes over and grows strictly.
	if low, high := fee(0.30, 200), fee(0.30, 400); high <= low {
		t.Fatalf("fee did not grow past the floor: %v then %v", low, high)
	}
}

func TestWalkFee_SuperAdditiveWhenFloorBinds(t *testing.T) {
	fee := QuadraticFee(0.08, 0.50)

	// Two cheap levels each bill the floor independently; a single fill at
	// the blended average bills it once.
	levels := []struct{ price, size float64 }{{0.10, 50}, {0.12, 50}}
	perLevel := fee(levels[0].price, levels[0].size) + fee(levels[1].price, levels[1].size)
	blended := fee(0.11, 100)

	if perLevel < blended {
		t.Fatalf("per-level fee %v below single-fill fee %v", perLevel, blended)
	}
	if !almostEqual(perLevel, 1.0) {
		t.Fatalf("per-level fee=%v want 1.0 (floor twice)", perLevel)
	}
	if !almostEqual(blended, 0.50) {
		t.Fatalf("blended fee=%v want 0.50 (floor once)", blended)
	}
}

func TestFlatFee_NoFloor(t *testing.T) {
	fee := FlatFee(0.02)

	if got := fee(0.50, 100); !almostEqual(got, 1.0) {
		t.Fatalf("fee(0.50, 100)=%v want 1.0", got)
	}
	if got := fee(0.01, 1); !almostEqual(got, 0.0002) {
		t.Fatalf("fee(0.01, 1)=%v want 0.0002", got)
	}
	if got := fee(0, 100); got != 0 {
		t.Fatalf("fee(0, 100)=%v want 0", got)
	}
}

func TestFeePolicy_Fn(t *testing.T) {
	tests := []struct {
		name    string
		policy  FeePolicy
		wantErr bool
	}{
		{"quadratic", FeePolicy{Policy: FeePolicyQuadratic, Rate: 0.08, MinFee: 0.5}, false},
		{"flat", FeePolicy{Policy: FeePolicyFlat, Rate: 0.02}, false},
		{"none", FeePolicy{Policy: FeePolicyNone}, false},
		{"empty means none", FeePolicy{}, false},
		{"unknown", FeePolicy{Policy: "tiered"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := tt.policy.Fn()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if fn == nil {
				t.Fatal("nil fee function")
			}
		})
	}

	if fn, err := (FeePolicy{Policy: FeePolicyNone}).Fn(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	} else if got := fn(0.5, 100); got != 0 {
		t.Fatalf("none policy fee=%v want 0", got)
	}
}
