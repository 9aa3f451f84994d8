package arbitrage

import (
	"strings"
	"testing"
	"time"

	"github.com/hedgescan/hedgescan/internal/domain"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults pass", func(c *Config) {}, ""},
		{"zero max levels", func(c *Config) { c.MaxLevels = 0 }, "max_levels"},
		{"negative go threshold", func(c *Config) { c.GoThreshold = -0.01 }, "go_threshold"},
		{"go above hot", func(c *Config) { c.GoThreshold = 0.06 }, "below hot_threshold"},
		{"go equals hot", func(c *Config) { c.GoThreshold = 0.05 }, "below hot_threshold"},
		{"zero exit threshold", func(c *Config) { c.ExitThreshold = 0 }, "exit_threshold"},
		{"exit threshold too high", func(c *Config) { c.ExitThreshold = 2.5 }, "exit_threshold"},
		{"negative min shares", func(c *Config) { c.MinShares = -1 }, "min_shares"},
		{"bad kalshi policy", func(c *Config) { c.KalshiFees.Policy = "tiered" }, "kalshi fees"},
		{"negative fee rate", func(c *Config) { c.PolyFees.Rate = -0.01 }, "polymarket fees"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected err: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err=%q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidate_CollectsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLevels = 0
	cfg.ExitThreshold = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"max_levels", "exit_threshold"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("err=%q missing %q", err, want)
		}
	}
}

func TestNewEngine_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLevels = -3
	if _, err := NewEngine(cfg); err == nil {
		t.Fatal("expected error")
	}
}

func TestEvaluate_BatchCountsConfiguredMarkets(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	settlement := time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)
	inputs := []QuoteInput{
		{
			Quote: domain.OutcomeQuote{
				Event:     "election",
				Outcome:   "candidate-a",
				KalshiYes: presentBook(domain.BookSide{{Price: 0.45, Size: 100}}, nil),
				PolyNo:    presentBook(domain.BookSide{{Price: 0.52, Size: 100}}, nil),
			},
			Settlement: &settlement,
		},
		// Fetch failed this cycle: empty quote still counts as a market.
		{Quote: domain.OutcomeQuote{Event: "election", Outcome: "candidate-b"}},
	}

	opps, stats := e.Evaluate(inputs, now)
	if len(opps) != 1 {
		t.Fatalf("opportunities=%d want 1", len(opps))
	}
	if stats.TotalMarkets != 2 {
		t.Fatalf("total markets=%d want 2", stats.TotalMarkets)
	}
	if stats.GoCount != 1 {
		t.Fatalf("go count=%d want 1", stats.GoCount)
	}
	if opps[0].SettlementDate == nil || !opps[0].SettlementDate.Equal(settlement) {
		t.Fatalf("settlement=%v want %v", opps[0].SettlementDate, settlement)
	}
}
