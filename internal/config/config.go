// Package config defines the top-level configuration for the hedge scanner
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by HEDGESCAN_* environment variables.
type Config struct {
	Engine     EngineConfig     `toml:"engine"`
	Scanner    ScannerConfig    `toml:"scanner"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Events     []EventConfig    `toml:"events"`
	Positions  []PositionEntry  `toml:"positions"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// EngineConfig holds the evaluation engine tunables: search depth, signal
// thresholds, exit parameters, and the per-venue fee schedules.
type EngineConfig struct {
	MaxLevels     int        `toml:"max_levels"`
	GoThreshold   float64    `toml:"go_threshold"`
	HotThreshold  float64    `toml:"hot_threshold"`
	ExitThreshold float64    `toml:"exit_threshold"`
	MinShares     float64    `toml:"min_shares"`
	Fees          FeesConfig `toml:"fees"`
}

// FeesConfig holds one fee schedule per venue.
type FeesConfig struct {
	Kalshi     FeePolicyConfig `toml:"kalshi"`
	Polymarket FeePolicyConfig `toml:"polymarket"`
}

// FeePolicyConfig selects and parameterizes a venue fee schedule.
type FeePolicyConfig struct {
	Policy string  `toml:"policy"` // quadratic | flat | none
	Rate   float64 `toml:"rate"`
	MinFee float64 `toml:"min_fee"`
}

// ScannerConfig holds the quote-poll loop parameters.
type ScannerConfig struct {
	Interval          duration `toml:"interval"`
	RequestsPerSecond int      `toml:"requests_per_second"`
	StaleAfter        duration `toml:"stale_after"`
	ArchiveSnapshots  bool     `toml:"archive_snapshots"`
}

// KalshiConfig holds the Kalshi public API endpoint.
type KalshiConfig struct {
	BaseURL string `toml:"base_url"`
}

// PolymarketConfig holds Polymarket API endpoints and the wallet address used
// for public position lookups. WsHost enables the live book feed when set.
type PolymarketConfig struct {
	ClobHost  string `toml:"clob_host"`
	GammaHost string `toml:"gamma_host"`
	DataHost  string `toml:"data_host"`
	WsHost    string `toml:"ws_host"`
	Wallet    string `toml:"wallet"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for snapshot
// archival and replay.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters. An empty APIKey disables
// authentication.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials and the event filter.
type NotifyConfig struct {
	Enabled  bool           `toml:"enabled"`
	Events   []string       `toml:"events"`
	Cooldown duration       `toml:"cooldown"`
	Telegram TelegramConfig `toml:"telegram"`
	Discord  DiscordConfig  `toml:"discord"`
}

// TelegramConfig holds Telegram bot credentials.
type TelegramConfig struct {
	Token  string `toml:"token"`
	ChatID string `toml:"chat_id"`
}

// DiscordConfig holds the Discord webhook target.
type DiscordConfig struct {
	WebhookURL string `toml:"webhook_url"`
}

// EventConfig maps one real-world event to its venue identifiers. The
// settlement date annualizes returns; outcomes may override it individually.
type EventConfig struct {
	Name           string          `toml:"name"`
	SettlementDate time.Time       `toml:"settlement_date"`
	Outcomes       []OutcomeConfig `toml:"outcomes"`
}

// OutcomeConfig names one outcome's contracts on both venues. The Polymarket
// side is either a market slug (token IDs resolved via the Gamma API) or an
// explicit YES/NO token ID pair.
type OutcomeConfig struct {
	Name           string    `toml:"name"`
	KalshiTicker   string    `toml:"kalshi_ticker"`
	PolymarketSlug string    `toml:"polymarket_slug"`
	PolyYesToken   string    `toml:"polymarket_yes_token"`
	PolyNoToken    string    `toml:"polymarket_no_token"`
	SettlementDate time.Time `toml:"settlement_date"`
}

// PositionEntry is one externally-held leg, typically the Kalshi side of a
// hedge, which has no public position API to fetch from.
type PositionEntry struct {
	Event    string  `toml:"event"`
	Outcome  string  `toml:"outcome"`
	Venue    string  `toml:"venue"`
	Side     string  `toml:"side"`
	Shares   float64 `toml:"shares"`
	AvgPrice float64 `toml:"avg_price"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "15s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "15s" or "2m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// A TOML file and HEDGESCAN_* environment variables are merged on top.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			MaxLevels:     3,
			GoThreshold:   0.02,
			HotThreshold:  0.05,
			ExitThreshold: 0.98,
			MinShares:     1.0,
			Fees: FeesConfig{
				Kalshi:     FeePolicyConfig{Policy: "quadratic", Rate: 0.08, MinFee: 0.50},
				Polymarket: FeePolicyConfig{Policy: "none"},
			},
		},
		Scanner: ScannerConfig{
			Interval:          duration{15 * time.Second},
			RequestsPerSecond: 8,
			StaleAfter:        duration{2 * time.Minute},
			ArchiveSnapshots:  false,
		},
		Kalshi: KalshiConfig{
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
		},
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			DataHost:  "https://data-api.polymarket.com",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "hedgescan-data",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Enabled:  false,
			Events:   []string{"hot_opportunity", "exit_ready"},
			Cooldown: duration{10 * time.Minute},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"monitor": true,
	"once":    true,
	"replay":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validFeePolicies = map[string]bool{
	"quadratic": true,
	"flat":      true,
	"none":      true,
	"":          true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, monitor, once, replay)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.MaxLevels < 1 {
		errs = append(errs, fmt.Sprintf("engine: max_levels must be >= 1, got %d", c.Engine.MaxLevels))
	}
	if c.Engine.GoThreshold < 0 {
		errs = append(errs, "engine: go_threshold must be >= 0")
	}
	if c.Engine.HotThreshold < 0 {
		errs = append(errs, "engine: hot_threshold must be >= 0")
	}
	if c.Engine.GoThreshold >= c.Engine.HotThreshold {
		errs = append(errs, fmt.Sprintf("engine: go_threshold %v must be below hot_threshold %v", c.Engine.GoThreshold, c.Engine.HotThreshold))
	}
	if c.Engine.ExitThreshold <= 0 || c.Engine.ExitThreshold > 2 {
		errs = append(errs, fmt.Sprintf("engine: exit_threshold must be in (0,2], got %v", c.Engine.ExitThreshold))
	}
	if c.Engine.MinShares < 0 {
		errs = append(errs, "engine: min_shares must be >= 0")
	}
	errs = append(errs, validateFeePolicy("kalshi", c.Engine.Fees.Kalshi)...)
	errs = append(errs, validateFeePolicy("polymarket", c.Engine.Fees.Polymarket)...)

	// Scanner
	if c.Scanner.Interval.Duration <= 0 {
		errs = append(errs, "scanner: interval must be > 0")
	}
	if c.Scanner.RequestsPerSecond < 1 {
		errs = append(errs, "scanner: requests_per_second must be >= 1")
	}

	// Venue endpoints
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}

	// Events: scanning modes need at least one configured outcome.
	if mode == "scan" || mode == "once" {
		if len(c.Events) == 0 {
			errs = append(errs, "events: at least one event is required for mode "+mode)
		}
	}
	for _, ev := range c.Events {
		if ev.Name == "" {
			errs = append(errs, "events: every event needs a name")
			continue
		}
		if len(ev.Outcomes) == 0 {
			errs = append(errs, fmt.Sprintf("events: event %q has no outcomes", ev.Name))
		}
		for _, oc := range ev.Outcomes {
			if oc.Name == "" {
				errs = append(errs, fmt.Sprintf("events: event %q has an unnamed outcome", ev.Name))
				continue
			}
			if oc.KalshiTicker == "" {
				errs = append(errs, fmt.Sprintf("events: outcome %s/%s needs a kalshi_ticker", ev.Name, oc.Name))
			}
			hasSlug := oc.PolymarketSlug != ""
			hasTokens := oc.PolyYesToken != "" && oc.PolyNoToken != ""
			if !hasSlug && !hasTokens {
				errs = append(errs, fmt.Sprintf("events: outcome %s/%s needs a polymarket_slug or an explicit token pair", ev.Name, oc.Name))
			}
		}
	}

	// Positions
	for i, p := range c.Positions {
		if p.Event == "" || p.Outcome == "" {
			errs = append(errs, fmt.Sprintf("positions[%d]: event and outcome are required", i))
		}
		if v := strings.ToLower(p.Venue); v != "kalshi" && v != "polymarket" {
			errs = append(errs, fmt.Sprintf("positions[%d]: venue must be kalshi or polymarket, got %q", i, p.Venue))
		}
		if s := strings.ToUpper(p.Side); s != "YES" && s != "NO" {
			errs = append(errs, fmt.Sprintf("positions[%d]: side must be YES or NO, got %q", i, p.Side))
		}
		if p.Shares <= 0 {
			errs = append(errs, fmt.Sprintf("positions[%d]: shares must be > 0", i))
		}
		if p.AvgPrice <= 0 || p.AvgPrice >= 1 {
			errs = append(errs, fmt.Sprintf("positions[%d]: avg_price must be in (0,1), got %v", i, p.AvgPrice))
		}
	}

	// Redis is required whenever a long-running mode shares state.
	if mode == "scan" || mode == "monitor" {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr is required for mode "+mode)
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3 is required when archival is on or when replaying from it.
	if c.S3.Enabled || mode == "replay" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateFeePolicy(venue string, p FeePolicyConfig) []string {
	var errs []string
	if !validFeePolicies[strings.ToLower(p.Policy)] {
		errs = append(errs, fmt.Sprintf("engine: fees.%s: unknown policy %q (valid: quadratic, flat, none)", venue, p.Policy))
	}
	if p.Rate < 0 {
		errs = append(errs, fmt.Sprintf("engine: fees.%s: rate must be >= 0", venue))
	}
	if p.MinFee < 0 {
		errs = append(errs, fmt.Sprintf("engine: fees.%s: min_fee must be >= 0", venue))
	}
	return errs
}
