package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies HEDGESCAN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known HEDGESCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setInt(&cfg.Engine.MaxLevels, "HEDGESCAN_ENGINE_MAX_LEVELS")
	setFloat64(&cfg.Engine.GoThreshold, "HEDGESCAN_ENGINE_GO_THRESHOLD")
	setFloat64(&cfg.Engine.HotThreshold, "HEDGESCAN_ENGINE_HOT_THRESHOLD")
	setFloat64(&cfg.Engine.ExitThreshold, "HEDGESCAN_ENGINE_EXIT_THRESHOLD")
	setFloat64(&cfg.Engine.MinShares, "HEDGESCAN_ENGINE_MIN_SHARES")

	// ── Scanner ──
	setDuration(&cfg.Scanner.Interval, "HEDGESCAN_SCANNER_INTERVAL")
	setInt(&cfg.Scanner.RequestsPerSecond, "HEDGESCAN_SCANNER_REQUESTS_PER_SECOND")
	setDuration(&cfg.Scanner.StaleAfter, "HEDGESCAN_SCANNER_STALE_AFTER")
	setBool(&cfg.Scanner.ArchiveSnapshots, "HEDGESCAN_SCANNER_ARCHIVE_SNAPSHOTS")

	// ── Kalshi ──
	setStr(&cfg.Kalshi.BaseURL, "HEDGESCAN_KALSHI_BASE_URL")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "HEDGESCAN_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "HEDGESCAN_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "HEDGESCAN_POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.WsHost, "HEDGESCAN_POLYMARKET_WS_HOST")
	setStr(&cfg.Polymarket.Wallet, "HEDGESCAN_POLYMARKET_WALLET")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "HEDGESCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "HEDGESCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "HEDGESCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "HEDGESCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "HEDGESCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "HEDGESCAN_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "HEDGESCAN_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "HEDGESCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "HEDGESCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "HEDGESCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "HEDGESCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "HEDGESCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "HEDGESCAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "HEDGESCAN_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "HEDGESCAN_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "HEDGESCAN_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "HEDGESCAN_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "HEDGESCAN_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setBool(&cfg.Notify.Enabled, "HEDGESCAN_NOTIFY_ENABLED")
	setStringSlice(&cfg.Notify.Events, "HEDGESCAN_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.Cooldown, "HEDGESCAN_NOTIFY_COOLDOWN")
	setStr(&cfg.Notify.Telegram.Token, "HEDGESCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.Telegram.ChatID, "HEDGESCAN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.Discord.WebhookURL, "HEDGESCAN_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top-level ──
	setStr(&cfg.Mode, "HEDGESCAN_MODE")
	setStr(&cfg.LogLevel, "HEDGESCAN_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
