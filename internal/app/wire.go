package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/hedgescan/hedgescan/internal/blob/s3"
	"github.com/hedgescan/hedgescan/internal/cache/redis"
	"github.com/hedgescan/hedgescan/internal/config"
	"github.com/hedgescan/hedgescan/internal/domain"
	"github.com/hedgescan/hedgescan/internal/notify"
	"github.com/hedgescan/hedgescan/internal/platform/kalshi"
	"github.com/hedgescan/hedgescan/internal/platform/polymarket"
)

// Dependencies bundles every dependency that the application modes need to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function. Fields are nil when the mode does not wire them: the one-shot
// modes run without Redis, and blob storage exists only when archival or
// replay needs it.
type Dependencies struct {
	// Venue clients
	Kalshi *kalshi.Client
	Clob   *polymarket.ClobClient
	Gamma  *polymarket.GammaClient
	Data   *polymarket.DataClient

	// Caches and coordination
	Meta        domain.MarketMetaCache
	Books       domain.BookCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.SnapshotArchiver

	// Notifications
	Notifier *notify.Notifier
}

// needsRedis returns true for the long-running modes that share live state.
func needsRedis(mode string) bool {
	switch mode {
	case "scan", "monitor":
		return true
	default:
		return false
	}
}

// needsS3 returns true when object storage must be reachable: snapshot
// archival is on, or a replay has to read one back.
func needsS3(cfg *config.Config) bool {
	return cfg.S3.Enabled || cfg.Mode == "replay"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Kalshi: kalshi.NewClient(cfg.Kalshi.BaseURL),
		Clob:   polymarket.NewClobClient(cfg.Polymarket.ClobHost),
		Gamma:  polymarket.NewGammaClient(cfg.Polymarket.GammaHost),
		Data:   polymarket.NewDataClient(cfg.Polymarket.DataHost),
	}

	loader := buildMetaLoader(cfg, deps.Gamma)

	// --- Redis (only for modes that share live state) ---
	if needsRedis(cfg.Mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Meta = redis.NewMetaCache(redisClient, loader)
		deps.Books = redis.NewBookCache(redisClient, cfg.Scanner.StaleAfter.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient, cfg.Scanner.RequestsPerSecond, time.Second)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		deps.Meta = directMeta{loader: loader}
	}

	// --- S3 blob storage (archival and replay) ---
	if needsS3(cfg) {
		bucket, err := s3blob.Open(ctx, s3blob.Options{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = bucket
		deps.BlobReader = bucket
		if cfg.S3.Enabled && cfg.Scanner.ArchiveSnapshots {
			deps.Archiver = s3blob.NewArchiver(bucket)
		}
	}

	// --- Notifications ---
	if cfg.Notify.Enabled {
		var senders []notify.Sender
		if cfg.Notify.Telegram.Token != "" && cfg.Notify.Telegram.ChatID != "" {
			senders = append(senders, notify.NewTelegramSender(
				cfg.Notify.Telegram.Token,
				cfg.Notify.Telegram.ChatID,
			))
		}
		if cfg.Notify.Discord.WebhookURL != "" {
			senders = append(senders, notify.NewDiscordSender(cfg.Notify.Discord.WebhookURL))
		}
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}

// buildMetaLoader returns the source of truth behind the meta cache: the
// configured event map, with a Gamma slug lookup filling in token IDs for
// outcomes that only name a Polymarket market slug. The outcome-level
// settlement date wins over the event-level one.
func buildMetaLoader(cfg *config.Config, gamma *polymarket.GammaClient) redis.MetaLoader {
	seeds := make(map[domain.OutcomeKey]domain.OutcomeMeta)
	for _, ev := range cfg.Events {
		for _, oc := range ev.Outcomes {
			key := domain.OutcomeKey{Event: ev.Name, Outcome: oc.Name}
			meta := domain.OutcomeMeta{
				Event:        ev.Name,
				Outcome:      oc.Name,
				KalshiTicker: oc.KalshiTicker,
				PolyYesToken: oc.PolyYesToken,
				PolyNoToken:  oc.PolyNoToken,
				PolySlug:     oc.PolymarketSlug,
			}
			meta.SettlementDate = settlementFor(ev, oc)
			seeds[key] = meta
		}
	}

	return func(ctx context.Context, key domain.OutcomeKey) (domain.OutcomeMeta, error) {
		meta, ok := seeds[key]
		if !ok {
			return domain.OutcomeMeta{}, fmt.Errorf("meta: unknown outcome %s: %w", key, domain.ErrNotFound)
		}
		if meta.PolyYesToken != "" && meta.PolyNoToken != "" {
			return meta, nil
		}
		if meta.PolySlug == "" {
			return meta, nil
		}
		market, err := gamma.GetMarketBySlug(ctx, meta.PolySlug)
		if err != nil {
			return domain.OutcomeMeta{}, fmt.Errorf("meta: resolve slug %q: %w", meta.PolySlug, err)
		}
		yes, no, ok := market.TokenPair()
		if !ok {
			return domain.OutcomeMeta{}, fmt.Errorf("meta: market %q has no binary token pair", meta.PolySlug)
		}
		meta.PolyYesToken = yes
		meta.PolyNoToken = no
		return meta, nil
	}
}

// settlementFor picks the effective settlement date for one outcome: the
// outcome-level override when set, the event-level date otherwise, nil when
// neither is configured.
func settlementFor(ev config.EventConfig, oc config.OutcomeConfig) *time.Time {
	settle := oc.SettlementDate
	if settle.IsZero() {
		settle = ev.SettlementDate
	}
	if settle.IsZero() {
		return nil
	}
	t := settle.UTC()
	return &t
}

// directMeta satisfies domain.MarketMetaCache by calling the loader on every
// Resolve. The one-shot modes use it to run without Redis.
type directMeta struct {
	loader redis.MetaLoader
}

func (d directMeta) Resolve(ctx context.Context, key domain.OutcomeKey) (domain.OutcomeMeta, error) {
	return d.loader(ctx, key)
}

func (d directMeta) Invalidate(context.Context, domain.OutcomeKey) error { return nil }

var _ domain.MarketMetaCache = directMeta{}
