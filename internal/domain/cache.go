package domain

import (
	"context"
	"time"
)

// BookCache stores live per-venue orderbook state keyed by token.
type BookCache interface {
	SetBook(ctx context.Context, venue Venue, token string, book Book) error
	GetBook(ctx context.Context, venue Venue, token string) (Book, error)
	UpdateLevel(ctx context.Context, venue Venue, token string, side string, price, size float64) error
}

// MarketMetaCache resolves outcome metadata through a read-through cache.
// Resolve consults the cache first and falls back to the configured source on
// a miss, repopulating the cache on the way out.
type MarketMetaCache interface {
	Resolve(ctx context.Context, key OutcomeKey) (OutcomeMeta, error)
	Invalidate(ctx context.Context, key OutcomeKey) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
