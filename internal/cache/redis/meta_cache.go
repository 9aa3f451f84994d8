package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hedgescan/hedgescan/internal/domain"
)

const metaTTL = time.Hour

// MetaLoader resolves outcome metadata from the source of truth (the
// configured market map plus a Gamma lookup for slug-only outcomes). It is
// invoked on cache misses.
type MetaLoader func(ctx context.Context, key domain.OutcomeKey) (domain.OutcomeMeta, error)

// MetaCache implements domain.MarketMetaCache as a read-through cache over
// a MetaLoader.
//
// Key schema:
//
//	meta:{event}:{outcome} - hash with field "data" containing JSON
type MetaCache struct {
	rdb    *redis.Client
	loader MetaLoader
}

// NewMetaCache creates a MetaCache backed by the given Client and loader.
func NewMetaCache(c *Client, loader MetaLoader) *MetaCache {
	return &MetaCache{rdb: c.rdb, loader: loader}
}

func metaKey(key domain.OutcomeKey) string {
	return "meta:" + key.Event + ":" + key.Outcome
}

// Resolve returns the cached metadata for an outcome, running the loader
// and repopulating the cache on a miss. A corrupt cache entry is treated as
// a miss rather than an error.
func (mc *MetaCache) Resolve(ctx context.Context, key domain.OutcomeKey) (domain.OutcomeMeta, error) {
	data, err := mc.rdb.HGet(ctx, metaKey(key), "data").Bytes()
	if err == nil {
		var meta domain.OutcomeMeta
		if jsonErr := json.Unmarshal(data, &meta); jsonErr == nil {
			return meta, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return domain.OutcomeMeta{}, fmt.Errorf("redis: get meta %s: %w", key, err)
	}

	meta, err := mc.loader(ctx, key)
	if err != nil {
		return domain.OutcomeMeta{}, fmt.Errorf("redis: load meta %s: %w", key, err)
	}

	// The resolved value is good even if the write-back fails; a failed
	// store only costs the next call another load.
	_ = mc.store(ctx, key, meta)

	return meta, nil
}

// Invalidate removes an outcome's metadata from the cache so the next
// Resolve re-runs the loader.
func (mc *MetaCache) Invalidate(ctx context.Context, key domain.OutcomeKey) error {
	if err := mc.rdb.Del(ctx, metaKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate meta %s: %w", key, err)
	}
	return nil
}

func (mc *MetaCache) store(ctx context.Context, key domain.OutcomeKey, meta domain.OutcomeMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("redis: marshal meta %s: %w", key, err)
	}

	k := metaKey(key)
	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, k, "data", data)
	pipe.Expire(ctx, k, metaTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set meta %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketMetaCache = (*MetaCache)(nil)
