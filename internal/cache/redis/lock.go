package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hedgescan/hedgescan/internal/domain"
)

// releaseTimeout bounds the unlock round-trip; the holder's context may
// already be cancelled when the deferred unlock runs.
const releaseTimeout = 5 * time.Second

// releaseScript deletes the lock key only while it still carries the
// holder's token, so an expired lock reclaimed by another replica is never
// released out from under it.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// LockManager implements domain.LockManager with SET NX + TTL. The scanner
// takes the scan lock each cycle so only one replica polls the venues.
type LockManager struct {
	rdb *redis.Client
}

// NewLockManager creates a LockManager on the shared client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{rdb: c.rdb}
}

var _ domain.LockManager = (*LockManager)(nil)

// Acquire takes the named lock for at most ttl and returns its release
// function. Releasing more than once is a no-op. When another holder owns
// the lock it returns domain.ErrLockHeld.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	name := "lock:" + key
	token := uuid.NewString()

	ok, err := lm.rdb.SetNX(ctx, name, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = releaseScript.Run(rctx, lm.rdb, []string{name}, token).Err()
		})
	}
	return release, nil
}
