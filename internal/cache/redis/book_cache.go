package redis

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hedgescan/hedgescan/internal/domain"
)

//go:embed scripts/book_replace.lua
var bookReplaceLua string

//go:embed scripts/book_level_update.lua
var bookLevelUpdateLua string

// BookCache implements domain.BookCache using Redis sorted sets and hashes
// for each contract's book, keyed by venue and token.
//
// Key schema:
//
//	book:{venue}:{token}:asks        - sorted set of ask prices (score = price)
//	book:{venue}:{token}:bids        - sorted set of bid prices (score = price)
//	book:{venue}:{token}:asks:sizes  - hash mapping price -> size
//	book:{venue}:{token}:bids:sizes  - hash mapping price -> size
//	book:{venue}:{token}:meta        - hash with source, last_price, updated_at
//
// All keys carry the configured stale-after TTL so books silently expire
// when their feed stops.
type BookCache struct {
	rdb         *redis.Client
	staleAfter  time.Duration
	replace     *redis.Script
	levelUpdate *redis.Script
}

// NewBookCache creates a BookCache backed by the given Client. staleAfter
// bounds how long a cached book stays usable without a refresh; zero
// disables both the TTL and the staleness check.
func NewBookCache(c *Client, staleAfter time.Duration) *BookCache {
	return &BookCache{
		rdb:         c.rdb,
		staleAfter:  staleAfter,
		replace:     redis.NewScript(bookReplaceLua),
		levelUpdate: redis.NewScript(bookLevelUpdateLua),
	}
}

func bookKey(venue domain.Venue, token, part string) string {
	return "book:" + string(venue) + ":" + token + ":" + part
}

// SetBook atomically replaces the cached book for a (venue, token). Each
// side is swapped in one Lua call; the meta hash is written last so a
// concurrent GetBook sees either the old complete book or the new one.
func (bc *BookCache) SetBook(ctx context.Context, venue domain.Venue, token string, book domain.Book) error {
	ttl := bc.ttlSeconds()

	for _, side := range []struct {
		part   string
		levels domain.BookSide
	}{
		{"asks", book.Asks},
		{"bids", book.Bids},
	} {
		keys := []string{bookKey(venue, token, side.part), bookKey(venue, token, side.part+":sizes")}
		args := make([]interface{}, 0, 1+2*len(side.levels))
		args = append(args, ttl)
		for _, lvl := range side.levels {
			args = append(args,
				strconv.FormatFloat(lvl.Price, 'f', -1, 64),
				strconv.FormatFloat(lvl.Size, 'f', -1, 64),
			)
		}
		if err := bc.replace.Run(ctx, bc.rdb, keys, args...).Err(); err != nil {
			return fmt.Errorf("redis: set book %s/%s %s: %w", venue, token, side.part, err)
		}
	}

	updatedAt := book.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	metaKey := bookKey(venue, token, "meta")
	pipe := bc.rdb.TxPipeline()
	pipe.HSet(ctx, metaKey,
		"source", string(book.Source),
		"last_price", strconv.FormatFloat(book.LastPrice, 'f', -1, 64),
		"updated_at", strconv.FormatInt(updatedAt.UnixNano(), 10),
	)
	if ttl > 0 {
		pipe.Expire(ctx, metaKey, bc.staleAfter)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set book %s/%s meta: %w", venue, token, err)
	}
	return nil
}

// GetBook reconstructs a full book from Redis. It returns domain.ErrNotFound
// when no book exists for the token and domain.ErrStale when the cached book
// has outlived the stale-after bound without expiring.
func (bc *BookCache) GetBook(ctx context.Context, venue domain.Venue, token string) (domain.Book, error) {
	pipe := bc.rdb.Pipeline()

	asksCmd := pipe.ZRangeWithScores(ctx, bookKey(venue, token, "asks"), 0, -1)
	bidsCmd := pipe.ZRevRangeWithScores(ctx, bookKey(venue, token, "bids"), 0, -1)
	askSizesCmd := pipe.HGetAll(ctx, bookKey(venue, token, "asks:sizes"))
	bidSizesCmd := pipe.HGetAll(ctx, bookKey(venue, token, "bids:sizes"))
	metaCmd := pipe.HGetAll(ctx, bookKey(venue, token, "meta"))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.Book{}, fmt.Errorf("redis: get book %s/%s: %w", venue, token, err)
	}

	meta, _ := metaCmd.Result()
	if len(meta) == 0 {
		return domain.Book{}, domain.ErrNotFound
	}

	book := domain.Book{Source: domain.QuoteSource(meta["source"])}
	if book.Source == "" {
		book.Source = domain.QuotePresent
	}
	if lp, err := strconv.ParseFloat(meta["last_price"], 64); err == nil {
		book.LastPrice = lp
	}
	if ts, err := strconv.ParseInt(meta["updated_at"], 10, 64); err == nil {
		book.UpdatedAt = time.Unix(0, ts)
	}

	askSizes, _ := askSizesCmd.Result()
	bidSizes, _ := bidSizesCmd.Result()
	asksZ, _ := asksCmd.Result()
	bidsZ, _ := bidsCmd.Result()
	book.Asks = buildSide(asksZ, askSizes)
	book.Bids = buildSide(bidsZ, bidSizes)

	if bc.staleAfter > 0 && !book.UpdatedAt.IsZero() && time.Since(book.UpdatedAt) > bc.staleAfter {
		return domain.Book{}, fmt.Errorf("redis: get book %s/%s: %w", venue, token, domain.ErrStale)
	}

	return book, nil
}

// UpdateLevel applies an incremental level update using an atomic Lua
// script. side accepts cache names ("asks"/"bids") and venue order sides
// ("SELL"/"BUY"). A size of 0 removes the level.
func (bc *BookCache) UpdateLevel(ctx context.Context, venue domain.Venue, token string, side string, price, size float64) error {
	var part string
	switch side {
	case "bids", "BUY", "buy":
		part = "bids"
	case "asks", "SELL", "sell":
		part = "asks"
	default:
		return fmt.Errorf("redis: update level: %w: unknown side %q", domain.ErrInvalidInput, side)
	}

	keys := []string{
		bookKey(venue, token, part),
		bookKey(venue, token, part+":sizes"),
		bookKey(venue, token, "meta"),
	}
	args := []interface{}{
		strconv.FormatFloat(price, 'f', -1, 64),
		strconv.FormatFloat(size, 'f', -1, 64),
		strconv.FormatInt(time.Now().UnixNano(), 10),
		bc.ttlSeconds(),
	}

	if err := bc.levelUpdate.Run(ctx, bc.rdb, keys, args...).Err(); err != nil {
		return fmt.Errorf("redis: update level %s/%s %s@%v: %w", venue, token, part, price, err)
	}
	return nil
}

func (bc *BookCache) ttlSeconds() int64 {
	if bc.staleAfter <= 0 {
		return 0
	}
	secs := int64(bc.staleAfter / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func buildSide(zs []redis.Z, sizes map[string]string) domain.BookSide {
	side := make(domain.BookSide, 0, len(zs))
	for _, z := range zs {
		priceStr, ok := z.Member.(string)
		if !ok {
			continue
		}
		size := 0.0
		if sizeStr, exists := sizes[priceStr]; exists {
			size, _ = strconv.ParseFloat(sizeStr, 64)
		}
		side = append(side, domain.PriceLevel{Price: z.Score, Size: size})
	}
	return side
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
