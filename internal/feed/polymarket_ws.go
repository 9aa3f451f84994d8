// Package feed keeps the live book cache warm between scan cycles. The
// Polymarket market channel streams full snapshots and incremental level
// updates; the feed applies both to the shared BookCache so monitor-mode
// readers and the next scan cycle see fresher books than polling alone
// provides.
package feed

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/hedgescan/hedgescan/internal/domain"
	"github.com/hedgescan/hedgescan/internal/platform/polymarket"
)

// PolymarketBookFeed subscribes to the CLOB market channel for a set of
// token IDs and mirrors every book event into the book cache. The underlying
// WebSocket client reconnects with backoff on its own.
type PolymarketBookFeed struct {
	wsURL    string
	assetIDs []string
	books    domain.BookCache
	logger   *slog.Logger
}

// NewPolymarketBookFeed creates a feed over the given CLOB token IDs.
func NewPolymarketBookFeed(wsURL string, assetIDs []string, books domain.BookCache, logger *slog.Logger) *PolymarketBookFeed {
	return &PolymarketBookFeed{
		wsURL:    wsURL,
		assetIDs: assetIDs,
		books:    books,
		logger:   logger.With(slog.String("component", "polymarket_feed")),
	}
}

// Run connects, subscribes, and applies events until the context is
// cancelled. With no token IDs configured it returns immediately.
func (f *PolymarketBookFeed) Run(ctx context.Context) error {
	if len(f.assetIDs) == 0 {
		f.logger.InfoContext(ctx, "no token ids to subscribe, feed disabled")
		return nil
	}

	client := polymarket.NewWSClient(f.wsURL)
	defer client.Close()

	client.OnBook(func(snap polymarket.BookSnapshot) {
		f.applySnapshot(ctx, snap)
	})
	client.OnPriceChange(func(msg polymarket.PriceChangeMessage) {
		f.applyPriceChange(ctx, msg)
	})
	client.OnLastTrade(func(msg polymarket.PriceMessage) {
		f.applyLastTrade(ctx, msg)
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	if err := client.Subscribe(ctx, f.assetIDs); err != nil {
		return err
	}
	f.logger.InfoContext(ctx, "polymarket feed subscribed", slog.Int("assets", len(f.assetIDs)))

	<-ctx.Done()
	f.logger.InfoContext(ctx, "polymarket feed stopped")
	return ctx.Err()
}

// applySnapshot replaces the cached book with a full snapshot. The last
// trade price survives via the cache's merge on write.
func (f *PolymarketBookFeed) applySnapshot(ctx context.Context, snap polymarket.BookSnapshot) {
	if snap.AssetID == "" {
		return
	}
	book := snap.ToBook()
	if err := f.books.SetBook(ctx, domain.VenuePolymarket, snap.AssetID, book); err != nil {
		f.logger.WarnContext(ctx, "book snapshot write failed",
			slog.String("token", snap.AssetID),
			slog.String("error", err.Error()),
		)
	}
}

// applyPriceChange applies each changed level in place. Venue sides pass
// straight through; the cache maps BUY to bids and SELL to asks.
func (f *PolymarketBookFeed) applyPriceChange(ctx context.Context, msg polymarket.PriceChangeMessage) {
	for _, lvl := range msg.Levels() {
		if lvl.AssetID == "" {
			continue
		}
		price, errP := strconv.ParseFloat(lvl.Price, 64)
		size, errS := strconv.ParseFloat(lvl.Size, 64)
		if errP != nil || errS != nil || price <= 0 || price >= 1 || size < 0 {
			continue
		}
		if err := f.books.UpdateLevel(ctx, domain.VenuePolymarket, lvl.AssetID, lvl.Side, price, size); err != nil {
			f.logger.WarnContext(ctx, "book level update failed",
				slog.String("token", lvl.AssetID),
				slog.String("side", lvl.Side),
				slog.String("error", err.Error()),
			)
		}
	}
}

// applyLastTrade folds the latest trade price into the cached book so exit
// valuation keeps a fallback when the bid side empties out.
func (f *PolymarketBookFeed) applyLastTrade(ctx context.Context, msg polymarket.PriceMessage) {
	if msg.AssetID == "" {
		return
	}
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil || price <= 0 || price >= 1 {
		return
	}

	book, err := f.books.GetBook(ctx, domain.VenuePolymarket, msg.AssetID)
	if err != nil {
		f.logger.DebugContext(ctx, "book read for last trade failed",
			slog.String("token", msg.AssetID),
			slog.String("error", err.Error()),
		)
		return
	}
	if book.Source == domain.QuoteMissing {
		book = domain.Book{Source: domain.QuotePresent}
	}
	book.LastPrice = price
	if err := f.books.SetBook(ctx, domain.VenuePolymarket, msg.AssetID, book); err != nil {
		f.logger.WarnContext(ctx, "last trade write failed",
			slog.String("token", msg.AssetID),
			slog.String("error", err.Error()),
		)
	}
}
