// Package pipeline drives the recurring quote collection cycle: resolve the
// configured outcomes, pull order books from both venues, cache them, and
// hand the batch to the evaluation and exit services.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hedgescan/hedgescan/internal/arbitrage"
	"github.com/hedgescan/hedgescan/internal/domain"
	"github.com/hedgescan/hedgescan/internal/platform/kalshi"
)

// Scan coordination keys. The lock keeps concurrent deployments from double
// polling; the budget key paces every venue request through one shared
// rate-limit window.
const (
	scanLockKey    = "scan"
	scanLockTTL    = 60 * time.Second
	venueBudgetKey = "venues"
)

// KalshiBooks is the slice of the Kalshi client the scanner uses.
type KalshiBooks interface {
	GetMarket(ctx context.Context, ticker string) (kalshi.Market, error)
	GetOrderbook(ctx context.Context, ticker string) (kalshi.Orderbook, error)
}

// PolyBooks is the slice of the Polymarket CLOB client the scanner uses.
type PolyBooks interface {
	GetBook(ctx context.Context, tokenID string) (domain.Book, error)
	GetLastTradePrice(ctx context.Context, tokenID string) (float64, error)
}

// CycleEvaluator turns one cycle's quote batch into a published Evaluation.
type CycleEvaluator interface {
	EvaluateCycle(ctx context.Context, inputs []arbitrage.QuoteInput) domain.Evaluation
}

// ExitEvaluator marks open hedges to market against the cycle's quotes.
type ExitEvaluator interface {
	EvaluateCycle(ctx context.Context, quotes map[domain.OutcomeKey]domain.OutcomeQuote) []domain.ExitRecord
}

// HotNotifier delivers operator alerts for HOT opportunities.
type HotNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Deps bundles the collaborators a QuoteScanner drives. Optional fields may
// be nil: a nil Books skips cache writes, a nil Locks runs unlocked, a nil
// Limiter runs unpaced, and nil Exits / Archiver / Notifier disable those
// steps.
type Deps struct {
	Kalshi   KalshiBooks
	Poly     PolyBooks
	Meta     domain.MarketMetaCache
	Books    domain.BookCache
	Limiter  domain.RateLimiter
	Locks    domain.LockManager
	Evals    CycleEvaluator
	Exits    ExitEvaluator
	Archiver domain.SnapshotArchiver
	Notifier HotNotifier
}

// QuoteScanner polls both venues for every configured outcome on a fixed
// interval, assembles OutcomeQuotes, and runs the evaluation pipeline. A
// fetch failure on any leg degrades that book to Missing rather than
// aborting the cycle.
type QuoteScanner struct {
	deps     Deps
	keys     []domain.OutcomeKey
	interval time.Duration
	cooldown time.Duration
	logger   *slog.Logger

	trigger chan struct{}

	mu      sync.Mutex
	lastHot map[domain.OutcomeKey]time.Time
}

// NewQuoteScanner creates a QuoteScanner over the configured outcome keys.
// hotCooldown bounds how often one outcome's HOT alert can fire.
func NewQuoteScanner(deps Deps, keys []domain.OutcomeKey, interval, hotCooldown time.Duration, logger *slog.Logger) *QuoteScanner {
	return &QuoteScanner{
		deps:     deps,
		keys:     keys,
		interval: interval,
		cooldown: hotCooldown,
		logger:   logger.With(slog.String("component", "scanner")),
		trigger:  make(chan struct{}, 1),
		lastHot:  make(map[domain.OutcomeKey]time.Time),
	}
}

// Trigger requests an immediate scan cycle. Non-blocking; triggers arriving
// while one is already pending coalesce.
func (s *QuoteScanner) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run executes scan cycles until the context is cancelled: once immediately
// on start, then on every tick and every manual trigger.
func (s *QuoteScanner) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "quote scanner started",
		slog.Duration("interval", s.interval),
		slog.Int("outcomes", len(s.keys)),
	)

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "quote scanner stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		case <-s.trigger:
			s.runCycle(ctx)
		}
	}
}

// RunOnce executes a single scan cycle and returns its Evaluation. Used by
// the one-shot mode.
func (s *QuoteScanner) RunOnce(ctx context.Context) (domain.Evaluation, error) {
	inputs, quotes := s.collect(ctx)
	if len(inputs) == 0 {
		return domain.Evaluation{}, fmt.Errorf("scanner: no outcomes configured")
	}
	eval := s.deps.Evals.EvaluateCycle(ctx, inputs)
	if s.deps.Exits != nil {
		s.deps.Exits.EvaluateCycle(ctx, quotes)
	}
	return eval, nil
}

func (s *QuoteScanner) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if s.deps.Locks != nil {
		unlock, err := s.deps.Locks.Acquire(ctx, scanLockKey, scanLockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			s.logger.DebugContext(ctx, "scan cycle skipped, lock held elsewhere")
			return
		case err != nil:
			s.logger.WarnContext(ctx, "scan lock acquire failed, proceeding unlocked",
				slog.String("error", err.Error()),
			)
		default:
			defer unlock()
		}
	}

	started := time.Now()
	inputs, quotes := s.collect(ctx)
	if len(inputs) == 0 {
		return
	}

	eval := s.deps.Evals.EvaluateCycle(ctx, inputs)

	if s.deps.Exits != nil {
		s.deps.Exits.EvaluateCycle(ctx, quotes)
	}

	if s.deps.Archiver != nil {
		batch := make([]domain.OutcomeQuote, 0, len(inputs))
		for _, in := range inputs {
			batch = append(batch, in.Quote)
		}
		if path, err := s.deps.Archiver.ArchiveQuotes(ctx, eval.ID, batch); err != nil {
			s.logger.WarnContext(ctx, "snapshot archive failed",
				slog.String("evaluation_id", eval.ID),
				slog.String("error", err.Error()),
			)
		} else if path != "" {
			s.logger.DebugContext(ctx, "snapshot archived", slog.String("path", path))
		}
	}

	s.notifyHot(ctx, eval)

	s.logger.InfoContext(ctx, "scan cycle complete",
		slog.Duration("took", time.Since(started)),
		slog.Int("outcomes", len(inputs)),
		slog.Int("opportunities", eval.Stats.Opportunities),
		slog.Int("hot", eval.Stats.HotCount),
	)
}

// collect fetches the current books for every configured outcome. The
// returned inputs cover the whole configured set so batch statistics count
// markets, not successful fetches; the map keys the same quotes for exit
// evaluation.
func (s *QuoteScanner) collect(ctx context.Context) ([]arbitrage.QuoteInput, map[domain.OutcomeKey]domain.OutcomeQuote) {
	inputs := make([]arbitrage.QuoteInput, 0, len(s.keys))
	quotes := make(map[domain.OutcomeKey]domain.OutcomeQuote, len(s.keys))

	for _, key := range s.keys {
		if ctx.Err() != nil {
			break
		}

		meta, err := s.deps.Meta.Resolve(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "metadata resolve failed",
				slog.String("outcome", key.String()),
				slog.String("error", err.Error()),
			)
			meta = domain.OutcomeMeta{Event: key.Event, Outcome: key.Outcome}
		}

		quote := s.fetchQuote(ctx, meta)
		inputs = append(inputs, arbitrage.QuoteInput{
			Quote:      quote,
			Settlement: meta.SettlementDate,
		})
		quotes[key] = quote
	}

	return inputs, quotes
}

// fetchQuote pulls an outcome's books from both venues concurrently. Each
// venue failure is logged and leaves Missing books for its legs.
func (s *QuoteScanner) fetchQuote(ctx context.Context, meta domain.OutcomeMeta) domain.OutcomeQuote {
	quote := domain.OutcomeQuote{
		Event:     meta.Event,
		Outcome:   meta.Outcome,
		KalshiYes: missingBook(),
		KalshiNo:  missingBook(),
		PolyYes:   missingBook(),
		PolyNo:    missingBook(),
		Timestamp: time.Now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)

	if meta.KalshiTicker != "" {
		g.Go(func() error {
			yes, no, err := s.fetchKalshi(gctx, meta.KalshiTicker)
			if err != nil {
				s.logger.WarnContext(gctx, "kalshi fetch failed",
					slog.String("ticker", meta.KalshiTicker),
					slog.String("error", err.Error()),
				)
				return nil
			}
			quote.KalshiYes, quote.KalshiNo = yes, no
			s.cacheBook(gctx, domain.VenueKalshi, meta.KalshiTicker, yes)
			return nil
		})
	}
	if meta.PolyYesToken != "" {
		g.Go(func() error {
			book, err := s.fetchPolyBook(gctx, meta.PolyYesToken)
			if err != nil {
				s.logger.WarnContext(gctx, "polymarket yes book fetch failed",
					slog.String("token", meta.PolyYesToken),
					slog.String("error", err.Error()),
				)
				return nil
			}
			quote.PolyYes = book
			s.cacheBook(gctx, domain.VenuePolymarket, meta.PolyYesToken, book)
			return nil
		})
	}
	if meta.PolyNoToken != "" {
		g.Go(func() error {
			book, err := s.fetchPolyBook(gctx, meta.PolyNoToken)
			if err != nil {
				s.logger.WarnContext(gctx, "polymarket no book fetch failed",
					slog.String("token", meta.PolyNoToken),
					slog.String("error", err.Error()),
				)
				return nil
			}
			quote.PolyNo = book
			s.cacheBook(gctx, domain.VenuePolymarket, meta.PolyNoToken, book)
			return nil
		})
	}

	_ = g.Wait() // fetch closures never return errors, they degrade

	return quote
}

// fetchKalshi retrieves the Kalshi orderbook and builds both contract views.
// The market lookup only supplies the last trade price for the exit
// fallback; its failure is tolerable.
func (s *QuoteScanner) fetchKalshi(ctx context.Context, ticker string) (yes, no domain.Book, err error) {
	s.pace(ctx)
	ob, err := s.deps.Kalshi.GetOrderbook(ctx, ticker)
	if err != nil {
		return missingBook(), missingBook(), err
	}

	var lastYes float64
	s.pace(ctx)
	if m, merr := s.deps.Kalshi.GetMarket(ctx, ticker); merr == nil {
		lastYes = kalshi.Prob(m.LastPrice)
	} else {
		s.logger.DebugContext(ctx, "kalshi market fetch failed, no last price fallback",
			slog.String("ticker", ticker),
			slog.String("error", merr.Error()),
		)
	}

	return ob.YesBook(lastYes), ob.NoBook(lastYes), nil
}

// fetchPolyBook retrieves one CLOB book. When the bid side comes back empty
// the last trade price is fetched lazily so exits still have a fallback.
func (s *QuoteScanner) fetchPolyBook(ctx context.Context, tokenID string) (domain.Book, error) {
	s.pace(ctx)
	book, err := s.deps.Poly.GetBook(ctx, tokenID)
	if err != nil {
		return missingBook(), err
	}

	if len(book.Bids) == 0 && book.LastPrice == 0 {
		s.pace(ctx)
		if last, lerr := s.deps.Poly.GetLastTradePrice(ctx, tokenID); lerr == nil {
			book.LastPrice = last
		}
	}

	return book, nil
}

func (s *QuoteScanner) cacheBook(ctx context.Context, venue domain.Venue, token string, book domain.Book) {
	if s.deps.Books == nil {
		return
	}
	if err := s.deps.Books.SetBook(ctx, venue, token, book); err != nil {
		s.logger.WarnContext(ctx, "book cache write failed",
			slog.String("venue", string(venue)),
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
	}
}

// pace blocks until the shared venue request budget admits another call.
func (s *QuoteScanner) pace(ctx context.Context) {
	if s.deps.Limiter == nil {
		return
	}
	if err := s.deps.Limiter.Wait(ctx, venueBudgetKey); err != nil {
		s.logger.DebugContext(ctx, "rate limiter wait failed",
			slog.String("error", err.Error()),
		)
	}
}

// notifyHot alerts on HOT opportunities, at most once per outcome per
// cooldown window.
func (s *QuoteScanner) notifyHot(ctx context.Context, eval domain.Evaluation) {
	if s.deps.Notifier == nil {
		return
	}

	now := time.Now()
	for _, opp := range eval.Opportunities {
		if opp.Signal != domain.SignalHot {
			continue
		}

		s.mu.Lock()
		last, seen := s.lastHot[opp.Key()]
		if seen && s.cooldown > 0 && now.Sub(last) < s.cooldown {
			s.mu.Unlock()
			continue
		}
		s.lastHot[opp.Key()] = now
		s.mu.Unlock()

		title := fmt.Sprintf("HOT: %s/%s", opp.Event, opp.Outcome)
		message := fmt.Sprintf(
			"%s profit %.2f%% on %.1f shares (cost %.3f/share, fee $%.2f)",
			opp.Direction, opp.Strategy.ProfitPct*100, opp.Strategy.Shares,
			opp.Strategy.CostPerShare, opp.Strategy.Fee,
		)
		if err := s.deps.Notifier.Notify(ctx, "hot_opportunity", title, message); err != nil {
			s.logger.WarnContext(ctx, "hot notification failed",
				slog.String("outcome", opp.Key().String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func missingBook() domain.Book {
	return domain.Book{Source: domain.QuoteMissing}
}
