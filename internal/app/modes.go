package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hedgescan/hedgescan/internal/arbitrage"
	s3blob "github.com/hedgescan/hedgescan/internal/blob/s3"
	"github.com/hedgescan/hedgescan/internal/config"
	"github.com/hedgescan/hedgescan/internal/domain"
	"github.com/hedgescan/hedgescan/internal/feed"
	"github.com/hedgescan/hedgescan/internal/pipeline"
	"github.com/hedgescan/hedgescan/internal/server"
	"github.com/hedgescan/hedgescan/internal/server/handler"
	"github.com/hedgescan/hedgescan/internal/server/ws"
	"github.com/hedgescan/hedgescan/internal/service"
)

// streamSeedPage is the page size used when replaying the evaluation stream
// on monitor startup.
const streamSeedPage = 512

// ScanMode starts the quote scanner, the optional live book feed, and the
// HTTP server. This is the normal deployment mode.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)

	engine, err := arbitrage.NewEngine(engineConfig(a.cfg))
	if err != nil {
		return fmt.Errorf("scan mode: engine: %w", err)
	}

	keys := outcomeKeys(a.cfg)

	evalSvc := service.NewEvalService(engine, deps.SignalBus, a.logger)
	positionSvc := service.NewPositionService(
		positionEntries(a.cfg), keys, deps.Meta,
		walletPositions(a.cfg, deps), a.cfg.Polymarket.Wallet, a.logger,
	)
	exitSvc := service.NewExitService(
		engine, positionSvc, exitNotifier(deps),
		a.cfg.Notify.Cooldown.Duration, a.logger,
	)

	scanner := pipeline.NewQuoteScanner(pipeline.Deps{
		Kalshi:   deps.Kalshi,
		Poly:     deps.Clob,
		Meta:     deps.Meta,
		Books:    deps.Books,
		Limiter:  deps.RateLimiter,
		Locks:    deps.LockManager,
		Evals:    evalSvc,
		Exits:    exitSvc,
		Archiver: deps.Archiver,
		Notifier: hotNotifier(deps),
	}, keys, a.cfg.Scanner.Interval.Duration, a.cfg.Notify.Cooldown.Duration, a.logger)

	g.Go(func() error {
		return scanner.Run(ctx)
	})

	// Live book feed keeps the Polymarket side warm between polls.
	if a.cfg.Polymarket.WsHost != "" {
		assetIDs := a.watchTokenIDs(ctx, deps.Meta, keys)
		if len(assetIDs) > 0 {
			bookFeed := feed.NewPolymarketBookFeed(
				a.cfg.Polymarket.WsHost, assetIDs, deps.Books, a.logger,
			)
			g.Go(func() error {
				return bookFeed.Run(ctx)
			})
		}
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, evalSvc, exitSvc, scanner)
	}

	return g.Wait()
}

// MonitorMode serves the API off evaluations published by a scanning replica.
// It never touches the venues: the latest batch is seeded from the durable
// stream and then mirrored from Pub/Sub.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	engine, err := arbitrage.NewEngine(engineConfig(a.cfg))
	if err != nil {
		return fmt.Errorf("monitor mode: engine: %w", err)
	}
	// The holder only mirrors published batches here, so it gets no bus.
	evalSvc := service.NewEvalService(engine, nil, a.logger)

	a.seedLatest(ctx, deps, evalSvc)

	g.Go(func() error {
		ch, err := deps.SignalBus.Subscribe(ctx, service.OpportunitiesChannel)
		if err != nil {
			return fmt.Errorf("monitor mode: subscribe %s: %w", service.OpportunitiesChannel, err)
		}
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case payload, ok := <-ch:
				if !ok {
					return nil
				}
				var eval domain.Evaluation
				if err := json.Unmarshal(payload, &eval); err != nil {
					a.logger.WarnContext(ctx, "monitor mode: dropping malformed evaluation",
						slog.String("error", err.Error()),
					)
					continue
				}
				evalSvc.SetLatest(eval)
			}
		}
	})

	// The HTTP server is always started in monitor mode.
	a.startHTTPServer(ctx, g, deps, evalSvc, nil, nil)

	return g.Wait()
}

// OnceMode runs a single fetch-and-evaluate cycle and prints the evaluation
// as JSON on stdout. It needs neither Redis nor a server.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	engine, err := arbitrage.NewEngine(engineConfig(a.cfg))
	if err != nil {
		return fmt.Errorf("once mode: engine: %w", err)
	}

	keys := outcomeKeys(a.cfg)

	// One-shot runs stay side-effect free: no bus, no notifications.
	evalSvc := service.NewEvalService(engine, nil, a.logger)
	positionSvc := service.NewPositionService(
		positionEntries(a.cfg), keys, deps.Meta,
		walletPositions(a.cfg, deps), a.cfg.Polymarket.Wallet, a.logger,
	)
	exitSvc := service.NewExitService(engine, positionSvc, nil, 0, a.logger)

	scanner := pipeline.NewQuoteScanner(pipeline.Deps{
		Kalshi: deps.Kalshi,
		Poly:   deps.Clob,
		Meta:   deps.Meta,
		Evals:  evalSvc,
		Exits:  exitSvc,
	}, keys, a.cfg.Scanner.Interval.Duration, 0, a.logger)

	eval, err := scanner.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("once mode: %w", err)
	}

	return printJSON(os.Stdout, eval)
}

// ReplayMode loads an archived quote snapshot from S3, re-runs the pricing
// engine against it, and prints the evaluation as JSON on stdout. Settlement
// dates come from the current configuration; the archived quotes carry none.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	loader := s3blob.NewLoader(deps.BlobReader)

	if a.snapshot == "" {
		a.logArchivedSnapshots(ctx, loader)
		return fmt.Errorf("replay mode: snapshot path required (-snapshot raw/quotes/2006-01/<id>.jsonl)")
	}

	a.logger.InfoContext(ctx, "starting replay mode",
		slog.String("snapshot", a.snapshot),
	)

	quotes, err := loader.LoadQuotes(ctx, a.snapshot)
	if err != nil {
		return fmt.Errorf("replay mode: %w", err)
	}
	if len(quotes) == 0 {
		return fmt.Errorf("replay mode: snapshot %s holds no quotes", a.snapshot)
	}

	engine, err := arbitrage.NewEngine(engineConfig(a.cfg))
	if err != nil {
		return fmt.Errorf("replay mode: engine: %w", err)
	}
	evalSvc := service.NewEvalService(engine, nil, a.logger)

	settlements := settlementDates(a.cfg)
	inputs := make([]arbitrage.QuoteInput, 0, len(quotes))
	for _, q := range quotes {
		inputs = append(inputs, arbitrage.QuoteInput{
			Quote:      q,
			Settlement: settlements[q.Key()],
		})
	}

	eval := evalSvc.EvaluateCycle(ctx, inputs)

	a.logger.InfoContext(ctx, "replay evaluated",
		slog.String("snapshot", a.snapshot),
		slog.Int("quotes", len(quotes)),
		slog.Int("opportunities", len(eval.Opportunities)),
	)

	return printJSON(os.Stdout, eval)
}

// startHTTPServer adds the API server and WebSocket hub goroutines to the
// given errgroup. exits and scanner may be nil; their endpoints then report
// the capability as unavailable. The server is shut down gracefully when the
// context is cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	evals *service.EvalService,
	exits *service.ExitService,
	scanner *pipeline.QuoteScanner,
) {
	startedAt := time.Now().UTC()

	var exitSrc handler.ExitSource
	if exits != nil {
		exitSrc = exits
	}
	var trigger handler.ScanTrigger
	if scanner != nil {
		trigger = scanner
	}

	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(a.logger),
		Opportunities: handler.NewOpportunityHandler(evals, a.logger),
		Exits:         handler.NewExitHandler(exitSrc, a.logger),
		Stats:         handler.NewStatsHandler(evals, a.cfg.Mode, startedAt),
		Scan:          handler.NewScanHandler(trigger, a.logger),
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: startedAt,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// logArchivedSnapshots lists the current month's archived snapshots so an
// operator invoking replay without a path sees what there is to replay.
// Best effort; a listing failure only costs the hint.
func (a *App) logArchivedSnapshots(ctx context.Context, loader *s3blob.Loader) {
	month := time.Now().UTC().Format("2006-01")
	paths, err := loader.ListSnapshots(ctx, month)
	if err != nil {
		a.logger.WarnContext(ctx, "replay mode: snapshot listing failed",
			slog.String("month", month),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(paths) == 0 {
		a.logger.InfoContext(ctx, "replay mode: no snapshots archived this month",
			slog.String("month", month),
		)
		return
	}
	for _, p := range paths {
		a.logger.InfoContext(ctx, "replay mode: snapshot available", slog.String("path", p))
	}
}

// seedLatest replays the durable evaluation stream so a fresh monitor starts
// with the most recent batch instead of waiting for the next publish. Seeding
// is best effort; failures leave the holder empty.
func (a *App) seedLatest(ctx context.Context, deps *Dependencies, evals *service.EvalService) {
	var last []byte
	lastID := "0"
	for {
		msgs, err := deps.SignalBus.StreamRead(ctx, service.OpportunitiesStream, lastID, streamSeedPage)
		if err != nil {
			a.logger.WarnContext(ctx, "monitor mode: stream seed failed",
				slog.String("error", err.Error()),
			)
			return
		}
		if len(msgs) == 0 {
			break
		}
		last = msgs[len(msgs)-1].Payload
		lastID = msgs[len(msgs)-1].ID
	}
	if last == nil {
		return
	}

	var eval domain.Evaluation
	if err := json.Unmarshal(last, &eval); err != nil {
		a.logger.WarnContext(ctx, "monitor mode: stream seed corrupt",
			slog.String("error", err.Error()),
		)
		return
	}

	evals.SetLatest(eval)
	a.logger.InfoContext(ctx, "monitor mode: seeded from stream",
		slog.String("evaluation_id", eval.ID),
		slog.Int("opportunities", len(eval.Opportunities)),
	)
}

// watchTokenIDs resolves the Polymarket token IDs for every configured
// outcome, deduplicated, for the live book feed subscription.
func (a *App) watchTokenIDs(ctx context.Context, meta domain.MarketMetaCache, keys []domain.OutcomeKey) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, key := range keys {
		m, err := meta.Resolve(ctx, key)
		if err != nil {
			a.logger.WarnContext(ctx, "book feed: meta resolve failed",
				slog.String("outcome", key.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, tid := range []string{m.PolyYesToken, m.PolyNoToken} {
			if tid != "" && !seen[tid] {
				seen[tid] = true
				ids = append(ids, tid)
			}
		}
	}
	return ids
}

// engineConfig maps the engine section of the configuration onto the pricing
// engine's config type.
func engineConfig(cfg *config.Config) arbitrage.Config {
	return arbitrage.Config{
		MaxLevels:     cfg.Engine.MaxLevels,
		GoThreshold:   cfg.Engine.GoThreshold,
		HotThreshold:  cfg.Engine.HotThreshold,
		ExitThreshold: cfg.Engine.ExitThreshold,
		MinShares:     cfg.Engine.MinShares,
		KalshiFees:    feePolicy(cfg.Engine.Fees.Kalshi),
		PolyFees:      feePolicy(cfg.Engine.Fees.Polymarket),
	}
}

func feePolicy(p config.FeePolicyConfig) arbitrage.FeePolicy {
	return arbitrage.FeePolicy{
		Policy: strings.ToLower(p.Policy),
		Rate:   p.Rate,
		MinFee: p.MinFee,
	}
}

// outcomeKeys flattens the configured events into the scanner's key list.
func outcomeKeys(cfg *config.Config) []domain.OutcomeKey {
	var keys []domain.OutcomeKey
	for _, ev := range cfg.Events {
		for _, oc := range ev.Outcomes {
			keys = append(keys, domain.OutcomeKey{Event: ev.Name, Outcome: oc.Name})
		}
	}
	return keys
}

func positionEntries(cfg *config.Config) []service.PositionEntry {
	entries := make([]service.PositionEntry, 0, len(cfg.Positions))
	for _, p := range cfg.Positions {
		entries = append(entries, service.PositionEntry{
			Event:    p.Event,
			Outcome:  p.Outcome,
			Venue:    p.Venue,
			Side:     p.Side,
			Shares:   p.Shares,
			AvgPrice: p.AvgPrice,
		})
	}
	return entries
}

// settlementDates maps every configured outcome to its effective settlement
// date.
func settlementDates(cfg *config.Config) map[domain.OutcomeKey]*time.Time {
	out := make(map[domain.OutcomeKey]*time.Time)
	for _, ev := range cfg.Events {
		for _, oc := range ev.Outcomes {
			out[domain.OutcomeKey{Event: ev.Name, Outcome: oc.Name}] = settlementFor(ev, oc)
		}
	}
	return out
}

// walletPositions returns the data API slice only when a wallet is
// configured; a nil interface keeps the position service config-only.
func walletPositions(cfg *config.Config, deps *Dependencies) service.WalletPositions {
	if cfg.Polymarket.Wallet == "" {
		return nil
	}
	return deps.Data
}

// exitNotifier and hotNotifier narrow the optional notifier to the consumer
// interfaces, keeping them nil interfaces when notifications are off.
func exitNotifier(deps *Dependencies) service.ExitNotifier {
	if deps.Notifier == nil {
		return nil
	}
	return deps.Notifier
}

func hotNotifier(deps *Dependencies) pipeline.HotNotifier {
	if deps.Notifier == nil {
		return nil
	}
	return deps.Notifier
}

// printJSON writes v to w as indented JSON, the output contract of the
// one-shot modes.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
