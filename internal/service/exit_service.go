package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hedgescan/hedgescan/internal/arbitrage"
	"github.com/hedgescan/hedgescan/internal/domain"
)

// ExitNotifier is the slice of the notifier the exit service calls when a
// hedge becomes ready to unwind.
type ExitNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// ExitService marks open hedges to market every cycle and tracks which are
// ready to unwind. It keeps the cooldown and transition state here so the
// pricing engine stays free of side effects.
type ExitService struct {
	engine    *arbitrage.Engine
	positions *PositionService
	notifier  ExitNotifier // nil disables notifications
	cooldown  time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	latest   map[domain.OutcomeKey]domain.ExitRecord
	lastSent map[domain.OutcomeKey]time.Time
}

// NewExitService creates an ExitService. notifier may be nil; cooldown bounds
// how often one outcome's exit_ready alert can fire.
func NewExitService(
	engine *arbitrage.Engine,
	positions *PositionService,
	notifier ExitNotifier,
	cooldown time.Duration,
	logger *slog.Logger,
) *ExitService {
	return &ExitService{
		engine:    engine,
		positions: positions,
		notifier:  notifier,
		cooldown:  cooldown,
		logger:    logger,
		latest:    make(map[domain.OutcomeKey]domain.ExitRecord),
		lastSent:  make(map[domain.OutcomeKey]time.Time),
	}
}

// EvaluateCycle recomputes exit records for every open hedge against the
// cycle's quotes, replaces the held set, and fires exit_ready notifications
// for hedges that newly crossed the gate. Returns the records sorted by
// outcome for display.
func (s *ExitService) EvaluateCycle(ctx context.Context, quotes map[domain.OutcomeKey]domain.OutcomeQuote) []domain.ExitRecord {
	hedges, _ := s.positions.Hedges(ctx)
	records := s.engine.EvaluateExits(hedges, quotes)

	s.mu.Lock()
	prev := s.latest
	s.latest = records

	var newlyReady []domain.ExitRecord
	now := time.Now()
	for key, rec := range records {
		if !rec.CanExit || prev[key].CanExit {
			continue
		}
		if last, ok := s.lastSent[key]; ok && s.cooldown > 0 && now.Sub(last) < s.cooldown {
			continue
		}
		s.lastSent[key] = now
		newlyReady = append(newlyReady, rec)
	}
	s.mu.Unlock()

	for _, rec := range newlyReady {
		s.notifyExitReady(ctx, rec)
	}

	if len(records) > 0 {
		s.logger.DebugContext(ctx, "exit_service: cycle evaluated",
			slog.Int("hedges", len(hedges)),
			slog.Int("records", len(records)),
			slog.Int("ready", countReady(records)),
		)
	}

	return sortedRecords(records)
}

// Latest returns the most recent exit records sorted by outcome. Empty until
// the first cycle with open hedges.
func (s *ExitService) Latest() []domain.ExitRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedRecords(s.latest)
}

func (s *ExitService) notifyExitReady(ctx context.Context, rec domain.ExitRecord) {
	s.logger.InfoContext(ctx, "exit_service: hedge ready to unwind",
		slog.String("event", rec.Event),
		slog.String("outcome", rec.Outcome),
		slog.Float64("net_profit", rec.NetProfit),
		slog.Float64("exit_price_sum", rec.ExitPriceSum),
	)

	if s.notifier == nil {
		return
	}

	title := fmt.Sprintf("Exit ready: %s/%s", rec.Event, rec.Outcome)
	message := fmt.Sprintf(
		"%.1f shares, exit sum %.3f, net profit $%.2f (%.2f%%)",
		rec.Shares, rec.ExitPriceSum, rec.NetProfit, rec.ProfitPct*100,
	)
	if err := s.notifier.Notify(ctx, "exit_ready", title, message); err != nil {
		s.logger.WarnContext(ctx, "exit_service: notification failed",
			slog.String("event", rec.Event),
			slog.String("outcome", rec.Outcome),
			slog.String("error", err.Error()),
		)
	}
}

func countReady(records map[domain.OutcomeKey]domain.ExitRecord) int {
	n := 0
	for _, rec := range records {
		if rec.CanExit {
			n++
		}
	}
	return n
}

func sortedRecords(records map[domain.OutcomeKey]domain.ExitRecord) []domain.ExitRecord {
	out := make([]domain.ExitRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Event != out[j].Event {
			return out[i].Event < out[j].Event
		}
		return out[i].Outcome < out[j].Outcome
	})
	return out
}
