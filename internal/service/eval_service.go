// Package service composes the pricing engine, caches, and venue clients into
// the operations the scanner and the HTTP layer call: batch evaluation,
// position sourcing and pairing, and exit monitoring.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hedgescan/hedgescan/internal/arbitrage"
	"github.com/hedgescan/hedgescan/internal/domain"
)

// Bus destinations for evaluation fan-out. The channel carries live batches
// to subscribed processes; the stream keeps a capped history so monitors can
// seed their state after a restart.
const (
	OpportunitiesChannel = "opportunities"
	OpportunitiesStream  = "opportunities:stream"
)

// EvalService runs the engine over each cycle's quote batch, holds the latest
// Evaluation for the HTTP layer, and fans completed batches out on the signal
// bus. Evaluations replace each other wholesale; there is no cross-cycle
// merging.
type EvalService struct {
	engine *arbitrage.Engine
	bus    domain.SignalBus // nil disables fan-out (once / replay modes)
	logger *slog.Logger

	latest atomic.Pointer[domain.Evaluation]
}

// NewEvalService creates an EvalService. bus may be nil when no other process
// consumes the batches.
func NewEvalService(engine *arbitrage.Engine, bus domain.SignalBus, logger *slog.Logger) *EvalService {
	return &EvalService{
		engine: engine,
		bus:    bus,
		logger: logger,
	}
}

// EvaluateCycle prices one batch of quote inputs, stores the result as the
// latest Evaluation, and publishes it. Bus failures are logged, not returned:
// a working evaluation must stay available locally even when Redis is down.
func (s *EvalService) EvaluateCycle(ctx context.Context, inputs []arbitrage.QuoteInput) domain.Evaluation {
	now := time.Now().UTC()
	opps, stats := s.engine.Evaluate(inputs, now)

	eval := domain.Evaluation{
		ID:            uuid.NewString(),
		At:            now,
		Opportunities: opps,
		Stats:         stats,
	}
	s.latest.Store(&eval)

	s.logger.InfoContext(ctx, "eval_service: cycle evaluated",
		slog.String("evaluation_id", eval.ID),
		slog.Int("markets", stats.TotalMarkets),
		slog.Int("opportunities", stats.Opportunities),
		slog.Int("hot", stats.HotCount),
		slog.Int("go", stats.GoCount),
	)

	if s.bus != nil {
		payload, err := json.Marshal(eval)
		if err != nil {
			s.logger.WarnContext(ctx, "eval_service: marshal evaluation failed",
				slog.String("evaluation_id", eval.ID),
				slog.String("error", err.Error()),
			)
			return eval
		}
		if pubErr := s.bus.Publish(ctx, OpportunitiesChannel, payload); pubErr != nil {
			s.logger.WarnContext(ctx, "eval_service: publish failed",
				slog.String("evaluation_id", eval.ID),
				slog.String("error", pubErr.Error()),
			)
		}
		if appErr := s.bus.StreamAppend(ctx, OpportunitiesStream, payload); appErr != nil {
			s.logger.WarnContext(ctx, "eval_service: stream append failed",
				slog.String("evaluation_id", eval.ID),
				slog.String("error", appErr.Error()),
			)
		}
	}

	return eval
}

// SetLatest replaces the held Evaluation without running the engine. Monitor
// mode uses it to mirror batches received over the bus.
func (s *EvalService) SetLatest(eval domain.Evaluation) {
	s.latest.Store(&eval)
}

// Latest returns the most recent Evaluation and whether any cycle has
// completed yet.
func (s *EvalService) Latest() (domain.Evaluation, bool) {
	if p := s.latest.Load(); p != nil {
		return *p, true
	}
	return domain.Evaluation{}, false
}

// Filter applies f to the latest evaluation's opportunities and returns the
// result in presentation order. With no completed evaluation it returns an
// empty slice, never nil.
func (s *EvalService) Filter(f domain.OpportunityFilter) []domain.Opportunity {
	eval, ok := s.Latest()
	if !ok {
		return []domain.Opportunity{}
	}

	out := make([]domain.Opportunity, 0, len(eval.Opportunities))
	for _, opp := range eval.Opportunities {
		if f.Signal != "" && !strings.EqualFold(string(opp.Signal), f.Signal) {
			continue
		}
		if f.Event != "" && opp.Event != f.Event {
			continue
		}
		if f.MinProfitPct != nil && opp.Strategy.ProfitPct < *f.MinProfitPct {
			continue
		}
		out = append(out, opp)
	}

	switch strings.ToLower(f.Sort) {
	case "apy":
		// Opportunities with no settlement date carry a nil APY; they rank
		// after every dated one rather than pretending to be zero.
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].APY, out[j].APY
			switch {
			case a == nil && b == nil:
				return out[i].Strategy.ProfitPct > out[j].Strategy.ProfitPct
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return *a > *b
			}
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Strategy.ProfitPct > out[j].Strategy.ProfitPct
		})
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
