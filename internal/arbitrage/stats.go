package arbitrage

import (
	"math"

	"github.com/hedgescan/hedgescan/internal/domain"
)

// ComputeStats aggregates one evaluation's opportunities. totalMarkets is the
// configured outcome count, so markets that produced no opportunity still
// count toward it. An empty batch yields all-zero statistics.
func ComputeStats(opps []domain.Opportunity, totalMarkets int) domain.BatchStats {
	stats := domain.BatchStats{TotalMarkets: totalMarkets}

	var spreadSum float64
	for _, o := range opps {
		if o.Strategy.ProfitPct > 0 {
			stats.Opportunities++
		}
		switch o.Signal {
		case domain.SignalHot:
			stats.HotCount++
		case domain.SignalGo:
			stats.GoCount++
		}

		spread := math.Abs(o.Strategy.SpreadPct())
		spreadSum += spread
		if spread > stats.MaxSpreadPct {
			stats.MaxSpreadPct = spread
		}
	}
	if len(opps) > 0 {
		stats.AvgSpreadPct = spreadSum / float64(len(opps))
	}
	return stats
}
