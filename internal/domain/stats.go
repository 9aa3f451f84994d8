package domain

// BatchStats summarizes one evaluation cycle across every configured market.
// TotalMarkets counts (event, outcome) pairs evaluated, including those that
// produced no opportunity. Opportunities counts only strategies with positive
// profit; the spread aggregates run over every chosen strategy.
type BatchStats struct {
	TotalMarkets  int
	Opportunities int
	HotCount      int
	GoCount       int
	AvgSpreadPct  float64
	MaxSpreadPct  float64
}
