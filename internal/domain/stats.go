package domain

// PnLSummary aggregates simulated PnL over terminal migrated signals.
// Pointer fields are nil when no migrated signal carries a PnL yet.
type PnLSummary struct {
	Completed  int
	MeanPct    *float64
	MinPct     *float64
	MaxPct     *float64
	Winners    int
	Losers     int
	WinRatePct *float64
}

// SignalStats is the aggregate query result exposed by the signal store.
type SignalStats struct {
	Total    int
	ByStatus map[SignalStatus]int
	PnL      PnLSummary
}
