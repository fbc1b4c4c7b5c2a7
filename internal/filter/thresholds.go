package filter

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pump-signals/internal/domain"
)

// Thresholds are the configured entry criteria for new signals.
type Thresholds struct {
	MinLiquidity   decimal.Decimal // SOL
	MinProgressPct float64
	MaxProgressPct float64
}

// DefaultThresholds matches the curve window where migrations are still
// reachable but the entry is not yet crowded.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinLiquidity:   decimal.NewFromInt(5),
		MinProgressPct: 0,
		MaxProgressPct: 100,
	}
}

// DefaultChain is the standard ordering: cheap liquidity check first, then
// the progress window.
func DefaultChain(th Thresholds) *Chain {
	return NewChain(
		LiquidityFilter{Min: th.MinLiquidity},
		ProgressRangeFilter{Min: th.MinProgressPct, Max: th.MaxProgressPct},
	)
}

// LiquidityFilter rejects events whose liquidity snapshot is below Min.
// TokenCreated events are judged on initial liquidity, CurveProgress on
// current curve liquidity; other kinds pass through.
type LiquidityFilter struct {
	Min decimal.Decimal
}

func (LiquidityFilter) Name() string { return "liquidity" }

func (f LiquidityFilter) Evaluate(ev domain.Event) Result {
	var liquidity decimal.Decimal
	switch e := ev.(type) {
	case domain.TokenCreatedEvent:
		liquidity = e.InitialLiquidity
	case domain.CurveProgressEvent:
		liquidity = e.Liquidity
	default:
		return Accept()
	}
	if liquidity.LessThan(f.Min) {
		return Reject(fmt.Sprintf("liquidity_too_low:%s<%s", liquidity, f.Min))
	}
	return Accept()
}

// ProgressRangeFilter rejects CurveProgress events outside [Min, Max].
// Other event kinds pass through.
type ProgressRangeFilter struct {
	Min float64
	Max float64
}

func (ProgressRangeFilter) Name() string { return "progress_range" }

func (f ProgressRangeFilter) Evaluate(ev domain.Event) Result {
	prog, ok := ev.(domain.CurveProgressEvent)
	if !ok {
		return Accept()
	}
	if prog.ProgressPct < f.Min {
		return Reject(fmt.Sprintf("curve_progress_too_low:%.2f<%.2f", prog.ProgressPct, f.Min))
	}
	if prog.ProgressPct > f.Max {
		return Reject(fmt.Sprintf("curve_progress_too_high:%.2f>%.2f", prog.ProgressPct, f.Max))
	}
	return Accept()
}
