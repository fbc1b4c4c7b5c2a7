package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TotalTokenSupply is the uniform supply assumed for every curve token,
// used to estimate prices from market cap or migrated liquidity. Estimates
// derived from it are tagged ExitPriceEstimated in the outcome so they are
// never mistaken for observed prices.
var TotalTokenSupply = decimal.NewFromInt(1_000_000_000)

// SignalStatus is the lifecycle state of a signal.
type SignalStatus string

const (
	StatusPending  SignalStatus = "pending"
	StatusMigrated SignalStatus = "migrated"
	StatusFailed   SignalStatus = "failed"
	StatusExpired  SignalStatus = "expired"
)

// Terminal reports whether the status permits no further transition.
func (s SignalStatus) Terminal() bool {
	return s == StatusMigrated || s == StatusFailed || s == StatusExpired
}

// ExitPriceSource records how an exit reference price was obtained.
type ExitPriceSource string

const (
	// ExitPriceObserved means the price came directly from swap data.
	ExitPriceObserved ExitPriceSource = "observed"
	// ExitPriceEstimated means the price was derived from liquidity and
	// the fixed supply constant.
	ExitPriceEstimated ExitPriceSource = "estimated"
)

// Outcome is the mutable result sub-record of a signal. Fields are filled
// monotonically; a set PnL is only ever overwritten by a newer observation
// for the same signal, never cleared.
type Outcome struct {
	Migrated           bool            `json:"migrated"`
	MigrationTime      *time.Time      `json:"migration_time,omitempty"`
	ExitReferencePrice decimal.Decimal `json:"exit_reference_price,omitempty"`
	ExitPriceSource    ExitPriceSource `json:"exit_price_source,omitempty"`

	SimulatedEntryAmount decimal.Decimal `json:"simulated_entry_sol,omitempty"`
	SimulatedExitAmount  decimal.Decimal `json:"simulated_exit_sol,omitempty"`
	SimulatedPnLPct      *float64        `json:"simulated_pnl_pct,omitempty"`
	SimulatedPnLAmount   decimal.Decimal `json:"simulated_pnl_sol,omitempty"`
}

// Signal is a recorded synthetic trade opportunity, tracked for outcome
// analysis without real execution. It is created only by the signal
// generator and mutated only through the signal store.
type Signal struct {
	ID             string
	SubjectToken   string
	TokenName      string
	TokenSymbol    string
	CreatorAddress string

	TriggerTxSignature string
	SignalTime         time.Time

	// Entry snapshot, copied from the triggering event.
	EntryProgressPct float64
	EntryLiquidity   decimal.Decimal
	EntryMarketCap   decimal.Decimal // zero when unknown
	EntryPrice       decimal.Decimal // zero when unknown

	SimulatedBuyAmount decimal.Decimal // SOL, fixed at creation

	Status  SignalStatus
	Outcome Outcome

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApplySimulatedExit computes the paper-trade PnL against the entry price
// and records it in the outcome. It is a no-op when the entry price is
// unset or zero.
func (s *Signal) ApplySimulatedExit(exitPrice decimal.Decimal, source ExitPriceSource, now time.Time) bool {
	pnl, ok := ComputeSimulatedPnL(s.SimulatedBuyAmount, s.EntryPrice, exitPrice)
	if !ok {
		return false
	}

	s.Outcome.ExitReferencePrice = exitPrice
	s.Outcome.ExitPriceSource = source
	s.Outcome.SimulatedEntryAmount = pnl.Entry
	s.Outcome.SimulatedExitAmount = pnl.Exit
	s.Outcome.SimulatedPnLAmount = pnl.Amount
	pct := pnl.Pct
	s.Outcome.SimulatedPnLPct = &pct
	s.Touch(now)
	return true
}

// Touch advances UpdatedAt, keeping it monotonically non-decreasing.
func (s *Signal) Touch(now time.Time) {
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}
}

// Clone returns a deep copy so callers never share mutable state with the
// store.
func (s *Signal) Clone() *Signal {
	c := *s
	if s.Outcome.MigrationTime != nil {
		t := *s.Outcome.MigrationTime
		c.Outcome.MigrationTime = &t
	}
	if s.Outcome.SimulatedPnLPct != nil {
		p := *s.Outcome.SimulatedPnLPct
		c.Outcome.SimulatedPnLPct = &p
	}
	return &c
}
