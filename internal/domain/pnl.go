package domain

import "github.com/shopspring/decimal"

// SimulatedPnL is the result of the paper-trade PnL law.
type SimulatedPnL struct {
	Entry  decimal.Decimal // amount spent
	Exit   decimal.Decimal // value at exit price
	Amount decimal.Decimal // Exit - Entry
	Pct    float64         // Amount / Entry * 100
}

// ComputeSimulatedPnL applies the PnL law:
//
//	tokens_bought = buy_amount / entry_price
//	exit_value    = tokens_bought * exit_price
//	pnl_amount    = exit_value - buy_amount
//	pnl_pct       = pnl_amount / buy_amount * 100
//
// Returns ok=false when entry price is unset/zero or buy amount is not
// positive; callers must leave outcome fields untouched in that case.
func ComputeSimulatedPnL(buyAmount, entryPrice, exitPrice decimal.Decimal) (SimulatedPnL, bool) {
	if entryPrice.IsZero() || !buyAmount.IsPositive() {
		return SimulatedPnL{}, false
	}

	tokensBought := buyAmount.Div(entryPrice)
	exitValue := tokensBought.Mul(exitPrice)
	pnlAmount := exitValue.Sub(buyAmount)
	pct, _ := pnlAmount.Div(buyAmount).Mul(decimal.NewFromInt(100)).Float64()

	return SimulatedPnL{
		Entry:  buyAmount,
		Exit:   exitValue,
		Amount: pnlAmount,
		Pct:    pct,
	}, true
}
