package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"pump-signals/internal/domain"
)

// SignalsOptions narrows the signal listing.
type SignalsOptions struct {
	Hours  int
	Limit  int
	Status string
	Token  string
}

// Signals prints recent signals as a table.
func (a *App) Signals(ctx context.Context, opts SignalsOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var signals []*domain.Signal
	switch {
	case opts.Token != "":
		signals, err = store.GetByToken(ctx, opts.Token)
	case opts.Status != "":
		signals, err = store.GetByStatus(ctx, domain.SignalStatus(opts.Status), opts.Limit)
	default:
		since := time.Now().UTC().Add(-time.Duration(opts.Hours) * time.Hour)
		signals, err = store.GetRecent(ctx, since, opts.Limit)
	}
	if err != nil {
		return err
	}
	if len(signals) == 0 {
		fmt.Fprintln(os.Stdout, "no signals found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tToken\tSymbol\tStatus\tEntry SOL\tEntry Price\tExit Price\tPnL%\tPnL SOL")

	for _, sig := range signals {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sig.SignalTime.UTC().Format(time.RFC3339),
			shortToken(sig.SubjectToken),
			sig.TokenSymbol,
			sig.Status,
			formatDecimal(sig.SimulatedBuyAmount, 4),
			formatDecimal(sig.EntryPrice, 12),
			formatExit(sig),
			formatPct(sig.Outcome.SimulatedPnLPct),
			formatDecimal(sig.Outcome.SimulatedPnLAmount, 4),
		)
	}

	writer.Flush()
	return nil
}

// Stats prints the aggregate signal statistics.
func (a *App) Stats(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Total signals\t%d\n", stats.Total)
	for _, status := range []domain.SignalStatus{
		domain.StatusPending, domain.StatusMigrated, domain.StatusFailed, domain.StatusExpired,
	} {
		fmt.Fprintf(writer, "  %s\t%d\n", status, stats.ByStatus[status])
	}
	fmt.Fprintf(writer, "Completed with PnL\t%d\n", stats.PnL.Completed)
	fmt.Fprintf(writer, "Winners / Losers\t%d / %d\n", stats.PnL.Winners, stats.PnL.Losers)
	fmt.Fprintf(writer, "Win rate\t%s\n", formatPct(stats.PnL.WinRatePct))
	fmt.Fprintf(writer, "Mean PnL\t%s\n", formatPct(stats.PnL.MeanPct))
	fmt.Fprintf(writer, "Best / Worst\t%s / %s\n", formatPct(stats.PnL.MaxPct), formatPct(stats.PnL.MinPct))
	writer.Flush()
	return nil
}

func shortToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:6] + ".." + token[len(token)-4:]
}

func formatDecimal(d decimal.Decimal, places int32) string {
	if d.IsZero() {
		return "-"
	}
	return d.Round(places).String()
}

func formatExit(sig *domain.Signal) string {
	if sig.Outcome.ExitReferencePrice.IsZero() {
		return "-"
	}
	s := formatDecimal(sig.Outcome.ExitReferencePrice, 12)
	if sig.Outcome.ExitPriceSource == domain.ExitPriceEstimated {
		s += "*"
	}
	return s
}

func formatPct(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", *p)
}
