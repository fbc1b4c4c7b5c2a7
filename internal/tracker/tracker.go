// Package tracker drives the signal lifecycle from Pending to its terminal
// state and keeps simulated PnL current while signals are open.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pump-signals/internal/domain"
	"pump-signals/internal/storage"
)

// DefaultExpiry is how long a signal may stay pending before the sweep
// marks it expired.
const DefaultExpiry = 24 * time.Hour

// Tracker applies lifecycle transitions through the signal store. All
// mutations run inside the store's read-modify-write serialization, so
// concurrent batches cannot lose updates.
type Tracker struct {
	store  storage.SignalStore
	expiry time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

func New(store storage.SignalStore, expiry time.Duration, log zerolog.Logger) *Tracker {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Tracker{store: store, expiry: expiry, log: log, now: time.Now}
}

// HandleCurveProgress refreshes unrealized PnL on every pending signal for
// the event's token. Only a directly observed unit price is used; estimates
// never feed unrealized PnL. Returns the signals it touched.
func (t *Tracker) HandleCurveProgress(ctx context.Context, ev domain.CurveProgressEvent) ([]*domain.Signal, error) {
	if !ev.UnitPrice.IsPositive() {
		return nil, nil
	}
	now := t.now().UTC()

	updated, err := t.store.UpdateAllPending(ctx, ev.Token(), func(s *domain.Signal) error {
		s.ApplySimulatedExit(ev.UnitPrice, domain.ExitPriceObserved, now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating pending signals for %s: %w", ev.Token(), err)
	}

	for _, s := range updated {
		if s.Outcome.SimulatedPnLPct != nil {
			t.log.Debug().
				Str("signal_id", s.ID).
				Str("token", s.SubjectToken).
				Float64("unrealized_pnl_pct", *s.Outcome.SimulatedPnLPct).
				Msg("signal price updated")
		}
	}
	return updated, nil
}

// HandleMigration closes the newest pending signal for the event's token.
// The exit price is estimated from the final liquidity over the fixed
// supply and tagged as an estimate. A migration for a token with no pending
// signal, including one already migrated, is a no-op.
func (t *Tracker) HandleMigration(ctx context.Context, ev domain.MigrationEvent) (*domain.Signal, error) {
	now := t.now().UTC()
	migrationTime := ev.When()

	sig, err := t.store.UpdateLatestPending(ctx, ev.Token(), func(s *domain.Signal) error {
		s.Status = domain.StatusMigrated
		s.Outcome.Migrated = true
		mt := migrationTime
		s.Outcome.MigrationTime = &mt

		if ev.FinalLiquidity.IsPositive() {
			exit := ev.FinalLiquidity.DivRound(domain.TotalTokenSupply, 18)
			s.ApplySimulatedExit(exit, domain.ExitPriceEstimated, now)
		}
		s.Touch(now)
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			t.log.Debug().Str("token", ev.Token()).Msg("migration without pending signal")
			return nil, nil
		}
		return nil, fmt.Errorf("migrating signal for %s: %w", ev.Token(), err)
	}

	evt := t.log.Info().Str("signal_id", sig.ID).Str("token", sig.SubjectToken)
	if sig.Outcome.SimulatedPnLPct != nil {
		evt = evt.Float64("pnl_pct", *sig.Outcome.SimulatedPnLPct)
	}
	evt.Msg("signal migrated")
	return sig, nil
}

// ExpireStale marks every pending signal older than the expiry window as
// expired and returns how many it transitioned.
func (t *Tracker) ExpireStale(ctx context.Context) (int, error) {
	now := t.now().UTC()
	cutoff := now.Add(-t.expiry)

	pending, err := t.store.GetByStatus(ctx, domain.StatusPending, 0)
	if err != nil {
		return 0, fmt.Errorf("listing pending signals: %w", err)
	}

	expired := 0
	for _, s := range pending {
		if !s.SignalTime.Before(cutoff) {
			continue
		}
		err := t.store.Update(ctx, s.ID, func(stored *domain.Signal) error {
			if stored.Status != domain.StatusPending {
				return nil
			}
			stored.Status = domain.StatusExpired
			stored.Touch(now)
			return nil
		})
		if err != nil {
			return expired, fmt.Errorf("expiring signal %s: %w", s.ID, err)
		}
		expired++
		t.log.Debug().
			Str("signal_id", s.ID).
			Str("token", s.SubjectToken).
			Float64("age_hours", now.Sub(s.SignalTime).Hours()).
			Msg("signal expired")
	}

	if expired > 0 {
		t.log.Info().Int("count", expired).Msg("signals expired")
	}
	return expired, nil
}

// MarkFailed fails every pending signal for token, forcing the simulated
// loss to the full buy amount. Returns the signals it transitioned.
func (t *Tracker) MarkFailed(ctx context.Context, token, reason string) ([]*domain.Signal, error) {
	now := t.now().UTC()

	updated, err := t.store.UpdateAllPending(ctx, token, func(s *domain.Signal) error {
		s.Status = domain.StatusFailed
		pct := -100.0
		s.Outcome.SimulatedPnLPct = &pct
		s.Outcome.SimulatedPnLAmount = s.SimulatedBuyAmount.Neg()
		s.Touch(now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failing signals for %s: %w", token, err)
	}

	for _, s := range updated {
		t.log.Info().
			Str("signal_id", s.ID).
			Str("token", token).
			Str("reason", reason).
			Msg("signal marked failed")
	}
	return updated, nil
}
