// Package signalgen converts accepted events into stored signals, enforcing
// at most one active signal per subject token.
package signalgen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pump-signals/internal/domain"
	"pump-signals/internal/storage"
)

// Generator creates signals from qualifying events. The in-memory signaled
// set is the fast path; the store is also consulted for an existing pending
// signal so the one-per-token guarantee survives restarts.
type Generator struct {
	store     storage.SignalStore
	buyAmount decimal.Decimal
	log       zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	signaled map[string]struct{}
}

func New(store storage.SignalStore, buyAmount decimal.Decimal, log zerolog.Logger) *Generator {
	return &Generator{
		store:     store,
		buyAmount: buyAmount,
		log:       log,
		now:       time.Now,
		signaled:  make(map[string]struct{}),
	}
}

// Generate builds and persists a signal for ev, or returns (nil, nil) when
// the token already has one. Only TokenCreated and CurveProgress events
// produce signals; the caller is expected to have run the filter chain.
func (g *Generator) Generate(ctx context.Context, ev domain.Event) (*domain.Signal, error) {
	token := ev.Token()

	// The token is reserved before any store work so that concurrent events
	// for the same token cannot both reach Save. A failed attempt releases
	// the reservation; whoever holds it opts everyone else out.
	if !g.reserve(token) {
		g.log.Debug().Str("token", token).Msg("signal skipped, token already signaled")
		return nil, nil
	}

	if pending, err := g.hasPending(ctx, token); err != nil {
		g.release(token)
		return nil, fmt.Errorf("checking pending signals for %s: %w", token, err)
	} else if pending {
		// Reservation kept: the store already holds a pending signal.
		g.log.Debug().Str("token", token).Msg("signal skipped, pending signal exists in store")
		return nil, nil
	}

	sig := g.build(ev)
	if sig == nil {
		g.release(token)
		return nil, nil
	}

	if err := g.store.Save(ctx, sig); err != nil {
		g.release(token)
		return nil, fmt.Errorf("saving signal for %s: %w", token, err)
	}

	g.log.Info().
		Str("signal_id", sig.ID).
		Str("token", token).
		Str("trigger_tx", sig.TriggerTxSignature).
		Float64("entry_progress_pct", sig.EntryProgressPct).
		Str("entry_liquidity", sig.EntryLiquidity.String()).
		Str("entry_price", sig.EntryPrice.String()).
		Msg("signal generated")

	return sig, nil
}

// Reset clears the signaled set, allowing tokens to signal again. Intended
// for tests and operator-driven resets.
func (g *Generator) Reset() {
	g.mu.Lock()
	g.signaled = make(map[string]struct{})
	g.mu.Unlock()
}

// reserve claims token in the signaled set. Returns false when another
// caller already holds it.
func (g *Generator) reserve(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, dup := g.signaled[token]; dup {
		return false
	}
	g.signaled[token] = struct{}{}
	return true
}

func (g *Generator) release(token string) {
	g.mu.Lock()
	delete(g.signaled, token)
	g.mu.Unlock()
}

func (g *Generator) hasPending(ctx context.Context, token string) (bool, error) {
	existing, err := g.store.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, s := range existing {
		if s.Status == domain.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (g *Generator) build(ev domain.Event) *domain.Signal {
	now := g.now().UTC()
	sig := &domain.Signal{
		ID:                 uuid.NewString(),
		SubjectToken:       ev.Token(),
		TriggerTxSignature: ev.Signature(),
		SignalTime:         ev.When(),
		SimulatedBuyAmount: g.buyAmount,
		Status:             domain.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	switch e := ev.(type) {
	case domain.CurveProgressEvent:
		sig.EntryProgressPct = e.ProgressPct
		sig.EntryLiquidity = e.Liquidity
		sig.EntryMarketCap = e.MarketCap
		sig.EntryPrice = entryPrice(e)
	case domain.TokenCreatedEvent:
		sig.TokenName = e.TokenName
		sig.TokenSymbol = e.TokenSymbol
		sig.CreatorAddress = e.CreatorAddress
		sig.EntryLiquidity = e.InitialLiquidity
	default:
		return nil
	}
	return sig
}

// entryPrice prefers the directly observed unit price, then an estimate
// from market cap over the fixed supply. Zero means unset.
func entryPrice(e domain.CurveProgressEvent) decimal.Decimal {
	if e.UnitPrice.IsPositive() {
		return e.UnitPrice
	}
	if e.MarketCap.IsPositive() {
		return e.MarketCap.DivRound(domain.TotalTokenSupply, 18)
	}
	return decimal.Zero
}
