package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pump-signals/internal/domain"
	"pump-signals/internal/storage"
)

func newSignal(id, token string, status domain.SignalStatus, signalTime time.Time) *domain.Signal {
	return &domain.Signal{
		ID:                 id,
		SubjectToken:       token,
		TriggerTxSignature: "sig-" + id,
		SignalTime:         signalTime,
		EntryLiquidity:     decimal.NewFromInt(10),
		SimulatedBuyAmount: decimal.RequireFromString("0.5"),
		Status:             status,
		CreatedAt:          signalTime,
		UpdatedAt:          signalTime,
	}
}

func TestSignalStore_SaveAndGet(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()
	now := time.Now().UTC()

	sig := newSignal("s1", "tokApump", domain.StatusPending, now)
	if err := store.Save(ctx, sig); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.SubjectToken != "tokApump" {
		t.Errorf("SubjectToken mismatch: got %s", got.SubjectToken)
	}

	// Upsert by id is idempotent, not duplicating.
	sig.Status = domain.StatusMigrated
	if err := store.Save(ctx, sig); err != nil {
		t.Fatalf("re-Save failed: %v", err)
	}
	got, _ = store.GetByID(ctx, "s1")
	if got.Status != domain.StatusMigrated {
		t.Errorf("upsert did not replace record: status %s", got.Status)
	}
}

func TestSignalStore_InvalidInput(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	if err := store.Save(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if err := store.Save(ctx, &domain.Signal{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty id, got %v", err)
	}
}

func TestSignalStore_NotFound(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Update(ctx, "missing", func(*domain.Signal) error { return nil }); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound from Update, got %v", err)
	}
}

func TestSignalStore_GetByTokenOrdering(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()
	base := time.Now().UTC()

	store.Save(ctx, newSignal("old", "tok", domain.StatusPending, base.Add(-2*time.Hour)))
	store.Save(ctx, newSignal("new", "tok", domain.StatusPending, base))
	store.Save(ctx, newSignal("other", "elsewhere", domain.StatusPending, base))

	got, err := store.GetByToken(ctx, "tok")
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(got))
	}
	if got[0].ID != "new" || got[1].ID != "old" {
		t.Errorf("expected recency DESC order, got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestSignalStore_GetByStatusLimitAndOrder(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()
	base := time.Now().UTC()

	store.Save(ctx, newSignal("a", "t1", domain.StatusPending, base.Add(-3*time.Hour)))
	store.Save(ctx, newSignal("b", "t2", domain.StatusPending, base.Add(-1*time.Hour)))
	store.Save(ctx, newSignal("c", "t3", domain.StatusExpired, base))

	got, err := store.GetByStatus(ctx, domain.StatusPending, 1)
	if err != nil {
		t.Fatalf("GetByStatus failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("expected oldest pending first, got %+v", got)
	}
}

func TestSignalStore_GetRecentWindow(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()
	base := time.Now().UTC()

	store.Save(ctx, newSignal("in", "t1", domain.StatusPending, base.Add(-1*time.Hour)))
	store.Save(ctx, newSignal("out", "t2", domain.StatusPending, base.Add(-30*time.Hour)))

	got, err := store.GetRecent(ctx, base.Add(-24*time.Hour), 0)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "in" {
		t.Errorf("window filter wrong: %+v", got)
	}
}

func TestSignalStore_UpdateLatestPending(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()
	base := time.Now().UTC()

	store.Save(ctx, newSignal("older", "tok", domain.StatusPending, base.Add(-time.Hour)))
	store.Save(ctx, newSignal("newest", "tok", domain.StatusPending, base))

	updated, err := store.UpdateLatestPending(ctx, "tok", func(s *domain.Signal) error {
		s.Status = domain.StatusMigrated
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateLatestPending failed: %v", err)
	}
	if updated.ID != "newest" {
		t.Errorf("expected newest pending to win, got %s", updated.ID)
	}

	// The older pending signal is untouched.
	older, _ := store.GetByID(ctx, "older")
	if older.Status != domain.StatusPending {
		t.Errorf("older signal mutated: %s", older.Status)
	}

	// No pending left after the newest migrated: second call targets "older".
	updated, err = store.UpdateLatestPending(ctx, "tok", func(s *domain.Signal) error {
		s.Status = domain.StatusExpired
		return nil
	})
	if err != nil {
		t.Fatalf("second UpdateLatestPending failed: %v", err)
	}
	if updated.ID != "older" {
		t.Errorf("expected older, got %s", updated.ID)
	}

	if _, err := store.UpdateLatestPending(ctx, "tok", func(*domain.Signal) error { return nil }); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound with no pending signals, got %v", err)
	}
}

func TestSignalStore_UpdateFnErrorAborts(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	store.Save(ctx, newSignal("s1", "tok", domain.StatusPending, time.Now().UTC()))

	boom := errors.New("boom")
	err := store.Update(ctx, "s1", func(s *domain.Signal) error {
		s.Status = domain.StatusFailed
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error surfaced, got %v", err)
	}

	got, _ := store.GetByID(ctx, "s1")
	if got.Status != domain.StatusPending {
		t.Error("aborted update must not persist")
	}
}

func TestSignalStore_UpdateAllPending(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()
	base := time.Now().UTC()

	store.Save(ctx, newSignal("p1", "tok", domain.StatusPending, base.Add(-time.Hour)))
	store.Save(ctx, newSignal("p2", "tok", domain.StatusPending, base))
	store.Save(ctx, newSignal("done", "tok", domain.StatusMigrated, base))

	updated, err := store.UpdateAllPending(ctx, "tok", func(s *domain.Signal) error {
		s.Status = domain.StatusFailed
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateAllPending failed: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updated))
	}

	done, _ := store.GetByID(ctx, "done")
	if done.Status != domain.StatusMigrated {
		t.Error("terminal signal mutated by UpdateAllPending")
	}
}

func TestSignalStore_UpdateAllPendingRollsBackOnError(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()
	base := time.Now().UTC()

	store.Save(ctx, newSignal("p1", "tok", domain.StatusPending, base.Add(-time.Hour)))
	store.Save(ctx, newSignal("p2", "tok", domain.StatusPending, base))

	// Failing mid-way must leave every signal untouched, matching the
	// Postgres transaction rollback.
	calls := 0
	_, err := store.UpdateAllPending(ctx, "tok", func(s *domain.Signal) error {
		calls++
		if calls == 2 {
			return errors.New("mutation rejected")
		}
		s.Status = domain.StatusFailed
		return nil
	})
	if err == nil {
		t.Fatal("expected error from UpdateAllPending")
	}

	for _, id := range []string{"p1", "p2"} {
		got, getErr := store.GetByID(ctx, id)
		if getErr != nil {
			t.Fatalf("GetByID %s: %v", id, getErr)
		}
		if got.Status != domain.StatusPending {
			t.Errorf("%s status = %s, want pending after aborted update", id, got.Status)
		}
	}
}

func TestSignalStore_Stats(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()
	base := time.Now().UTC()

	win := newSignal("w", "t1", domain.StatusMigrated, base)
	winPct := 50.0
	win.Outcome.SimulatedPnLPct = &winPct

	loss := newSignal("l", "t2", domain.StatusMigrated, base)
	lossPct := -30.0
	loss.Outcome.SimulatedPnLPct = &lossPct

	// Migrated without PnL does not join the summary.
	noPnl := newSignal("n", "t3", domain.StatusMigrated, base)

	store.Save(ctx, win)
	store.Save(ctx, loss)
	store.Save(ctx, noPnl)
	store.Save(ctx, newSignal("p", "t4", domain.StatusPending, base))

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("Total mismatch: got %d", stats.Total)
	}
	if stats.ByStatus[domain.StatusMigrated] != 3 || stats.ByStatus[domain.StatusPending] != 1 {
		t.Errorf("ByStatus mismatch: %+v", stats.ByStatus)
	}
	if stats.PnL.Completed != 2 || stats.PnL.Winners != 1 || stats.PnL.Losers != 1 {
		t.Errorf("PnL counts mismatch: %+v", stats.PnL)
	}
	if stats.PnL.MeanPct == nil || *stats.PnL.MeanPct != 10.0 {
		t.Errorf("MeanPct mismatch: %v", stats.PnL.MeanPct)
	}
	if stats.PnL.MinPct == nil || *stats.PnL.MinPct != -30.0 {
		t.Errorf("MinPct mismatch: %v", stats.PnL.MinPct)
	}
	if stats.PnL.MaxPct == nil || *stats.PnL.MaxPct != 50.0 {
		t.Errorf("MaxPct mismatch: %v", stats.PnL.MaxPct)
	}
	if stats.PnL.WinRatePct == nil || *stats.PnL.WinRatePct != 50.0 {
		t.Errorf("WinRatePct mismatch: %v", stats.PnL.WinRatePct)
	}
}

func TestSignalStore_CallersNeverShareState(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	sig := newSignal("s1", "tok", domain.StatusPending, time.Now().UTC())
	store.Save(ctx, sig)

	// Mutating the caller's copy must not leak into the store.
	sig.Status = domain.StatusFailed
	got, _ := store.GetByID(ctx, "s1")
	if got.Status != domain.StatusPending {
		t.Error("store shares state with caller after Save")
	}

	got.Status = domain.StatusExpired
	again, _ := store.GetByID(ctx, "s1")
	if again.Status != domain.StatusPending {
		t.Error("store shares state with caller after Get")
	}
}
