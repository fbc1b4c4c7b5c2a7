package pipeline

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pump-signals/internal/classifier"
	"pump-signals/internal/dedup"
	"pump-signals/internal/domain"
	"pump-signals/internal/filter"
	"pump-signals/internal/signalgen"
	"pump-signals/internal/storage/memory"
	"pump-signals/internal/tracker"
)

// Valid 32-byte base58 addresses carrying the pump suffix.
const (
	mintA = "5yLVLPAftrteKiVQ29TsiXDyoP13svKYLKGFBgz6pump"
	mintB = "Doke4e7mPhbmV4rhSMYjtiucgeeu7QoB2UkRWEudpump"
)

type recordingNotifier struct {
	mu       sync.Mutex
	created  []*domain.Signal
	migrated []*domain.Signal
}

func (n *recordingNotifier) SignalCreated(sig *domain.Signal) {
	n.mu.Lock()
	n.created = append(n.created, sig)
	n.mu.Unlock()
}

func (n *recordingNotifier) SignalMigrated(sig *domain.Signal) {
	n.mu.Lock()
	n.migrated = append(n.migrated, sig)
	n.mu.Unlock()
}

func newTestProcessor(t *testing.T) (*Processor, *memory.SignalStore, *recordingNotifier) {
	t.Helper()
	log := zerolog.Nop()
	store := memory.NewSignalStore()
	notifier := &recordingNotifier{}

	proc := NewProcessor(Config{
		Dedup:      dedup.New(0),
		Classifier: classifier.New(log),
		Chain: filter.DefaultChain(filter.Thresholds{
			MinLiquidity:   decimal.NewFromInt(5),
			MinProgressPct: 0,
			MaxProgressPct: 100,
		}),
		Generator: signalgen.New(store, decimal.RequireFromString("0.5"), log),
		Tracker:   tracker.New(store, 0, log),
		Notifier:  notifier,
		Logger:    log,
	})
	return proc, store, notifier
}

// swapTx yields a CurveProgress event with liquidity 10 SOL, traded amount
// 1000 and unit price 0.001: twenty 1 SOL legs sum to 20 SOL, halved for
// the double-counted swap sides, with the largest single leg at 1 SOL.
func swapTx(sig, mint string) classifier.RawTransaction {
	tx := classifier.RawTransaction{
		Signature:      sig,
		Source:         classifier.SourcePumpFun,
		Type:           "SWAP",
		Slot:           100,
		Timestamp:      1700000000,
		TokenTransfers: []classifier.TokenTransfer{{Mint: mint, TokenAmount: 1000}},
	}
	for i := 0; i < 20; i++ {
		tx.NativeTransfers = append(tx.NativeTransfers, classifier.NativeTransfer{Amount: 1_000_000_000})
	}
	return tx
}

func migrateTx(sig, mint string) classifier.RawTransaction {
	return classifier.RawTransaction{
		Signature:      sig,
		Source:         classifier.SourcePumpFun,
		Type:           "MIGRATE",
		Slot:           200,
		Timestamp:      1700003600,
		TokenTransfers: []classifier.TokenTransfer{{Mint: mint, TokenAmount: 1_000_000}},
		NativeTransfers: []classifier.NativeTransfer{
			{Amount: 20_000_000_000},
		},
	}
}

func TestProcessBatch_EndToEnd(t *testing.T) {
	ctx := context.Background()
	proc, store, notifier := newTestProcessor(t)

	sum := proc.ProcessBatch(ctx, []classifier.RawTransaction{swapTx("tx1", mintA)})
	if sum.Processed != 1 || sum.Events != 1 || sum.Signals != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	signals, err := store.GetByToken(ctx, mintA)
	if err != nil || len(signals) != 1 {
		t.Fatalf("stored %d signals err=%v", len(signals), err)
	}
	sig := signals[0]
	if sig.Status != domain.StatusPending {
		t.Errorf("status = %s, want pending", sig.Status)
	}
	if !sig.EntryPrice.Equal(decimal.RequireFromString("0.001")) {
		t.Errorf("entry price = %s, want 0.001", sig.EntryPrice)
	}
	if !sig.EntryLiquidity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("entry liquidity = %s, want 10", sig.EntryLiquidity)
	}
	if len(notifier.created) != 1 {
		t.Errorf("created notifications = %d, want 1", len(notifier.created))
	}

	// Migration closes the signal with an exit estimated from 20 SOL over
	// the fixed supply.
	sum = proc.ProcessBatch(ctx, []classifier.RawTransaction{migrateTx("tx2", mintA)})
	if sum.Migrations != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	closed, err := store.GetByID(ctx, sig.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if closed.Status != domain.StatusMigrated || !closed.Outcome.Migrated {
		t.Fatalf("status = %s migrated = %v", closed.Status, closed.Outcome.Migrated)
	}
	if closed.Outcome.ExitPriceSource != domain.ExitPriceEstimated {
		t.Errorf("exit source = %q, want estimated", closed.Outcome.ExitPriceSource)
	}
	wantExit := decimal.RequireFromString("0.00000002")
	if !closed.Outcome.ExitReferencePrice.Equal(wantExit) {
		t.Errorf("exit price = %s, want %s", closed.Outcome.ExitReferencePrice, wantExit)
	}
	if closed.Outcome.SimulatedPnLPct == nil {
		t.Fatal("expected pnl")
	}
	// 500 tokens at 2e-8 exit: essentially the full buy is lost.
	if got := *closed.Outcome.SimulatedPnLPct; math.Abs(got-(-99.998)) > 0.001 {
		t.Errorf("pnl pct = %v, want about -99.998", got)
	}
	if len(notifier.migrated) != 1 {
		t.Errorf("migrated notifications = %d, want 1", len(notifier.migrated))
	}
}

func TestProcessBatch_DuplicateSignatures(t *testing.T) {
	ctx := context.Background()
	proc, store, _ := newTestProcessor(t)

	// Same signature twice in one batch, then again in a later batch.
	sum := proc.ProcessBatch(ctx, []classifier.RawTransaction{
		swapTx("tx1", mintA),
		swapTx("tx1", mintA),
	})
	if sum.Processed != 1 || sum.Duplicates != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	sum = proc.ProcessBatch(ctx, []classifier.RawTransaction{swapTx("tx1", mintA)})
	if sum.Duplicates != 1 || sum.Processed != 0 {
		t.Fatalf("cross-batch summary = %+v", sum)
	}

	signals, _ := store.GetByToken(ctx, mintA)
	if len(signals) != 1 {
		t.Fatalf("stored %d signals, want 1", len(signals))
	}
}

func TestProcessBatch_FilterRejection(t *testing.T) {
	ctx := context.Background()
	proc, store, _ := newTestProcessor(t)

	// Two 1 SOL legs: liquidity 1 SOL, below the configured minimum of 5.
	tx := classifier.RawTransaction{
		Signature:      "tx-low",
		Source:         classifier.SourcePumpFun,
		Type:           "SWAP",
		TokenTransfers: []classifier.TokenTransfer{{Mint: mintA, TokenAmount: 1000}},
		NativeTransfers: []classifier.NativeTransfer{
			{Amount: 1_000_000_000},
			{Amount: -1_000_000_000},
		},
	}

	sum := proc.ProcessBatch(ctx, []classifier.RawTransaction{tx})
	if sum.Events != 1 || sum.Rejected != 1 || sum.Signals != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if signals, _ := store.GetByToken(ctx, mintA); len(signals) != 0 {
		t.Fatalf("stored %d signals, want 0", len(signals))
	}
}

func TestProcessBatch_MalformedItemDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	proc, store, _ := newTestProcessor(t)

	bad := classifier.RawTransaction{
		Signature:      "tx-bad",
		Source:         classifier.SourcePumpFun,
		Type:           "SWAP",
		TokenTransfers: []classifier.TokenTransfer{{Mint: mintA, TokenAmount: math.NaN()}},
	}

	sum := proc.ProcessBatch(ctx, []classifier.RawTransaction{
		bad,
		swapTx("tx-good", mintB),
	})
	if sum.Processed != 2 || sum.Signals != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if signals, _ := store.GetByToken(ctx, mintB); len(signals) != 1 {
		t.Fatalf("stored %d signals for healthy item, want 1", len(signals))
	}
}

func TestProcessBatch_MigrationWithoutSignalIsNoOp(t *testing.T) {
	ctx := context.Background()
	proc, _, notifier := newTestProcessor(t)

	sum := proc.ProcessBatch(ctx, []classifier.RawTransaction{migrateTx("tx1", mintA)})
	if sum.Events != 1 || sum.Migrations != 0 || sum.Errors != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(notifier.migrated) != 0 {
		t.Error("unexpected migration notification")
	}
}

func TestProcessBatch_IrrelevantTransactions(t *testing.T) {
	ctx := context.Background()
	proc, _, _ := newTestProcessor(t)

	sum := proc.ProcessBatch(ctx, []classifier.RawTransaction{
		{Signature: "tx1", Source: "RAYDIUM", Type: "SWAP"},
		{Signature: "tx2", Source: classifier.SourcePumpFun, Type: "WITHDRAW"},
	})
	if sum.Processed != 2 || sum.Events != 0 || sum.Signals != 0 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestProcessBatch_ConcurrentBatches(t *testing.T) {
	ctx := context.Background()
	proc, store, _ := newTestProcessor(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			proc.ProcessBatch(ctx, []classifier.RawTransaction{
				swapTx("tx-shared", mintA),
			})
		}()
	}
	wg.Wait()

	// The shared signature is processed at most once; near-simultaneous
	// deliveries for the same token never yield a second signal.
	signals, _ := store.GetByToken(ctx, mintA)
	if len(signals) != 1 {
		t.Fatalf("stored %d signals, want 1", len(signals))
	}
}
