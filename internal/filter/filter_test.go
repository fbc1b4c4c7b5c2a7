package filter

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"pump-signals/internal/domain"
)

func progressEvent(liquidity string, pct float64) domain.CurveProgressEvent {
	return domain.CurveProgressEvent{
		EventMeta: domain.EventMeta{
			TxSignature:  "sig",
			SubjectToken: "token",
		},
		ProgressPct: pct,
		Liquidity:   decimal.RequireFromString(liquidity),
	}
}

func TestLiquidityFilter(t *testing.T) {
	f := LiquidityFilter{Min: decimal.NewFromInt(5)}

	if res := f.Evaluate(progressEvent("10", 50)); !res.Passed {
		t.Fatalf("rejected sufficient liquidity: %s", res.Reason)
	}
	if res := f.Evaluate(progressEvent("5", 50)); !res.Passed {
		t.Fatalf("rejected exact threshold: %s", res.Reason)
	}

	res := f.Evaluate(progressEvent("4.9", 50))
	if res.Passed {
		t.Fatal("accepted insufficient liquidity")
	}
	if res.Reason != "liquidity_too_low:4.9<5" {
		t.Errorf("reason = %q", res.Reason)
	}

	created := domain.TokenCreatedEvent{
		EventMeta:        domain.EventMeta{TxSignature: "sig", SubjectToken: "token"},
		InitialLiquidity: decimal.NewFromInt(1),
	}
	if res := f.Evaluate(created); res.Passed {
		t.Fatal("accepted creation below min initial liquidity")
	}

	mig := domain.MigrationEvent{EventMeta: domain.EventMeta{TxSignature: "sig", SubjectToken: "token"}}
	if res := f.Evaluate(mig); !res.Passed {
		t.Fatal("migration events must pass through the liquidity filter")
	}
}

func TestProgressRangeFilter(t *testing.T) {
	f := ProgressRangeFilter{Min: 10, Max: 90}

	cases := []struct {
		pct    float64
		passed bool
		reason string
	}{
		{50, true, ""},
		{10, true, ""},
		{90, true, ""},
		{9.5, false, "curve_progress_too_low:9.50<10.00"},
		{95, false, "curve_progress_too_high:95.00>90.00"},
	}

	for _, tc := range cases {
		res := f.Evaluate(progressEvent("10", tc.pct))
		if res.Passed != tc.passed {
			t.Errorf("pct %v: passed = %v, want %v", tc.pct, res.Passed, tc.passed)
		}
		if !tc.passed && res.Reason != tc.reason {
			t.Errorf("pct %v: reason = %q, want %q", tc.pct, res.Reason, tc.reason)
		}
	}
}

func TestChain_FirstRejectionWins(t *testing.T) {
	chain := DefaultChain(Thresholds{
		MinLiquidity:   decimal.NewFromInt(5),
		MinProgressPct: 10,
		MaxProgressPct: 90,
	})

	// Fails both checks; the liquidity reason must win.
	res := chain.Evaluate(progressEvent("1", 95))
	if res.Passed {
		t.Fatal("expected rejection")
	}
	if !strings.HasPrefix(res.Reason, "liquidity: ") {
		t.Errorf("reason = %q, want liquidity-prefixed", res.Reason)
	}

	res = chain.Evaluate(progressEvent("10", 95))
	if res.Passed || !strings.HasPrefix(res.Reason, "progress_range: ") {
		t.Errorf("passed=%v reason=%q, want progress_range rejection", res.Passed, res.Reason)
	}

	if res := chain.Evaluate(progressEvent("10", 50)); !res.Passed {
		t.Errorf("rejected qualifying event: %s", res.Reason)
	}
}

func TestChain_IsDeterministic(t *testing.T) {
	chain := DefaultChain(DefaultThresholds())
	ev := progressEvent("4", 50)

	first := chain.Evaluate(ev)
	for i := 0; i < 10; i++ {
		if got := chain.Evaluate(ev); got != first {
			t.Fatalf("evaluation %d differed: %+v vs %+v", i, got, first)
		}
	}
}
