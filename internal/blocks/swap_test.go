package blocks

import (
	"math"
	"strings"
	"testing"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/ledger"
)

func TestSwap_FeeThenSlippage(t *testing.T) {
	l := ledger.New(0, "")
	if err := l.AddBalance("ETH", 2); err != nil {
		t.Fatalf("AddBalance failed: %v", err)
	}
	ctx := newTestContext(map[string]float64{"ETH": 3000, "USDC": 1}, l)

	b := domain.Block{
		ID: "s1", Kind: domain.KindSwap, Category: domain.CategoryProtocol,
		InputToken: "ETH", OutputToken: "USDC",
		Params: map[string]float64{"amount": 1, "slippagePct": 0.5, "feePct": 0.3},
	}
	res := Execute(b, ctx)
	if !res.OK || !res.Fired {
		t.Fatalf("Swap failed: OK=%v Fired=%v (%s)", res.OK, res.Fired, res.Message)
	}

	// 1 ETH * 3000/1 = 3000, minus 0.3% fee = 2991, minus 0.5% slippage.
	want := 3000.0 * (1 - 0.003) * (1 - 0.005)
	got := l.GetBalance("USDC")
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("USDC out = %f, want %f", got, want)
	}
	if got := l.GetBalance("ETH"); got != 1 {
		t.Errorf("ETH balance = %f, want 1", got)
	}

	trades := l.Trades()
	if len(trades) != 1 {
		t.Fatalf("Trades = %d, want 1", len(trades))
	}
	tr := trades[0]
	if tr.Kind != domain.TradeSwap {
		t.Errorf("Trade kind = %s, want swap", tr.Kind)
	}
	if math.Abs(tr.FeesUsd-9.0) > 1e-9 {
		t.Errorf("FeesUsd = %f, want 9 (0.3%% of 3000)", tr.FeesUsd)
	}
	if tr.GasCostUsd <= 0 {
		t.Errorf("GasCostUsd = %f, want > 0", tr.GasCostUsd)
	}
	if tr.SlippagePct != 0.5 {
		t.Errorf("SlippagePct = %f, want 0.5", tr.SlippagePct)
	}
}

func TestSwap_InsufficientBalanceFailsBeforePriceLookup(t *testing.T) {
	l := ledger.New(0, "")
	// No ETH balance and, deliberately, no ETH price either: the failure
	// message must be about balance, proving the check order.
	ctx := newTestContext(map[string]float64{}, l)

	b := domain.Block{
		ID: "s1", Kind: domain.KindSwap, InputToken: "ETH", OutputToken: "USDC",
		Params: map[string]float64{"amount": 1},
	}
	res := Execute(b, ctx)
	if res.OK {
		t.Fatal("Expected swap to fail")
	}
	if !strings.Contains(res.Message, "balance") {
		t.Errorf("Failure message %q should mention balance, not price", res.Message)
	}

	if l.TradeCount() != 0 {
		t.Error("Failed swap must not record a trade")
	}
}

func TestSwap_MissingPriceFails(t *testing.T) {
	l := ledger.New(0, "")
	if err := l.AddBalance("ETH", 5); err != nil {
		t.Fatalf("AddBalance failed: %v", err)
	}
	ctx := newTestContext(map[string]float64{"ETH": 3000}, l) // no USDC price

	b := domain.Block{
		ID: "s1", Kind: domain.KindSwap, InputToken: "ETH", OutputToken: "USDC",
		Params: map[string]float64{"amount": 1},
	}
	res := Execute(b, ctx)
	if res.OK {
		t.Fatal("Expected swap to fail on missing output price")
	}
	if got := l.GetBalance("ETH"); got != 5 {
		t.Errorf("ETH balance changed on failed swap: %f", got)
	}
}

func TestSwap_DefaultFeeFromConfig(t *testing.T) {
	l := ledger.New(0, "")
	if err := l.AddBalance("ETH", 1); err != nil {
		t.Fatalf("AddBalance failed: %v", err)
	}
	ctx := newTestContext(map[string]float64{"ETH": 2000, "USDC": 1}, l)

	// No feePct param: the config default (0.3) applies.
	b := domain.Block{
		ID: "s1", Kind: domain.KindSwap, InputToken: "ETH", OutputToken: "USDC",
		Params: map[string]float64{"amount": 1},
	}
	res := Execute(b, ctx)
	if !res.Fired {
		t.Fatalf("Swap did not fire: %s", res.Message)
	}
	want := 2000.0 * (1 - 0.003)
	if got := l.GetBalance("USDC"); math.Abs(got-want) > 1e-9 {
		t.Errorf("USDC out = %f, want %f", got, want)
	}
}

func TestSwap_ZeroAmountFails(t *testing.T) {
	ctx := newTestContext(map[string]float64{"ETH": 3000, "USDC": 1}, nil)
	b := domain.Block{
		ID: "s1", Kind: domain.KindSwap, InputToken: "ETH", OutputToken: "USDC",
		Params: map[string]float64{"amount": 0},
	}
	if res := Execute(b, ctx); res.OK {
		t.Error("Expected zero-amount swap to fail")
	}
}
