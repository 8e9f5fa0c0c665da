package blocks

import (
	"testing"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/ledger"
)

func TestLendSupply_MovesBalanceIntoPosition(t *testing.T) {
	l := ledger.New(1000, "USDC")
	ctx := newTestContext(map[string]float64{"USDC": 1}, l)

	b := domain.Block{
		ID: "sup", Kind: domain.KindLendSupply, InputToken: "USDC", Protocol: "aave",
		Params: map[string]float64{"amount": 400, "apyPct": 3.5},
	}
	res := Execute(b, ctx)
	if !res.Fired {
		t.Fatalf("Supply did not fire: %s", res.Message)
	}

	if got := l.GetBalance("USDC"); got != 600 {
		t.Errorf("Balance = %f, want 600", got)
	}
	positions := l.Positions()
	if len(positions) != 1 {
		t.Fatalf("Positions = %d, want 1", len(positions))
	}
	p := positions[0]
	if p.Kind != domain.PositionSupply || p.Amount != 400 || p.ProtocolTag != "aave" || p.APYPct != 3.5 {
		t.Errorf("Unexpected position: %+v", p)
	}
	if l.TradeCount() != 1 {
		t.Errorf("TradeCount = %d, want 1", l.TradeCount())
	}
}

func TestLendSupply_InsufficientBalance(t *testing.T) {
	l := ledger.New(100, "USDC")
	ctx := newTestContext(map[string]float64{"USDC": 1}, l)

	b := domain.Block{
		ID: "sup", Kind: domain.KindLendSupply, InputToken: "USDC",
		Params: map[string]float64{"amount": 500},
	}
	res := Execute(b, ctx)
	if res.OK {
		t.Fatal("Expected supply to fail on insufficient balance")
	}
	if got := l.GetBalance("USDC"); got != 100 {
		t.Errorf("Balance changed on failed supply: %f", got)
	}
}

func TestLendBorrow_RequiresCollateralUnderSameTag(t *testing.T) {
	l := ledger.New(1000, "USDC")
	ctx := newTestContext(map[string]float64{"USDC": 1}, l)

	borrow := domain.Block{
		ID: "bor", Kind: domain.KindLendBorrow, InputToken: "USDC", Protocol: "aave",
		Params: map[string]float64{"amount": 200},
	}

	// No supply position at all.
	if res := Execute(borrow, ctx); res.OK {
		t.Fatal("Borrow without collateral must fail")
	}

	// Supply under a different protocol tag does not count.
	supplyOther := domain.Block{
		ID: "sup", Kind: domain.KindLendSupply, InputToken: "USDC", Protocol: "compound",
		Params: map[string]float64{"amount": 300},
	}
	if res := Execute(supplyOther, ctx); !res.Fired {
		t.Fatalf("Supply failed: %s", res.Message)
	}
	if res := Execute(borrow, ctx); res.OK {
		t.Fatal("Borrow must fail when collateral is under another protocol tag")
	}

	// Matching tag unlocks the borrow.
	supplyAave := domain.Block{
		ID: "sup2", Kind: domain.KindLendSupply, InputToken: "USDC", Protocol: "aave",
		Params: map[string]float64{"amount": 300},
	}
	if res := Execute(supplyAave, ctx); !res.Fired {
		t.Fatalf("Supply failed: %s", res.Message)
	}
	res := Execute(borrow, ctx)
	if !res.Fired {
		t.Fatalf("Borrow did not fire with matching collateral: %s", res.Message)
	}

	// 1000 - 300 - 300 supplied + 200 borrowed.
	if got := l.GetBalance("USDC"); got != 600 {
		t.Errorf("Balance = %f, want 600", got)
	}

	var borrowPos *domain.Position
	for _, p := range l.Positions() {
		if p.Kind == domain.PositionBorrow {
			cp := p
			borrowPos = &cp
		}
	}
	if borrowPos == nil {
		t.Fatal("No borrow position recorded")
	}
	if borrowPos.Amount != -200 {
		t.Errorf("Borrow amount = %f, want -200", borrowPos.Amount)
	}
}

func TestLendRepay_PartialAndCapped(t *testing.T) {
	l := ledger.New(1000, "USDC")
	ctx := newTestContext(map[string]float64{"USDC": 1}, l)

	seq := []domain.Block{
		{ID: "sup", Kind: domain.KindLendSupply, Category: domain.CategoryEntry, InputToken: "USDC", Protocol: "aave", Params: map[string]float64{"amount": 500}},
		{ID: "bor", Kind: domain.KindLendBorrow, Category: domain.CategoryProtocol, InputToken: "USDC", Protocol: "aave", Params: map[string]float64{"amount": 200}},
	}
	for _, b := range seq {
		if res := Execute(b, ctx); !res.Fired {
			t.Fatalf("%s failed: %s", b.ID, res.Message)
		}
	}

	partial := domain.Block{
		ID: "rep", Kind: domain.KindLendRepay, InputToken: "USDC", Protocol: "aave",
		Params: map[string]float64{"amount": 50},
	}
	res := Execute(partial, ctx)
	if !res.Fired {
		t.Fatalf("Partial repay failed: %s", res.Message)
	}
	if res.Payload["remainingDebt"] != 150 {
		t.Errorf("remainingDebt = %f, want 150", res.Payload["remainingDebt"])
	}

	// Repaying far more than owed repays exactly the debt.
	over := domain.Block{
		ID: "rep2", Kind: domain.KindLendRepay, InputToken: "USDC", Protocol: "aave",
		Params: map[string]float64{"amount": 10000},
	}
	res = Execute(over, ctx)
	if !res.Fired {
		t.Fatalf("Capped repay failed: %s", res.Message)
	}
	if res.Payload["repaid"] != 150 {
		t.Errorf("repaid = %f, want 150", res.Payload["repaid"])
	}

	for _, p := range l.Positions() {
		if p.Kind == domain.PositionBorrow {
			t.Errorf("Borrow position survived full repay: %+v", p)
		}
	}
}

func TestLendWithdraw_OverdrawFails(t *testing.T) {
	l := ledger.New(1000, "USDC")
	ctx := newTestContext(map[string]float64{"USDC": 1}, l)

	supply := domain.Block{
		ID: "sup", Kind: domain.KindLendSupply, InputToken: "USDC", Protocol: "aave",
		Params: map[string]float64{"amount": 500},
	}
	if res := Execute(supply, ctx); !res.Fired {
		t.Fatalf("Supply failed: %s", res.Message)
	}

	over := domain.Block{
		ID: "wd", Kind: domain.KindLendWithdraw, InputToken: "USDC", Protocol: "aave",
		Params: map[string]float64{"amount": 600},
	}
	if res := Execute(over, ctx); res.OK {
		t.Fatal("Withdraw above position amount must fail")
	}

	half := domain.Block{
		ID: "wd2", Kind: domain.KindLendWithdraw, InputToken: "USDC", Protocol: "aave",
		Params: map[string]float64{"amount": 250},
	}
	res := Execute(half, ctx)
	if !res.Fired {
		t.Fatalf("Withdraw failed: %s", res.Message)
	}
	if got := l.GetBalance("USDC"); got != 750 {
		t.Errorf("Balance = %f, want 750", got)
	}
	if res.Payload["remaining"] != 250 {
		t.Errorf("remaining = %f, want 250", res.Payload["remaining"])
	}
}

func TestLendWithdraw_NoPositionFails(t *testing.T) {
	ctx := newTestContext(map[string]float64{"USDC": 1}, nil)
	b := domain.Block{
		ID: "wd", Kind: domain.KindLendWithdraw, InputToken: "USDC",
		Params: map[string]float64{"amount": 10},
	}
	if res := Execute(b, ctx); res.OK {
		t.Error("Withdraw without a supply position must fail")
	}
}
