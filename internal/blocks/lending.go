package blocks

import (
	"defi-strategy-lab/internal/domain"
)

// execLendSupply moves amount from the token balance into a supply position
// under the block's protocol tag.
func execLendSupply(b domain.Block, ctx *Context) ExecutionResult {
	if b.InputToken == "" {
		return failf("supply requires a token")
	}
	amount, ok := b.Param("amount")
	if !ok || amount <= 0 {
		return failf("supply requires positive param amount")
	}
	if available := ctx.Ledger.GetBalance(b.InputToken); available < amount {
		return failf("insufficient %s balance: need %v, have %v", b.InputToken, amount, available)
	}
	price, ok := ctx.Prices[b.InputToken]
	if !ok || price <= 0 {
		return failf("no price for %s", b.InputToken)
	}
	apyPct, _ := b.Param("apyPct")

	if err := ctx.Ledger.SubtractBalance(b.InputToken, amount); err != nil {
		return failf("debit %s: %v", b.InputToken, err)
	}
	ctx.Ledger.AddPosition(domain.Position{
		Kind:             domain.PositionSupply,
		Asset:            b.InputToken,
		Amount:           amount,
		EntryPrice:       price,
		EntryTimestampMs: ctx.TimestampMs,
		ProtocolTag:      b.Protocol,
		APYPct:           apyPct,
	})

	ctx.Ledger.RecordTrade(domain.Trade{
		TimestampMs: ctx.TimestampMs,
		Kind:        domain.TradeSupply,
		InputToken:  b.InputToken,
		InputAmount: amount,
		Price:       price,
		GasCostUsd:  ctx.Config.GasCostUsd,
	})

	return fired(map[string]float64{"amount": amount, "price": price},
		"supplied %v %s to %s", amount, b.InputToken, protocolOrDefault(b.Protocol))
}

// execLendBorrow credits the token balance and books a negative-amount
// borrow position. Requires an existing supply position under the same
// protocol tag; this stands in for a collateral check, not a health factor.
func execLendBorrow(b domain.Block, ctx *Context) ExecutionResult {
	if b.InputToken == "" {
		return failf("borrow requires a token")
	}
	amount, ok := b.Param("amount")
	if !ok || amount <= 0 {
		return failf("borrow requires positive param amount")
	}

	_, hasCollateral := ctx.Ledger.FindPosition(func(p domain.Position) bool {
		return p.Kind == domain.PositionSupply && p.ProtocolTag == b.Protocol
	})
	if !hasCollateral {
		return failf("no supply position under protocol %q to borrow against", protocolOrDefault(b.Protocol))
	}

	price, ok := ctx.Prices[b.InputToken]
	if !ok || price <= 0 {
		return failf("no price for %s", b.InputToken)
	}
	apyPct, _ := b.Param("apyPct")

	if err := ctx.Ledger.AddBalance(b.InputToken, amount); err != nil {
		return failf("credit %s: %v", b.InputToken, err)
	}
	ctx.Ledger.AddPosition(domain.Position{
		Kind:             domain.PositionBorrow,
		Asset:            b.InputToken,
		Amount:           -amount,
		EntryPrice:       price,
		EntryTimestampMs: ctx.TimestampMs,
		ProtocolTag:      b.Protocol,
		APYPct:           apyPct,
	})

	ctx.Ledger.RecordTrade(domain.Trade{
		TimestampMs: ctx.TimestampMs,
		Kind:        domain.TradeBorrow,
		InputToken:  b.InputToken,
		InputAmount: amount,
		Price:       price,
		GasCostUsd:  ctx.Config.GasCostUsd,
	})

	return fired(map[string]float64{"amount": amount, "price": price},
		"borrowed %v %s from %s", amount, b.InputToken, protocolOrDefault(b.Protocol))
}

// execLendRepay pays down the first matching borrow position. Repaying more
// than is owed repays exactly the debt.
func execLendRepay(b domain.Block, ctx *Context) ExecutionResult {
	if b.InputToken == "" {
		return failf("repay requires a token")
	}
	amount, ok := b.Param("amount")
	if !ok || amount <= 0 {
		return failf("repay requires positive param amount")
	}

	pos, ok := ctx.Ledger.FindPosition(func(p domain.Position) bool {
		return p.Kind == domain.PositionBorrow && p.Asset == b.InputToken && p.ProtocolTag == b.Protocol
	})
	if !ok {
		return failf("no %s borrow position under protocol %q", b.InputToken, protocolOrDefault(b.Protocol))
	}

	owed := -pos.Amount
	repay := amount
	if repay > owed {
		repay = owed
	}
	if available := ctx.Ledger.GetBalance(b.InputToken); available < repay {
		return failf("insufficient %s balance: need %v, have %v", b.InputToken, repay, available)
	}
	price, ok := ctx.Prices[b.InputToken]
	if !ok || price <= 0 {
		return failf("no price for %s", b.InputToken)
	}

	if err := ctx.Ledger.SubtractBalance(b.InputToken, repay); err != nil {
		return failf("debit %s: %v", b.InputToken, err)
	}
	remaining, err := ctx.Ledger.AdjustPositionAmount(pos.ID, repay)
	if err != nil {
		return failf("adjust position %s: %v", pos.ID, err)
	}

	ctx.Ledger.RecordTrade(domain.Trade{
		TimestampMs: ctx.TimestampMs,
		Kind:        domain.TradeRepay,
		InputToken:  b.InputToken,
		InputAmount: repay,
		Price:       price,
		GasCostUsd:  ctx.Config.GasCostUsd,
	})

	return fired(map[string]float64{"repaid": repay, "remainingDebt": -remaining},
		"repaid %v %s to %s", repay, b.InputToken, protocolOrDefault(b.Protocol))
}

// execLendWithdraw moves amount from the first matching supply position back
// to the token balance. Withdrawing more than the position holds fails.
func execLendWithdraw(b domain.Block, ctx *Context) ExecutionResult {
	if b.InputToken == "" {
		return failf("withdraw requires a token")
	}
	amount, ok := b.Param("amount")
	if !ok || amount <= 0 {
		return failf("withdraw requires positive param amount")
	}

	pos, ok := ctx.Ledger.FindPosition(func(p domain.Position) bool {
		return p.Kind == domain.PositionSupply && p.Asset == b.InputToken && p.ProtocolTag == b.Protocol
	})
	if !ok {
		return failf("no %s supply position under protocol %q", b.InputToken, protocolOrDefault(b.Protocol))
	}
	if amount > pos.Amount {
		return failf("withdraw %v exceeds position amount %v", amount, pos.Amount)
	}
	price, ok := ctx.Prices[b.InputToken]
	if !ok || price <= 0 {
		return failf("no price for %s", b.InputToken)
	}

	remaining, err := ctx.Ledger.AdjustPositionAmount(pos.ID, -amount)
	if err != nil {
		return failf("adjust position %s: %v", pos.ID, err)
	}
	if err := ctx.Ledger.AddBalance(b.InputToken, amount); err != nil {
		return failf("credit %s: %v", b.InputToken, err)
	}

	ctx.Ledger.RecordTrade(domain.Trade{
		TimestampMs: ctx.TimestampMs,
		Kind:        domain.TradeWithdraw,
		InputToken:  b.InputToken,
		InputAmount: amount,
		Price:       price,
		GasCostUsd:  ctx.Config.GasCostUsd,
	})

	return fired(map[string]float64{"withdrawn": amount, "remaining": remaining},
		"withdrew %v %s from %s", amount, b.InputToken, protocolOrDefault(b.Protocol))
}

func protocolOrDefault(tag string) string {
	if tag == "" {
		return "default"
	}
	return tag
}
