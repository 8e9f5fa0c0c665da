package blocks

import (
	"defi-strategy-lab/internal/domain"
)

// execStopLoss scans open long positions and force-closes any whose loss
// since entry crosses the threshold. Closing returns the position's amount
// to the token balance and logs one exit trade per position.
func execStopLoss(b domain.Block, ctx *Context) ExecutionResult {
	return closeCrossers(b, ctx, domain.TradeStopLoss, func(entry, current float64) float64 {
		return (entry - current) / entry * 100
	})
}

// execTakeProfit mirrors stop-loss for gains.
func execTakeProfit(b domain.Block, ctx *Context) ExecutionResult {
	return closeCrossers(b, ctx, domain.TradeTakeProfit, func(entry, current float64) float64 {
		return (current - entry) / entry * 100
	})
}

// closeCrossers is the shared scan: pct computes the signed move since entry
// in percent; positions at or past the threshold are closed. Borrow
// positions and positions without a usable price or entry price are left
// alone.
func closeCrossers(b domain.Block, ctx *Context, kind domain.TradeKind, pct func(entry, current float64) float64) ExecutionResult {
	threshold, ok := b.Param("thresholdPct")
	if !ok || threshold <= 0 {
		return failf("%s requires positive param thresholdPct", b.Kind)
	}

	closed := 0
	returned := 0.0
	for _, p := range ctx.Ledger.Positions() {
		if !p.Long() || p.Amount <= 0 || p.EntryPrice <= 0 {
			continue
		}
		current, ok := ctx.Prices[p.Asset]
		if !ok || current <= 0 {
			continue
		}
		if pct(p.EntryPrice, current) < threshold {
			continue
		}

		if _, err := ctx.Ledger.RemovePosition(p.ID); err != nil {
			return failf("close position %s: %v", p.ID, err)
		}
		if err := ctx.Ledger.AddBalance(p.Asset, p.Amount); err != nil {
			return failf("credit %s: %v", p.Asset, err)
		}
		ctx.Ledger.RecordTrade(domain.Trade{
			TimestampMs: ctx.TimestampMs,
			Kind:        kind,
			InputToken:  p.Asset,
			InputAmount: p.Amount,
			Price:       current,
			GasCostUsd:  ctx.Config.GasCostUsd,
		})
		closed++
		returned += p.Amount
	}

	if closed == 0 {
		return notFired("no position crossed %s threshold %.2f%%", b.Kind, threshold)
	}
	payload := map[string]float64{"closedPositions": float64(closed), "returnedAmount": returned}
	return fired(payload, "%s closed %d position(s) at threshold %.2f%%", b.Kind, closed, threshold)
}
