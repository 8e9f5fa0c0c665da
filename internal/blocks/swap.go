package blocks

import (
	"defi-strategy-lab/internal/domain"
)

// execSwap converts InputToken into OutputToken at the price ratio, reduced
// by the protocol fee and then by slippage, in that order. The balance check
// runs before any price lookup. Pricing is a deliberate simplification of
// AMM execution: ratio, fee, slippage, nothing else.
func execSwap(b domain.Block, ctx *Context) ExecutionResult {
	if b.InputToken == "" || b.OutputToken == "" {
		return failf("swap requires input and output tokens")
	}
	amount, ok := b.Param("amount")
	if !ok || amount <= 0 {
		return failf("swap requires positive param amount")
	}

	if available := ctx.Ledger.GetBalance(b.InputToken); available < amount {
		return failf("insufficient %s balance: need %v, have %v", b.InputToken, amount, available)
	}

	priceIn, ok := ctx.Prices[b.InputToken]
	if !ok || priceIn <= 0 {
		return failf("no price for %s", b.InputToken)
	}
	priceOut, ok := ctx.Prices[b.OutputToken]
	if !ok || priceOut <= 0 {
		return failf("no price for %s", b.OutputToken)
	}

	feePct := ctx.Config.SwapFeePct
	if v, ok := b.Param("feePct"); ok {
		feePct = v
	}
	slippagePct := 0.0
	if v, ok := b.Param("slippagePct"); ok {
		slippagePct = v
	}

	gross := amount * priceIn / priceOut
	afterFee := gross * (1 - feePct/100)
	output := afterFee * (1 - slippagePct/100)
	if output <= 0 {
		return failf("swap output is zero after fee %.4f%% and slippage %.4f%%", feePct, slippagePct)
	}

	if err := ctx.Ledger.SubtractBalance(b.InputToken, amount); err != nil {
		return failf("debit %s: %v", b.InputToken, err)
	}
	if err := ctx.Ledger.AddBalance(b.OutputToken, output); err != nil {
		return failf("credit %s: %v", b.OutputToken, err)
	}

	feesUsd := amount * priceIn * (feePct / 100)
	ctx.Ledger.RecordTrade(domain.Trade{
		TimestampMs:  ctx.TimestampMs,
		Kind:         domain.TradeSwap,
		InputToken:   b.InputToken,
		OutputToken:  b.OutputToken,
		InputAmount:  amount,
		OutputAmount: output,
		Price:        priceIn,
		SlippagePct:  slippagePct,
		FeesUsd:      feesUsd,
		GasCostUsd:   ctx.Config.GasCostUsd,
	})

	payload := map[string]float64{
		"outputAmount": output,
		"priceIn":      priceIn,
		"priceOut":     priceOut,
	}
	return fired(payload, "swapped %v %s -> %.6f %s", amount, b.InputToken, output, b.OutputToken)
}
