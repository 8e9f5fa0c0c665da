package blocks

import (
	"sort"
	"strings"

	"defi-strategy-lab/internal/domain"
)

// execRebalance compares each targeted token's share of balance value
// against its "target:<TOKEN>" allocation and reports the deviations
// exceeding thresholdPct in the payload. Report-only: the ledger is never
// mutated and no trade is recorded.
func execRebalance(b domain.Block, ctx *Context) ExecutionResult {
	threshold, ok := b.Param("thresholdPct")
	if !ok || threshold <= 0 {
		return failf("rebalance requires positive param thresholdPct")
	}

	type target struct {
		token string
		pct   float64
	}
	var targets []target
	for name, pct := range b.Params {
		if token, ok := strings.CutPrefix(name, domain.RebalanceTargetPrefix); ok {
			targets = append(targets, target{token: token, pct: pct})
		}
	}
	if len(targets) == 0 {
		return failf("rebalance requires at least one target:<TOKEN> param")
	}

	balances := ctx.Ledger.Balances()
	tokens := make([]string, 0, len(balances))
	for token := range balances {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	// Summation order is fixed so repeated runs produce identical floats.
	total := 0.0
	values := make(map[string]float64)
	for _, token := range tokens {
		price, ok := ctx.Prices[token]
		if !ok || price <= 0 {
			continue
		}
		values[token] = balances[token] * price
		total += balances[token] * price
	}
	if total <= 0 {
		return notFired("portfolio has no priced balance value")
	}

	payload := make(map[string]float64)
	exceeded := 0
	for _, tgt := range targets {
		currentPct := values[tgt.token] / total * 100
		deviation := currentPct - tgt.pct
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation > threshold {
			payload["deviation:"+tgt.token] = deviation
			payload["current:"+tgt.token] = currentPct
			payload["target:"+tgt.token] = tgt.pct
			exceeded++
		}
	}

	if exceeded == 0 {
		return notFired("allocations within %.2f%% of targets", threshold)
	}
	return fired(payload, "%d token(s) deviate beyond %.2f%%", exceeded, threshold)
}
