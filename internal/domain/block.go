package domain

import (
	"sort"
	"strings"
)

// Block is one declarative unit of strategy logic. A strategy is an ordered
// sequence of blocks; order is significant and fixed for the lifetime of a run.
// Numeric tunables live in Params so the optimizer can override them; token,
// protocol, comparator and indicator references are structural and never
// searched over.
type Block struct {
	ID       string
	Kind     BlockKind
	Category BlockCategory

	InputToken  string // token the block watches or spends
	OutputToken string // swap destination token (swap only)
	Protocol    string // protocol tag, e.g. "uniswap", "aave", "solend"
	Comparator  string // trigger comparator, one of the Cmp* constants
	Indicator   string // indicator name for indicator-trigger ("sma" | "rsi")

	Params map[string]float64
}

// BlockKind identifies the executable behavior of a block.
type BlockKind string

// Block kinds.
const (
	KindPriceTrigger     BlockKind = "price-trigger"
	KindTimeTrigger      BlockKind = "time-trigger"
	KindVolumeTrigger    BlockKind = "volume-trigger"
	KindIndicatorTrigger BlockKind = "indicator-trigger"
	KindSwap             BlockKind = "swap"
	KindLendSupply       BlockKind = "lend-supply"
	KindLendBorrow       BlockKind = "lend-borrow"
	KindLendRepay        BlockKind = "lend-repay"
	KindLendWithdraw     BlockKind = "lend-withdraw"
	KindStopLoss         BlockKind = "stop-loss"
	KindTakeProfit       BlockKind = "take-profit"
	KindRebalance        BlockKind = "rebalance"
)

// BlockCategory groups blocks for sequencing rules: a PROTOCOL or EXIT block
// whose immediate predecessor did not fire is skipped. ENTRY and RISK blocks
// always execute.
type BlockCategory string

// Block categories.
const (
	CategoryEntry    BlockCategory = "ENTRY"
	CategoryProtocol BlockCategory = "PROTOCOL"
	CategoryExit     BlockCategory = "EXIT"
	CategoryRisk     BlockCategory = "RISK"
)

// Comparator constants for trigger blocks. CmpEq uses an absolute tolerance
// of 0.01 to avoid floating-point false negatives.
const (
	CmpGTE = ">="
	CmpLTE = "<="
	CmpGT  = ">"
	CmpLT  = "<"
	CmpEq  = "=="
)

// DefaultCategory returns the category a kind belongs to unless the strategy
// author overrides it.
func DefaultCategory(kind BlockKind) BlockCategory {
	switch kind {
	case KindPriceTrigger, KindTimeTrigger, KindVolumeTrigger, KindIndicatorTrigger:
		return CategoryEntry
	case KindSwap, KindLendSupply, KindLendBorrow, KindLendRepay, KindLendWithdraw:
		return CategoryProtocol
	case KindStopLoss, KindTakeProfit, KindRebalance:
		return CategoryRisk
	default:
		return CategoryProtocol
	}
}

// WithParams returns a derived block whose Params are the receiver's merged
// with overrides (overrides win). The receiver is not mutated.
func (b Block) WithParams(overrides map[string]float64) Block {
	merged := make(map[string]float64, len(b.Params)+len(overrides))
	for k, v := range b.Params {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	derived := b
	derived.Params = merged
	return derived
}

// Param returns the named parameter and whether it is present.
func (b Block) Param(name string) (float64, bool) {
	v, ok := b.Params[name]
	return v, ok
}

// RebalanceTargetPrefix marks params that carry a per-token allocation
// target, e.g. "target:ETH" = 60.
const RebalanceTargetPrefix = "target:"

// Tokens returns every token symbol the block references: input and output
// tokens plus any rebalance allocation targets, in deterministic order.
func (b Block) Tokens() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(tok string) {
		if tok != "" && !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	add(b.InputToken)
	add(b.OutputToken)
	var targets []string
	for name := range b.Params {
		if tok, ok := strings.CutPrefix(name, RebalanceTargetPrefix); ok {
			targets = append(targets, tok)
		}
	}
	sort.Strings(targets)
	for _, tok := range targets {
		add(tok)
	}
	return out
}
