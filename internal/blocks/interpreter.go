package blocks

import (
	"defi-strategy-lab/internal/domain"
)

// execFunc executes one block kind against a context.
type execFunc func(domain.Block, *Context) ExecutionResult

// handlers is the kind dispatch table. Adding a block kind means adding one
// entry here plus its handler; ValidateSequence rejects kinds the table does
// not know.
var handlers = map[domain.BlockKind]execFunc{
	domain.KindPriceTrigger:     execPriceTrigger,
	domain.KindTimeTrigger:      execTimeTrigger,
	domain.KindVolumeTrigger:    execVolumeTrigger,
	domain.KindIndicatorTrigger: execIndicatorTrigger,
	domain.KindSwap:             execSwap,
	domain.KindLendSupply:       execLendSupply,
	domain.KindLendBorrow:       execLendBorrow,
	domain.KindLendRepay:        execLendRepay,
	domain.KindLendWithdraw:     execLendWithdraw,
	domain.KindStopLoss:         execStopLoss,
	domain.KindTakeProfit:       execTakeProfit,
	domain.KindRebalance:        execRebalance,
}

// KnownKind reports whether the dispatch table has a handler for kind.
func KnownKind(kind domain.BlockKind) bool {
	_, ok := handlers[kind]
	return ok
}

// Execute runs one block against the context and returns its result. The
// context's ledger is the only state mutated.
func Execute(b domain.Block, ctx *Context) ExecutionResult {
	handler, ok := handlers[b.Kind]
	if !ok {
		return failf("unknown block kind: %s", b.Kind)
	}
	return handler(b, ctx)
}

// ExecuteSequence runs blocks in order. A PROTOCOL or EXIT block whose
// immediate predecessor did not fire is skipped: its result propagates
// Fired=false without evaluation, so a dead trigger suppresses the whole
// dependent chain. Results are stored in ctx.Results keyed by block ID and
// also returned.
func ExecuteSequence(seq []domain.Block, ctx *Context) map[string]ExecutionResult {
	if ctx.Results == nil {
		ctx.Results = make(map[string]ExecutionResult, len(seq))
	}
	for i, b := range seq {
		if i > 0 && dependsOnPredecessor(b.Category) {
			prev := ctx.Results[seq[i-1].ID]
			if !prev.Fired {
				ctx.Results[b.ID] = notFired("skipped: predecessor %s did not fire", seq[i-1].ID)
				continue
			}
		}
		ctx.Results[b.ID] = Execute(b, ctx)
	}
	return ctx.Results
}

// dependsOnPredecessor reports whether a category participates in
// conditional skipping.
func dependsOnPredecessor(c domain.BlockCategory) bool {
	return c == domain.CategoryProtocol || c == domain.CategoryExit
}

// ValidateSequence checks the structural preconditions of a block sequence:
// non-empty, unique IDs, known kinds, and at least one referenced token.
// Violations are fatal for the whole run, unlike block-level failures which
// only mark a single result OK=false.
func ValidateSequence(seq []domain.Block) error {
	if len(seq) == 0 {
		return domain.NewStructuralError("Cannot backtest empty strategy")
	}
	seen := make(map[string]bool, len(seq))
	for _, b := range seq {
		if b.ID == "" {
			return domain.NewStructuralError("block of kind %s has no ID", b.Kind)
		}
		if seen[b.ID] {
			return domain.NewStructuralError("duplicate block ID: %s", b.ID)
		}
		seen[b.ID] = true
		if !KnownKind(b.Kind) {
			return domain.NewStructuralError("unknown block kind: %s", b.Kind)
		}
	}
	if len(domain.TokensOf(seq)) == 0 {
		return domain.NewStructuralError("strategy references no tokens")
	}
	return nil
}

// ApplyParameters derives a block sequence with a ParameterSet's overrides
// merged in. Blocks without overrides are returned as-is.
func ApplyParameters(seq []domain.Block, params domain.ParameterSet) []domain.Block {
	if len(params) == 0 {
		return seq
	}
	out := make([]domain.Block, len(seq))
	for i, b := range seq {
		if overrides, ok := params[b.ID]; ok {
			out[i] = b.WithParams(overrides)
		} else {
			out[i] = b
		}
	}
	return out
}
