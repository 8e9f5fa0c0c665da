// Package blocks executes strategy blocks against a point-in-time context.
// Each block kind maps to a pure function through a dispatch table; the only
// state touched is the context's ledger.
package blocks

import (
	"fmt"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/ledger"
)

// Context is the point-in-time environment one step executes against. Built
// once per step, discarded after. History holds samples at or before
// TimestampMs, for indicator blocks.
type Context struct {
	TimestampMs int64
	Prices      map[string]float64
	Volumes     map[string]float64
	History     map[string][]domain.PricePoint
	Ledger      *ledger.Ledger
	Results     map[string]ExecutionResult
	Config      domain.BacktestConfig
}

// NewContext builds a context for one step. Results starts empty and is
// filled by ExecuteSequence.
func NewContext(timestampMs int64, prices map[string]float64, l *ledger.Ledger, cfg domain.BacktestConfig) *Context {
	return &Context{
		TimestampMs: timestampMs,
		Prices:      prices,
		Volumes:     make(map[string]float64),
		History:     make(map[string][]domain.PricePoint),
		Ledger:      l,
		Results:     make(map[string]ExecutionResult),
		Config:      cfg,
	}
}

// ExecutionResult is the outcome of executing one block. OK=false signals a
// block-level failure (bad params, missing price, insufficient balance);
// Fired signals whether the block's condition or action took effect.
type ExecutionResult struct {
	OK      bool
	Fired   bool
	Message string
	Payload map[string]float64
}

func failf(format string, args ...any) ExecutionResult {
	return ExecutionResult{OK: false, Fired: false, Message: fmt.Sprintf(format, args...)}
}

func notFired(format string, args ...any) ExecutionResult {
	return ExecutionResult{OK: true, Fired: false, Message: fmt.Sprintf(format, args...)}
}

func fired(payload map[string]float64, format string, args ...any) ExecutionResult {
	return ExecutionResult{OK: true, Fired: true, Message: fmt.Sprintf(format, args...), Payload: payload}
}
