package domain

import (
	"errors"
	"fmt"
)

// Backtest cost defaults. Gas models a flat per-action settlement cost; the
// swap fee default matches the common 0.30% pool tier.
const (
	DefaultGasCostUsd = 1.50
	DefaultSwapFeePct = 0.30
)

// BacktestConfig is the fixed (non-searched) configuration of one simulation
// run. It travels with every scheduler task, so it stays a plain value type.
type BacktestConfig struct {
	StartMs             int64
	EndMs               int64
	InitialCapital      float64
	CapitalToken        string // denomination of the starting balance
	RebalanceIntervalMs int64
	GasCostUsd          float64 // per-action gas, defaulted when zero
	SwapFeePct          float64 // fallback swap fee, defaulted when zero
}

// Config validation errors.
var (
	ErrInvalidDateRange    = errors.New("start date must precede end date")
	ErrInvalidCapital      = errors.New("initial capital must be positive")
	ErrInvalidInterval     = errors.New("rebalance interval must be positive")
	ErrMissingCapitalToken = errors.New("capital token is required")
)

// Validate checks the config and returns the first violation found.
func (c BacktestConfig) Validate() error {
	if c.StartMs >= c.EndMs {
		return fmt.Errorf("%w: start=%d end=%d", ErrInvalidDateRange, c.StartMs, c.EndMs)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidCapital, c.InitialCapital)
	}
	if c.RebalanceIntervalMs <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, c.RebalanceIntervalMs)
	}
	if c.CapitalToken == "" {
		return ErrMissingCapitalToken
	}
	return nil
}

// WithDefaults returns a copy with zero-valued cost fields replaced by the
// package defaults.
func (c BacktestConfig) WithDefaults() BacktestConfig {
	out := c
	if out.GasCostUsd == 0 {
		out.GasCostUsd = DefaultGasCostUsd
	}
	if out.SwapFeePct == 0 {
		out.SwapFeePct = DefaultSwapFeePct
	}
	return out
}

// WithRange returns a copy confined to [startMs, endMs]. Used by the
// walk-forward evaluator to run the same config over train and test
// segments.
func (c BacktestConfig) WithRange(startMs, endMs int64) BacktestConfig {
	out := c
	out.StartMs = startMs
	out.EndMs = endMs
	return out
}
