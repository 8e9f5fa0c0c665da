package simulation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"defi-strategy-lab/internal/blocks"
	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/ledger"
	"defi-strategy-lab/internal/metrics"
	"defi-strategy-lab/internal/pricing"
)

// Runner executes block strategies against historical prices on a fixed
// rebalance-interval grid. Runners are stateless and safe for concurrent
// use; each Run owns a fresh Ledger.
type Runner struct {
	oracle  pricing.Oracle
	volumes pricing.VolumeSource
	logger  zerolog.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Oracle  pricing.Oracle
	Volumes pricing.VolumeSource // optional, enables volume triggers
	Logger  *zerolog.Logger      // optional, defaults to a no-op logger
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Runner{
		oracle:  opts.Oracle,
		volumes: opts.Volumes,
		logger:  logger,
	}
}

// Result is the outcome of one simulation run.
type Result struct {
	Metrics     *metrics.Metrics
	EquityCurve []domain.EquityCurvePoint
	Trades      []domain.Trade

	// Steps is the full grid length; SkippedSteps counts grid points that
	// had no usable price for some referenced token.
	Steps        int
	SkippedSteps int
}

// Run executes a strategy over [cfg.StartMs, cfg.EndMs].
// Steps:
//  1. Validate the block sequence and config before touching price data.
//  2. Load a price series per referenced token (plus the capital token).
//  3. Walk the time grid: resolve prices, accrue interest, execute the
//     sequence, append an equity point. Steps with unresolvable prices are
//     skipped with a warning.
//  4. Derive metrics from the equity curve and trade log.
//
// A run where every step was skipped returns a DataError.
func (r *Runner) Run(ctx context.Context, blockSeq []domain.Block, cfg domain.BacktestConfig) (*Result, error) {
	// 1. Structural validation before any price access
	if err := blocks.ValidateSequence(blockSeq); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 2. Load series for referenced tokens plus the capital token
	tokens := domain.TokensOf(blockSeq)
	hasCapital := false
	for _, t := range tokens {
		if t == cfg.CapitalToken {
			hasCapital = true
			break
		}
	}
	if !hasCapital {
		tokens = append(tokens, cfg.CapitalToken)
	}

	series, err := r.oracle.GetPrices(ctx, tokens, cfg.StartMs, cfg.EndMs, cfg.RebalanceIntervalMs)
	if err != nil {
		return nil, fmt.Errorf("load price series: %w", err)
	}

	var volumes map[string][]domain.VolumePoint
	if r.volumes != nil && hasVolumeTriggers(blockSeq) {
		volumes, err = r.volumes.GetVolumes(ctx, tokens, cfg.StartMs, cfg.EndMs)
		if err != nil {
			return nil, fmt.Errorf("load volume series: %w", err)
		}
	}

	// 3. Walk the grid
	led := ledger.New(cfg.InitialCapital, cfg.CapitalToken)
	grid := timeGrid(cfg.StartMs, cfg.EndMs, cfg.RebalanceIntervalMs)
	curve := make([]domain.EquityCurvePoint, 0, len(grid))
	skipped := 0
	lastExecuted := grid[0]

	for _, ts := range grid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prices, missing := resolvePrices(series, tokens, ts, cfg.CapitalToken)
		if len(missing) > 0 {
			skipped++
			r.logger.Warn().
				Int64("timestamp_ms", ts).
				Strs("tokens", missing).
				Msg("skipping step: no usable price")
			continue
		}

		r.accrue(led, lastExecuted, ts)

		stepCtx := blocks.NewContext(ts, prices, led, cfg)
		stepCtx.History = historiesUpTo(series, ts)
		stepCtx.Volumes = volumesAt(volumes, tokens, ts)

		results := blocks.ExecuteSequence(blockSeq, stepCtx)
		for id, res := range results {
			if !res.OK {
				r.logger.Debug().
					Int64("timestamp_ms", ts).
					Str("block_id", id).
					Msg(res.Message)
			}
		}

		curve = append(curve, domain.EquityCurvePoint{
			TimestampMs: ts,
			EquityUsd:   led.Equity(prices),
		})
		lastExecuted = ts
	}

	// 4. Missing data on every step is fatal; partial gaps are not
	if len(curve) == 0 {
		return nil, domain.NewDataError("no usable price data between %d and %d", cfg.StartMs, cfg.EndMs)
	}

	trades := led.Trades()
	return &Result{
		Metrics:      metrics.Compute(curve, trades),
		EquityCurve:  curve,
		Trades:       trades,
		Steps:        len(grid),
		SkippedSteps: skipped,
	}, nil
}

// accrue applies time-proportional interest to every yield-bearing
// position: amount * (APY/365) * days since the last executed step.
// Borrow positions hold negative amounts, so their debt grows by the
// same rule.
func (r *Runner) accrue(led *ledger.Ledger, sinceMs, nowMs int64) {
	days := float64(nowMs-sinceMs) / float64(domain.MsPerDay)
	if days <= 0 {
		return
	}
	for _, pos := range led.Positions() {
		if pos.APYPct == 0 {
			continue
		}
		delta := pos.Amount * (pos.APYPct / 100 / 365) * days
		if delta == 0 {
			continue
		}
		if _, err := led.AdjustPositionAmount(pos.ID, delta); err != nil {
			r.logger.Debug().Str("position_id", pos.ID).Err(err).Msg("accrual skipped")
		}
	}
}

// hasVolumeTriggers reports whether any block needs volume data.
func hasVolumeTriggers(seq []domain.Block) bool {
	for _, b := range seq {
		if b.Kind == domain.KindVolumeTrigger {
			return true
		}
	}
	return false
}
