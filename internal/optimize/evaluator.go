package optimize

import (
	"context"
	"errors"
	"fmt"

	"defi-strategy-lab/internal/blocks"
	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/metrics"
	"defi-strategy-lab/internal/simulation"
	"defi-strategy-lab/internal/walkforward"
)

// ErrAllWindowsFailed marks a candidate none of whose walk-forward windows
// produced a usable simulation. Callers record such candidates as failed
// solutions instead of aborting the whole search.
var ErrAllWindowsFailed = errors.New("all walk-forward windows failed")

// Evaluator scores parameter sets by running the strategy across
// walk-forward windows: train and test simulations per window, objective
// scores averaged per side.
type Evaluator struct {
	runner     *simulation.Runner
	blocks     []domain.Block
	cfg        domain.BacktestConfig
	objectives []string
}

// NewEvaluator builds an evaluator for one strategy and backtest range.
// An empty objectives list keeps every supported objective.
func NewEvaluator(runner *simulation.Runner, blockSeq []domain.Block, cfg domain.BacktestConfig, objectives []string) *Evaluator {
	if len(objectives) == 0 {
		objectives = domain.AllObjectives
	}
	return &Evaluator{
		runner:     runner,
		blocks:     blockSeq,
		cfg:        cfg,
		objectives: objectives,
	}
}

// Objectives returns the objective names this evaluator scores.
func (e *Evaluator) Objectives() []string { return e.objectives }

// Evaluation is the walk-forward-validated outcome for one parameter set.
type Evaluation struct {
	InSample       domain.ObjectiveScores
	OutOfSample    domain.ObjectiveScores
	DegradationPct float64
}

// Evaluate applies params to the strategy and scores it over every
// walk-forward window of the configured range. A window whose train or test
// simulation fails is dropped; the candidate errors only when no window
// succeeds. Structural failures and cancellation abort immediately since
// they would fail every window the same way.
func (e *Evaluator) Evaluate(ctx context.Context, params domain.ParameterSet) (*Evaluation, error) {
	seq := blocks.ApplyParameters(e.blocks, params)
	windows := walkforward.GenerateWindows(e.cfg.StartMs, e.cfg.EndMs)

	inScores := make([]domain.ObjectiveScores, 0, len(windows))
	outScores := make([]domain.ObjectiveScores, 0, len(windows))
	var lastErr error
	for _, w := range windows {
		trainRes, err := e.runner.Run(ctx, seq, e.cfg.WithRange(w.TrainStartMs, w.TrainEndMs))
		if err != nil {
			if fatalEvaluation(err) {
				return nil, fmt.Errorf("train window [%d, %d): %w", w.TrainStartMs, w.TrainEndMs, err)
			}
			lastErr = fmt.Errorf("train window [%d, %d): %w", w.TrainStartMs, w.TrainEndMs, err)
			continue
		}

		testRes, err := e.runner.Run(ctx, seq, e.cfg.WithRange(w.TestStartMs, w.TestEndMs))
		if err != nil {
			if fatalEvaluation(err) {
				return nil, fmt.Errorf("test window [%d, %d): %w", w.TestStartMs, w.TestEndMs, err)
			}
			lastErr = fmt.Errorf("test window [%d, %d): %w", w.TestStartMs, w.TestEndMs, err)
			continue
		}

		inScores = append(inScores, e.filter(trainRes.Metrics.Objectives()))
		outScores = append(outScores, e.filter(testRes.Metrics.Objectives()))
	}

	if len(inScores) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrAllWindowsFailed, lastErr)
		}
		return nil, ErrAllWindowsFailed
	}

	in := metrics.AverageObjectives(inScores)
	out := metrics.AverageObjectives(outScores)
	return &Evaluation{
		InSample:       in,
		OutOfSample:    out,
		DegradationPct: walkforward.Degradation(in, out),
	}, nil
}

// fatalEvaluation reports errors that no later window can recover from.
func fatalEvaluation(err error) bool {
	var structural *domain.StructuralError
	if errors.As(err, &structural) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// filter keeps only the evaluator's objectives.
func (e *Evaluator) filter(scores domain.ObjectiveScores) domain.ObjectiveScores {
	kept := make(domain.ObjectiveScores, len(e.objectives))
	for _, name := range e.objectives {
		if v, ok := scores[name]; ok {
			kept[name] = v
		}
	}
	return kept
}
