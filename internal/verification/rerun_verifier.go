package verification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/optimize"
)

// Verifier re-evaluates solutions through the same walk-forward pipeline
// that produced them.
type Verifier struct {
	evaluator *optimize.Evaluator
	logger    zerolog.Logger
}

// VerifierOptions contains configuration for creating a Verifier.
type VerifierOptions struct {
	Evaluator *optimize.Evaluator
	Logger    *zerolog.Logger // optional, defaults to a no-op logger
}

// NewVerifier creates a verifier bound to one strategy's evaluator.
func NewVerifier(opts VerifierOptions) *Verifier {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Verifier{
		evaluator: opts.Evaluator,
		logger:    logger,
	}
}

// VerifySolution re-evaluates one solution's parameters and compares the
// recomputed scores against the recorded ones.
func (v *Verifier) VerifySolution(ctx context.Context, sol *domain.Solution) (*SolutionResult, error) {
	result := &SolutionResult{SolutionID: sol.ID}

	eval, err := v.evaluator.Evaluate(ctx, sol.Parameters)
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, err
	case err != nil && sol.Failed:
		// Recorded as failed, still fails. Consistent.
		result.Match = true
		return result, nil
	case err != nil:
		result.StateChange = fmt.Sprintf("recorded as succeeded but re-evaluation failed: %v", err)
		return result, nil
	case sol.Failed:
		result.StateChange = "recorded as failed but re-evaluation succeeded"
		return result, nil
	}

	result.Divergences = append(result.Divergences,
		CompareScores("inSample", sol.InSampleScores, eval.InSample)...)
	result.Divergences = append(result.Divergences,
		CompareScores("outOfSample", sol.OutOfSampleScores, eval.OutOfSample)...)
	if !floatEquals(sol.DegradationPct, eval.DegradationPct) {
		result.Divergences = append(result.Divergences, FieldDivergence{
			Field:    "degradationPct",
			Expected: sol.DegradationPct,
			Actual:   eval.DegradationPct,
		})
	}

	result.Match = len(result.Divergences) == 0
	return result, nil
}

// VerifyAll re-evaluates every solution sequentially and aggregates the
// outcomes. Typically called with a run's Pareto frontier.
func (v *Verifier) VerifyAll(ctx context.Context, solutions []*domain.Solution) (*Report, error) {
	report := &Report{TotalSolutions: len(solutions)}

	for _, sol := range solutions {
		result, err := v.VerifySolution(ctx, sol)
		if err != nil {
			return nil, fmt.Errorf("verify solution %s: %w", sol.ID, err)
		}

		if result.Match {
			report.MatchedSolutions++
		} else {
			report.DivergentSolutions++
			v.logger.Warn().
				Str("solution_id", sol.ID).
				Str("state_change", result.StateChange).
				Int("divergences", len(result.Divergences)).
				Msg("solution diverged from recorded scores")
		}
		report.Results = append(report.Results, *result)
	}

	return report, nil
}
