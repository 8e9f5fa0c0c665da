package verification

import (
	"context"
	"strings"
	"testing"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/optimize"
	"defi-strategy-lab/internal/pricing"
	"defi-strategy-lab/internal/simulation"
)

const verifyStartMs = int64(1700000000000)

func verifyOracle() pricing.Oracle {
	pts := make([]domain.PricePoint, 11)
	for i := range pts {
		pts[i] = domain.PricePoint{
			TimestampMs: verifyStartMs + int64(i)*domain.MsPerDay,
			Price:       2900 + float64(i)*20,
		}
	}
	return pricing.NewStaticOracle(map[string][]domain.PricePoint{"ETH": pts}, nil)
}

func verifyBlocks() []domain.Block {
	return []domain.Block{
		{
			ID: "entry", Kind: domain.KindPriceTrigger, Category: domain.CategoryEntry,
			InputToken: "ETH", Comparator: domain.CmpGTE,
			Params: map[string]float64{"target": 3000},
		},
		{
			ID: "buy", Kind: domain.KindSwap, Category: domain.CategoryProtocol,
			InputToken: "USDC", OutputToken: "ETH",
			Params: map[string]float64{"amount": 1000},
		},
	}
}

func verifyConfig() domain.BacktestConfig {
	return domain.BacktestConfig{
		StartMs:             verifyStartMs,
		EndMs:               verifyStartMs + 10*domain.MsPerDay,
		InitialCapital:      10000,
		CapitalToken:        "USDC",
		RebalanceIntervalMs: domain.MsPerDay,
	}
}

func verifyEvaluator(oracle pricing.Oracle) *optimize.Evaluator {
	runner := simulation.NewRunner(simulation.RunnerOptions{Oracle: oracle})
	return optimize.NewEvaluator(runner, verifyBlocks(), verifyConfig(), domain.AllObjectives)
}

// recordedSolution evaluates params through the real pipeline and wraps the
// result the way a finished optimization run would store it.
func recordedSolution(t *testing.T, eval *optimize.Evaluator, id string, params domain.ParameterSet) *domain.Solution {
	t.Helper()
	res, err := eval.Evaluate(context.Background(), params)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	return &domain.Solution{
		ID:                id,
		Parameters:        params,
		InSampleScores:    res.InSample,
		OutOfSampleScores: res.OutOfSample,
		DegradationPct:    res.DegradationPct,
	}
}

func TestVerifySolution_MatchesRecordedScores(t *testing.T) {
	eval := verifyEvaluator(verifyOracle())
	v := NewVerifier(VerifierOptions{Evaluator: eval})

	sol := recordedSolution(t, eval, "sol-1", domain.ParameterSet{
		"entry": {"target": 2950},
	})

	res, err := v.VerifySolution(context.Background(), sol)
	if err != nil {
		t.Fatalf("VerifySolution failed: %v", err)
	}
	if !res.Match {
		t.Errorf("Expected match, got divergences %v, state change %q", res.Divergences, res.StateChange)
	}
	if len(res.Divergences) != 0 {
		t.Errorf("Expected no divergences, got %d", len(res.Divergences))
	}
}

func TestVerifySolution_DetectsCorruptedScore(t *testing.T) {
	eval := verifyEvaluator(verifyOracle())
	v := NewVerifier(VerifierOptions{Evaluator: eval})

	sol := recordedSolution(t, eval, "sol-1", domain.ParameterSet{
		"entry": {"target": 2950},
	})
	sol.OutOfSampleScores[domain.ObjectiveSharpe] += 0.5

	res, err := v.VerifySolution(context.Background(), sol)
	if err != nil {
		t.Fatalf("VerifySolution failed: %v", err)
	}
	if res.Match {
		t.Fatal("Expected divergence to be detected")
	}
	if len(res.Divergences) != 1 {
		t.Fatalf("Expected 1 divergence, got %d: %v", len(res.Divergences), res.Divergences)
	}
	d := res.Divergences[0]
	if d.Field != "outOfSample.sharpeRatio" {
		t.Errorf("Field mismatch: got %q, want %q", d.Field, "outOfSample.sharpeRatio")
	}
	if d.Expected-d.Actual < 0.49 || d.Expected-d.Actual > 0.51 {
		t.Errorf("Divergence delta mismatch: expected %f, actual %f", d.Expected, d.Actual)
	}
}

func TestVerifySolution_FailedStateFlip(t *testing.T) {
	eval := verifyEvaluator(verifyOracle())
	v := NewVerifier(VerifierOptions{Evaluator: eval})

	// Recorded as failed, but the parameters evaluate fine today.
	sol := &domain.Solution{
		ID:            "sol-1",
		Parameters:    domain.ParameterSet{"entry": {"target": 2950}},
		Failed:        true,
		FailureReason: "all walk-forward windows failed",
	}

	res, err := v.VerifySolution(context.Background(), sol)
	if err != nil {
		t.Fatalf("VerifySolution failed: %v", err)
	}
	if res.Match {
		t.Error("Expected state change to break the match")
	}
	if !strings.Contains(res.StateChange, "recorded as failed") {
		t.Errorf("StateChange mismatch: got %q", res.StateChange)
	}
	if len(res.Divergences) != 0 {
		t.Errorf("Expected no field divergences on state change, got %v", res.Divergences)
	}
}

func TestVerifySolution_SucceededStateFlip(t *testing.T) {
	// An oracle without prices fails every window.
	eval := verifyEvaluator(pricing.NewStaticOracle(nil, nil))
	v := NewVerifier(VerifierOptions{Evaluator: eval})

	sol := &domain.Solution{
		ID:         "sol-1",
		Parameters: domain.ParameterSet{"entry": {"target": 2950}},
		InSampleScores: domain.ObjectiveScores{
			domain.ObjectiveSharpe: 1.2,
		},
	}

	res, err := v.VerifySolution(context.Background(), sol)
	if err != nil {
		t.Fatalf("VerifySolution failed: %v", err)
	}
	if res.Match {
		t.Error("Expected state change to break the match")
	}
	if !strings.Contains(res.StateChange, "recorded as succeeded") {
		t.Errorf("StateChange mismatch: got %q", res.StateChange)
	}
}

func TestVerifySolution_ConsistentFailure(t *testing.T) {
	eval := verifyEvaluator(pricing.NewStaticOracle(nil, nil))
	v := NewVerifier(VerifierOptions{Evaluator: eval})

	sol := &domain.Solution{
		ID:         "sol-1",
		Parameters: domain.ParameterSet{"entry": {"target": 2950}},
		Failed:     true,
	}

	res, err := v.VerifySolution(context.Background(), sol)
	if err != nil {
		t.Fatalf("VerifySolution failed: %v", err)
	}
	if !res.Match {
		t.Errorf("Expected consistent failure to match, got state change %q", res.StateChange)
	}
}

func TestVerifySolution_CancelledContext(t *testing.T) {
	eval := verifyEvaluator(verifyOracle())
	v := NewVerifier(VerifierOptions{Evaluator: eval})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sol := &domain.Solution{
		ID:         "sol-1",
		Parameters: domain.ParameterSet{"entry": {"target": 2950}},
	}
	if _, err := v.VerifySolution(ctx, sol); err == nil {
		t.Fatal("Expected cancellation error")
	}
}

func TestVerifyAll_AggregatesResults(t *testing.T) {
	eval := verifyEvaluator(verifyOracle())
	v := NewVerifier(VerifierOptions{Evaluator: eval})

	good := recordedSolution(t, eval, "sol-good", domain.ParameterSet{
		"entry": {"target": 2950},
	})
	bad := recordedSolution(t, eval, "sol-bad", domain.ParameterSet{
		"entry": {"target": 3050},
	})
	bad.InSampleScores[domain.ObjectiveTotalReturn] += 1.0

	report, err := v.VerifyAll(context.Background(), []*domain.Solution{good, bad})
	if err != nil {
		t.Fatalf("VerifyAll failed: %v", err)
	}
	if report.TotalSolutions != 2 {
		t.Errorf("TotalSolutions mismatch: got %d, want 2", report.TotalSolutions)
	}
	if report.MatchedSolutions != 1 {
		t.Errorf("MatchedSolutions mismatch: got %d, want 1", report.MatchedSolutions)
	}
	if report.DivergentSolutions != 1 {
		t.Errorf("DivergentSolutions mismatch: got %d, want 1", report.DivergentSolutions)
	}
	if report.AllMatch() {
		t.Error("Expected AllMatch to be false")
	}
	if len(report.Results) != 2 {
		t.Fatalf("Results length mismatch: got %d, want 2", len(report.Results))
	}
	if report.Results[0].SolutionID != "sol-good" || !report.Results[0].Match {
		t.Errorf("First result mismatch: %+v", report.Results[0])
	}
	if report.Results[1].SolutionID != "sol-bad" || report.Results[1].Match {
		t.Errorf("Second result mismatch: %+v", report.Results[1])
	}
}

func TestVerifyAll_EmptyInput(t *testing.T) {
	v := NewVerifier(VerifierOptions{Evaluator: verifyEvaluator(verifyOracle())})

	report, err := v.VerifyAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("VerifyAll failed: %v", err)
	}
	if report.TotalSolutions != 0 || !report.AllMatch() {
		t.Errorf("Empty report mismatch: %+v", report)
	}
}

func TestCompareScores_OneSidedObjective(t *testing.T) {
	recorded := domain.ObjectiveScores{
		domain.ObjectiveSharpe:      1.5,
		domain.ObjectiveTotalReturn: 12.0,
	}
	recomputed := domain.ObjectiveScores{
		domain.ObjectiveSharpe: 1.5,
	}

	divs := CompareScores("inSample", recorded, recomputed)
	if len(divs) != 1 {
		t.Fatalf("Expected 1 divergence, got %d: %v", len(divs), divs)
	}
	if divs[0].Field != "inSample.totalReturn" {
		t.Errorf("Field mismatch: got %q", divs[0].Field)
	}
	if divs[0].Expected != 12.0 || divs[0].Actual != 0 {
		t.Errorf("Values mismatch: got %+v", divs[0])
	}
}

func TestCompareScores_WithinTolerance(t *testing.T) {
	recorded := domain.ObjectiveScores{domain.ObjectiveSharpe: 1.5}
	recomputed := domain.ObjectiveScores{domain.ObjectiveSharpe: 1.5 + 1e-12}

	if divs := CompareScores("inSample", recorded, recomputed); len(divs) != 0 {
		t.Errorf("Expected tolerance to absorb the difference, got %v", divs)
	}
}
