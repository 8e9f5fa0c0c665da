package optimize

import (
	"testing"

	"defi-strategy-lab/internal/domain"
)

func solution(id string, sharpe, totalReturn float64) *domain.Solution {
	return &domain.Solution{
		ID: id,
		OutOfSampleScores: domain.ObjectiveScores{
			domain.ObjectiveSharpe:      sharpe,
			domain.ObjectiveTotalReturn: totalReturn,
		},
	}
}

func TestFrontier_KeepsNonDominated(t *testing.T) {
	// A beats C on sharpe, B beats C on return; A and B trade off.
	a := solution("a", 2.0, 50)
	b := solution("b", 1.0, 80)
	c := solution("c", 1.0, 40)

	frontier := Frontier([]*domain.Solution{a, b, c}, []string{domain.ObjectiveSharpe, domain.ObjectiveTotalReturn})

	if len(frontier) != 2 {
		t.Fatalf("expected frontier of 2, got %d", len(frontier))
	}
	if !a.IsParetoOptimal || !b.IsParetoOptimal {
		t.Error("expected a and b tagged Pareto-optimal")
	}
	if c.IsParetoOptimal {
		t.Error("c is dominated and must not be tagged")
	}
}

func TestFrontier_EqualScoresAreMutuallyNonDominated(t *testing.T) {
	a := solution("a", 1.0, 50)
	b := solution("b", 1.0, 50)

	frontier := Frontier([]*domain.Solution{a, b}, []string{domain.ObjectiveSharpe, domain.ObjectiveTotalReturn})

	if len(frontier) != 2 {
		t.Fatalf("identical solutions dominate neither way; expected both kept, got %d", len(frontier))
	}
}

func TestFrontier_RecomputesFromScratch(t *testing.T) {
	// A stale optimal tag on a now-dominated solution must be cleared.
	stale := solution("stale", 1.0, 10)
	stale.IsParetoOptimal = true
	better := solution("better", 2.0, 20)

	frontier := Frontier([]*domain.Solution{stale, better}, []string{domain.ObjectiveSharpe, domain.ObjectiveTotalReturn})

	if len(frontier) != 1 || frontier[0].ID != "better" {
		t.Fatalf("expected only the dominating solution, got %d", len(frontier))
	}
	if stale.IsParetoOptimal {
		t.Error("stale Pareto tag was not cleared")
	}
}

func TestFrontier_ExcludesFailedSolutions(t *testing.T) {
	failed := solution("failed", 99, 999)
	failed.Failed = true
	ok := solution("ok", 1.0, 10)

	frontier := Frontier([]*domain.Solution{failed, ok}, []string{domain.ObjectiveSharpe})

	if len(frontier) != 1 || frontier[0].ID != "ok" {
		t.Fatalf("failed solutions must not enter the frontier")
	}
	if failed.IsParetoOptimal {
		t.Error("failed solution tagged Pareto-optimal")
	}
}

func TestDominates_RespectsMinimizedObjectives(t *testing.T) {
	objectives := []string{domain.ObjectiveSharpe, domain.ObjectiveMaxDrawdown}

	lowRisk := domain.ObjectiveScores{domain.ObjectiveSharpe: 1.0, domain.ObjectiveMaxDrawdown: 5}
	highRisk := domain.ObjectiveScores{domain.ObjectiveSharpe: 1.0, domain.ObjectiveMaxDrawdown: 20}

	if !Dominates(lowRisk, highRisk, objectives) {
		t.Error("equal sharpe with lower drawdown must dominate")
	}
	if Dominates(highRisk, lowRisk, objectives) {
		t.Error("higher drawdown must not dominate")
	}
}

func TestDominates_NeedsStrictImprovement(t *testing.T) {
	a := domain.ObjectiveScores{domain.ObjectiveSharpe: 1.0}
	b := domain.ObjectiveScores{domain.ObjectiveSharpe: 1.0}

	if Dominates(a, b, []string{domain.ObjectiveSharpe}) {
		t.Error("equal scores must not dominate")
	}
}
