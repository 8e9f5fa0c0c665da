package optimize

import (
	"defi-strategy-lab/internal/domain"
)

// Dominates reports whether scores a dominate scores b over the given
// objectives: a is never worse on any of them and strictly better on at
// least one, respecting each objective's direction.
func Dominates(a, b domain.ObjectiveScores, objectives []string) bool {
	strictlyBetter := false
	for _, name := range objectives {
		av, bv := a[name], b[name]
		if domain.ObjectiveMaximized(name) {
			if av < bv {
				return false
			}
			if av > bv {
				strictlyBetter = true
			}
		} else {
			if av > bv {
				return false
			}
			if av < bv {
				strictlyBetter = true
			}
		}
	}
	return strictlyBetter
}

// Frontier recomputes the Pareto-optimal subset of the pool from scratch
// over out-of-sample scores, retagging IsParetoOptimal on every solution.
// Failed solutions never enter the frontier and never dominate.
func Frontier(pool []*domain.Solution, objectives []string) []*domain.Solution {
	for _, s := range pool {
		s.IsParetoOptimal = false
	}

	var frontier []*domain.Solution
	for i, s := range pool {
		if s.Failed {
			continue
		}
		dominated := false
		for j, other := range pool {
			if i == j || other.Failed {
				continue
			}
			if Dominates(other.OutOfSampleScores, s.OutOfSampleScores, objectives) {
				dominated = true
				break
			}
		}
		if !dominated {
			s.IsParetoOptimal = true
			frontier = append(frontier, s)
		}
	}
	return frontier
}
