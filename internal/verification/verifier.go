// Package verification re-runs stored solutions and checks that the
// recomputed scores match the recorded ones. Evaluation is deterministic for
// fixed inputs, so a divergence means the engine changed or the stored data
// did.
package verification

import (
	"math"
	"sort"

	"defi-strategy-lab/internal/domain"
)

// FloatTolerance is the tolerance for score comparisons. It absorbs
// architecture-level differences in float rounding (fused multiply-add)
// between the machine that recorded a solution and the one verifying it.
const FloatTolerance = 1e-9

// FieldDivergence is one mismatch between a recorded and a recomputed
// value.
type FieldDivergence struct {
	Field    string
	Expected float64 // recorded
	Actual   float64 // recomputed
}

// SolutionResult is the verification outcome for a single solution.
type SolutionResult struct {
	SolutionID string
	Match      bool

	// StateChange is set when the solution's failed/succeeded state
	// flipped on re-evaluation; Divergences stays empty in that case.
	StateChange string
	Divergences []FieldDivergence
}

// Report aggregates verification outcomes across solutions.
type Report struct {
	TotalSolutions     int
	MatchedSolutions   int
	DivergentSolutions int
	Results            []SolutionResult
}

// AllMatch reports whether every verified solution matched.
func (r *Report) AllMatch() bool {
	return r.DivergentSolutions == 0
}

// CompareScores compares two score maps field by field. Objectives present
// on only one side count as divergences against zero.
func CompareScores(prefix string, recorded, recomputed domain.ObjectiveScores) []FieldDivergence {
	names := make(map[string]bool, len(recorded)+len(recomputed))
	for name := range recorded {
		names[name] = true
	}
	for name := range recomputed {
		names[name] = true
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	var divergences []FieldDivergence
	for _, name := range ordered {
		expected, actual := recorded[name], recomputed[name]
		if !floatEquals(expected, actual) {
			divergences = append(divergences, FieldDivergence{
				Field:    prefix + "." + name,
				Expected: expected,
				Actual:   actual,
			})
		}
	}
	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
