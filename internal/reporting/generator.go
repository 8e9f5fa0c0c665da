// Package reporting renders optimization results as markdown and CSV.
package reporting

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/orchestrator"
)

// Generator produces reports from run results.
type Generator struct {
	strategyName string
	algorithm    string
	objectives   []string
	maxIter      int
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator for one run's fixed inputs.
func NewGenerator(strategyName, algorithm string, objectives []string, maxIterations int) *Generator {
	return &Generator{
		strategyName: strategyName,
		algorithm:    algorithm,
		objectives:   objectives,
		maxIter:      maxIterations,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Build assembles a report from a finished run.
func (g *Generator) Build(res *orchestrator.RunResult) *Report {
	report := &Report{
		GeneratedAt:     g.now(),
		RunID:           res.RunID,
		StrategyName:    g.strategyName,
		Algorithm:       g.algorithm,
		Objectives:      append([]string(nil), g.objectives...),
		MaxIterations:   g.maxIter,
		TotalIterations: res.TotalIterations,
		TotalTime:       res.TotalTime,
		CacheHitRate:    res.CacheHitRate,
		Solutions:       solutionRows(res.Solutions),
		Frontier:        solutionRows(res.ParetoFrontier),
		Errors:          append([]string(nil), res.Errors...),
	}

	g.sortFrontier(report.Frontier)
	report.Robustness = robustness(report.Frontier)
	return report
}

// sortFrontier orders rows best-first by the primary objective's
// out-of-sample score, honoring its optimization direction.
func (g *Generator) sortFrontier(rows []SolutionRow) {
	if len(g.objectives) == 0 {
		return
	}
	primary := g.objectives[0]
	maximize := domain.ObjectiveMaximized(primary)

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].OutOfSample[primary], rows[j].OutOfSample[primary]
		if maximize {
			return a > b
		}
		return a < b
	})
}

func robustness(frontier []SolutionRow) RobustnessSection {
	if len(frontier) == 0 {
		return RobustnessSection{Verdict: VerdictNoData}
	}

	sum, worst := 0.0, 0.0
	for _, row := range frontier {
		sum += row.DegradationPct
		if row.DegradationPct > worst {
			worst = row.DegradationPct
		}
	}
	mean := sum / float64(len(frontier))

	verdict := VerdictModerate
	switch {
	case mean < RobustMaxDegradationPct:
		verdict = VerdictRobust
	case mean > OverfitMinDegradationPct:
		verdict = VerdictOverfit
	}

	return RobustnessSection{
		MeanDegradationPct:  mean,
		WorstDegradationPct: worst,
		Verdict:             verdict,
	}
}

func solutionRows(solutions []*domain.Solution) []SolutionRow {
	rows := make([]SolutionRow, len(solutions))
	for i, sol := range solutions {
		rows[i] = SolutionRow{
			ID:              sol.ID,
			Parameters:      FormatParameters(sol.Parameters),
			InSample:        sol.InSampleScores,
			OutOfSample:     sol.OutOfSampleScores,
			DegradationPct:  sol.DegradationPct,
			IsParetoOptimal: sol.IsParetoOptimal,
			Failed:          sol.Failed,
			FailureReason:   sol.FailureReason,
		}
	}
	return rows
}

// FormatParameters flattens a parameter set to "block.param=value" pairs in
// sorted order, joined by "; ".
func FormatParameters(ps domain.ParameterSet) string {
	var pairs []string
	for blockID, params := range ps {
		for name, v := range params {
			pairs = append(pairs, fmt.Sprintf("%s.%s=%s", blockID, name, strconv.FormatFloat(v, 'g', -1, 64)))
		}
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "; ")
}
