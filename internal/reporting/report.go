package reporting

import "time"

// Report is the rendered summary of one optimization run.
type Report struct {
	// Metadata
	GeneratedAt  time.Time
	RunID        string
	StrategyName string
	Algorithm    string
	Objectives   []string

	// Run totals
	MaxIterations   int
	TotalIterations int
	TotalTime       time.Duration
	CacheHitRate    float64

	// Solutions in evaluation order, and the Pareto frontier sorted by the
	// primary objective (best first).
	Solutions []SolutionRow
	Frontier  []SolutionRow

	Robustness RobustnessSection

	// Errors collected during the run, one per failed evaluation.
	Errors []string
}

// SolutionRow is one evaluated candidate, with parameters flattened to a
// printable "block.param=value" list.
type SolutionRow struct {
	ID              string
	Parameters      string
	InSample        map[string]float64
	OutOfSample     map[string]float64
	DegradationPct  float64
	IsParetoOptimal bool
	Failed          bool
	FailureReason   string
}

// RobustnessVerdict classifies a run by how much its frontier decays
// out-of-sample.
type RobustnessVerdict string

// Verdicts.
const (
	VerdictRobust   RobustnessVerdict = "ROBUST"
	VerdictModerate RobustnessVerdict = "MODERATE"
	VerdictOverfit  RobustnessVerdict = "OVERFIT"
	VerdictNoData   RobustnessVerdict = "NO_DATA"
)

// Degradation thresholds (percent). A frontier whose mean degradation stays
// under the robust bound is trustworthy out-of-sample; past the overfit
// bound its in-sample scores are noise.
const (
	RobustMaxDegradationPct  = 10.0
	OverfitMinDegradationPct = 30.0
)

// RobustnessSection summarizes out-of-sample decay across the frontier.
type RobustnessSection struct {
	MeanDegradationPct  float64
	WorstDegradationPct float64
	Verdict             RobustnessVerdict
}
