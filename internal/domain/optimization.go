package domain

// RunStatus is the lifecycle state of an optimization run.
type RunStatus string

// Run statuses.
const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunStopped   RunStatus = "stopped"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// OptimizationRun is the persistable record of one optimization: its inputs
// and, once finished, its aggregate outcome. Solutions are stored separately
// keyed by RunID.
type OptimizationRun struct {
	ID            string
	StrategyID    string // optional reference to a stored strategy
	Algorithm     string // "bayesian" | "genetic"
	Objectives    []string
	MaxIterations int
	Status        RunStatus

	TotalIterations int
	TotalTimeMs     int64
	CacheHitRate    float64
	StartedAtMs     int64
	CompletedAtMs   int64
}
