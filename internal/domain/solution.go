package domain

// Solution is one evaluated optimization candidate. Immutable after creation
// except IsParetoOptimal, which is recomputed whenever the frontier is
// rebuilt.
type Solution struct {
	ID                string
	Parameters        ParameterSet
	InSampleScores    ObjectiveScores
	OutOfSampleScores ObjectiveScores
	DegradationPct    float64
	IsParetoOptimal   bool
	Failed            bool   // true when every walk-forward window failed
	FailureReason     string // populated only for failed solutions
}

// WalkForwardWindow is one train/test split of a date range. Windows satisfy
// TrainStartMs < TrainEndMs <= TestStartMs < TestEndMs and successive test
// segments never overlap.
type WalkForwardWindow struct {
	TrainStartMs int64
	TrainEndMs   int64
	TestStartMs  int64
	TestEndMs    int64
}

// TrainDays returns the train segment length in days.
func (w WalkForwardWindow) TrainDays() float64 {
	return float64(w.TrainEndMs-w.TrainStartMs) / float64(MsPerDay)
}

// TestDays returns the test segment length in days.
func (w WalkForwardWindow) TestDays() float64 {
	return float64(w.TestEndMs-w.TestStartMs) / float64(MsPerDay)
}

// MsPerDay is the number of milliseconds in one day.
const MsPerDay int64 = 24 * 60 * 60 * 1000
