// Package optimize hosts the parameter search strategies and the Pareto
// frontier. Searches operate purely on ParameterSet/ObjectiveScores pairs;
// they never touch ledgers or price series.
package optimize

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"defi-strategy-lab/internal/domain"
)

// Supported search algorithms.
const (
	AlgorithmBayesian = "bayesian"
	AlgorithmGenetic  = "genetic"
)

// ErrUnknownAlgorithm is returned for an unrecognized algorithm name.
var ErrUnknownAlgorithm = errors.New("unknown optimization algorithm")

// Observation is one scored evaluation a search learns from.
type Observation struct {
	Params domain.ParameterSet
	Scores domain.ObjectiveScores
}

// Search proposes parameter sets and learns from scored observations. The
// driving loop alternates: evaluate every set in a batch, Observe each
// result, ask for the next batch.
type Search interface {
	// Name returns the algorithm identifier.
	Name() string
	// InitialBatch proposes the first parameter sets to evaluate.
	InitialBatch() []domain.ParameterSet
	// NextBatch proposes the next sets based on observations so far.
	NextBatch() []domain.ParameterSet
	// Observe records one scored evaluation.
	Observe(Observation)
}

// SearchOptions configures a search strategy.
type SearchOptions struct {
	Definitions []domain.ParameterDef
	// Primary is the objective used for scalar fitness ranking inside the
	// search. Defaults to sharpeRatio.
	Primary string
	// InitialSamples sizes the first batch (and the genetic population).
	// Defaults to DefaultInitialSamples.
	InitialSamples int
	// Rand drives all stochastic choices. Defaults to a time-seeded source;
	// inject a fixed seed for reproducible runs.
	Rand *rand.Rand
}

// DefaultInitialSamples is the first-batch size when none is configured.
const DefaultInitialSamples = 20

// FromAlgorithm builds the named search strategy.
func FromAlgorithm(algorithm string, opts SearchOptions) (Search, error) {
	switch algorithm {
	case AlgorithmBayesian:
		return NewBayesian(opts), nil
	case AlgorithmGenetic:
		return NewGenetic(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
}

func (o *SearchOptions) withDefaults() {
	if o.Primary == "" {
		o.Primary = domain.ObjectiveSharpe
	}
	if o.InitialSamples <= 0 {
		o.InitialSamples = DefaultInitialSamples
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

// fitnessOf collapses a score set to one comparable number under the
// primary objective: minimized objectives are negated so that higher
// fitness is always better.
func fitnessOf(scores domain.ObjectiveScores, primary string) float64 {
	v := scores[primary]
	if domain.ObjectiveMaximized(primary) {
		return v
	}
	return -v
}

// randomSet draws one uniform-random parameter set over the definitions.
func randomSet(defs []domain.ParameterDef, rng *rand.Rand) domain.ParameterSet {
	ps := make(domain.ParameterSet, len(defs))
	for _, def := range defs {
		ps.Set(def.BlockID, def.Name, randomValue(def, rng))
	}
	return ps
}

// randomValue draws uniformly within a definition's range or value set.
func randomValue(def domain.ParameterDef, rng *rand.Rand) float64 {
	if def.Type == domain.ParamDiscrete {
		if len(def.Values) == 0 {
			return 0
		}
		return def.Values[rng.Intn(len(def.Values))]
	}
	return def.Min + rng.Float64()*(def.Max-def.Min)
}

// normalizedDistance is the Euclidean distance between two parameter sets
// with every dimension normalized into [0, 1] by its definition.
func normalizedDistance(a, b domain.ParameterSet, defs []domain.ParameterDef) float64 {
	sumSq := 0.0
	for _, def := range defs {
		av, _ := a.Get(def.BlockID, def.Name)
		bv, _ := b.Get(def.BlockID, def.Name)
		d := def.Normalize(av) - def.Normalize(bv)
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}
