package optimize

import (
	"math"
	"math/rand"

	"defi-strategy-lab/internal/domain"
)

const (
	// candidatePoolSize is how many random candidates each suggestion draws.
	candidatePoolSize = 20
	// explorationDistance is the normalized distance from the best-observed
	// point a suggestion aims for: close enough to exploit, far enough to
	// keep exploring. Acts as a cheap expected-improvement proxy in place of
	// a Gaussian-process surrogate.
	explorationDistance = 0.15
)

// Bayesian is a surrogate-free Bayesian-style search: it keeps every
// observation and suggests candidates near the best one seen so far.
type Bayesian struct {
	defs           []domain.ParameterDef
	primary        string
	initialSamples int
	rng            *rand.Rand

	observations []Observation
}

// NewBayesian creates the search with the given options.
func NewBayesian(opts SearchOptions) *Bayesian {
	opts.withDefaults()
	return &Bayesian{
		defs:           opts.Definitions,
		primary:        opts.Primary,
		initialSamples: opts.InitialSamples,
		rng:            opts.Rand,
	}
}

// Name returns the algorithm identifier.
func (b *Bayesian) Name() string { return AlgorithmBayesian }

// InitialBatch draws uniform-random parameter sets to seed the
// observation list.
func (b *Bayesian) InitialBatch() []domain.ParameterSet {
	batch := make([]domain.ParameterSet, b.initialSamples)
	for i := range batch {
		batch[i] = randomSet(b.defs, b.rng)
	}
	return batch
}

// Observe records a scored evaluation.
func (b *Bayesian) Observe(o Observation) {
	b.observations = append(b.observations, o)
}

// NextBatch proposes a single suggestion per round.
func (b *Bayesian) NextBatch() []domain.ParameterSet {
	return []domain.ParameterSet{b.suggestNext()}
}

// suggestNext draws candidatePoolSize random sets and picks the one whose
// normalized distance to the best observation is closest to
// explorationDistance. With no observations yet it falls back to a pure
// random draw.
func (b *Bayesian) suggestNext() domain.ParameterSet {
	best, ok := b.bestObservation()
	if !ok {
		return randomSet(b.defs, b.rng)
	}

	var chosen domain.ParameterSet
	bestScore := math.Inf(1)
	for i := 0; i < candidatePoolSize; i++ {
		cand := randomSet(b.defs, b.rng)
		score := math.Abs(normalizedDistance(cand, best.Params, b.defs) - explorationDistance)
		if score < bestScore {
			bestScore = score
			chosen = cand
		}
	}
	return chosen
}

// bestObservation returns the observation with the highest fitness under
// the primary objective.
func (b *Bayesian) bestObservation() (Observation, bool) {
	if len(b.observations) == 0 {
		return Observation{}, false
	}
	best := b.observations[0]
	bestFit := fitnessOf(best.Scores, b.primary)
	for _, o := range b.observations[1:] {
		if fit := fitnessOf(o.Scores, b.primary); fit > bestFit {
			best = o
			bestFit = fit
		}
	}
	return best, true
}
