package optimize

import (
	"math/rand"
	"sort"

	"defi-strategy-lab/internal/domain"
)

const (
	// mutationRate is the per-parameter mutation probability.
	mutationRate = 0.20
	// mutationSpanPct scales continuous mutation noise to ±10% of the
	// parameter's range.
	mutationSpanPct = 0.10
)

// Genetic evolves a fixed-size population: top half survives by fitness,
// crossover and mutation refill the rest each generation.
type Genetic struct {
	defs       []domain.ParameterDef
	primary    string
	population int
	rng        *rand.Rand

	generation []Observation
}

// NewGenetic creates the search with the given options.
func NewGenetic(opts SearchOptions) *Genetic {
	opts.withDefaults()
	return &Genetic{
		defs:       opts.Definitions,
		primary:    opts.Primary,
		population: opts.InitialSamples,
		rng:        opts.Rand,
	}
}

// Name returns the algorithm identifier.
func (g *Genetic) Name() string { return AlgorithmGenetic }

// InitialBatch draws the starting population uniformly at random.
func (g *Genetic) InitialBatch() []domain.ParameterSet {
	batch := make([]domain.ParameterSet, g.population)
	for i := range batch {
		batch[i] = randomSet(g.defs, g.rng)
	}
	return batch
}

// Observe collects one scored member of the current generation.
func (g *Genetic) Observe(o Observation) {
	g.generation = append(g.generation, o)
}

// NextBatch evolves the observed generation into the next population and
// resets the generation buffer.
func (g *Genetic) NextBatch() []domain.ParameterSet {
	next := g.evolve()
	g.generation = nil
	return next
}

// evolve selects the top half by fitness, keeps it, and refills the
// population with mutated crossover children of random survivor pairs.
func (g *Genetic) evolve() []domain.ParameterSet {
	if len(g.generation) == 0 {
		return g.InitialBatch()
	}

	ranked := make([]Observation, len(g.generation))
	copy(ranked, g.generation)
	sort.SliceStable(ranked, func(i, j int) bool {
		return fitnessOf(ranked[i].Scores, g.primary) > fitnessOf(ranked[j].Scores, g.primary)
	})

	survivors := ranked[:(len(ranked)+1)/2]

	next := make([]domain.ParameterSet, 0, g.population)
	for _, s := range survivors {
		next = append(next, s.Params.Clone())
	}
	for len(next) < g.population {
		p1 := survivors[g.rng.Intn(len(survivors))].Params
		p2 := survivors[g.rng.Intn(len(survivors))].Params
		next = append(next, g.mutate(g.crossover(p1, p2)))
	}
	return next
}

// crossover blends two parents: uniform pick per discrete parameter,
// linear blend for continuous ones.
func (g *Genetic) crossover(p1, p2 domain.ParameterSet) domain.ParameterSet {
	child := make(domain.ParameterSet, len(g.defs))
	for _, def := range g.defs {
		v1, _ := p1.Get(def.BlockID, def.Name)
		v2, _ := p2.Get(def.BlockID, def.Name)

		var v float64
		if def.Type == domain.ParamDiscrete {
			if g.rng.Float64() < 0.5 {
				v = v1
			} else {
				v = v2
			}
		} else {
			t := g.rng.Float64()
			v = t*v1 + (1-t)*v2
		}
		child.Set(def.BlockID, def.Name, v)
	}
	return child
}

// mutate rewrites each parameter with probability mutationRate: discrete
// values re-roll, continuous values shift by up to ±10% of their range and
// clamp to bounds.
func (g *Genetic) mutate(ps domain.ParameterSet) domain.ParameterSet {
	for _, def := range g.defs {
		if g.rng.Float64() >= mutationRate {
			continue
		}
		if def.Type == domain.ParamDiscrete {
			ps.Set(def.BlockID, def.Name, randomValue(def, g.rng))
			continue
		}
		v, _ := ps.Get(def.BlockID, def.Name)
		noise := (g.rng.Float64()*2 - 1) * mutationSpanPct * def.Span()
		ps.Set(def.BlockID, def.Name, def.Clamp(v+noise))
	}
	return ps
}
