package optimize

import (
	"math/rand"
	"reflect"
	"testing"

	"defi-strategy-lab/internal/domain"
)

func testDefs() []domain.ParameterDef {
	return []domain.ParameterDef{
		{BlockID: "entry", Name: "target", Type: domain.ParamContinuous, Min: 1000, Max: 2000},
		{BlockID: "buy", Name: "amount", Type: domain.ParamDiscrete, Values: []float64{100, 200, 500}},
	}
}

// assertWithinDefs fails if any value escapes its definition.
func assertWithinDefs(t *testing.T, ps domain.ParameterSet, defs []domain.ParameterDef) {
	t.Helper()
	for _, def := range defs {
		v, ok := ps.Get(def.BlockID, def.Name)
		if !ok {
			t.Fatalf("parameter %s/%s missing", def.BlockID, def.Name)
		}
		if def.Type == domain.ParamDiscrete {
			allowed := false
			for _, a := range def.Values {
				if a == v {
					allowed = true
					break
				}
			}
			if !allowed {
				t.Errorf("discrete %s/%s = %v not in %v", def.BlockID, def.Name, v, def.Values)
			}
			continue
		}
		if v < def.Min || v > def.Max {
			t.Errorf("continuous %s/%s = %v outside [%v, %v]", def.BlockID, def.Name, v, def.Min, def.Max)
		}
	}
}

func TestBayesian_InitialBatchRespectsDefinitions(t *testing.T) {
	b := NewBayesian(SearchOptions{
		Definitions:    testDefs(),
		InitialSamples: 12,
		Rand:           rand.New(rand.NewSource(1)),
	})

	batch := b.InitialBatch()
	if len(batch) != 12 {
		t.Fatalf("expected 12 initial samples, got %d", len(batch))
	}
	for _, ps := range batch {
		assertWithinDefs(t, ps, testDefs())
	}
}

func TestBayesian_SuggestionsStayWithinBounds(t *testing.T) {
	b := NewBayesian(SearchOptions{
		Definitions: testDefs(),
		Rand:        rand.New(rand.NewSource(7)),
	})

	for _, ps := range b.InitialBatch() {
		b.Observe(Observation{
			Params: ps,
			Scores: domain.ObjectiveScores{domain.ObjectiveSharpe: ps["entry"]["target"] / 1000},
		})
	}

	for i := 0; i < 10; i++ {
		batch := b.NextBatch()
		if len(batch) != 1 {
			t.Fatalf("expected one suggestion per round, got %d", len(batch))
		}
		assertWithinDefs(t, batch[0], testDefs())
	}
}

func TestBayesian_DeterministicWithFixedSeed(t *testing.T) {
	run := func() []domain.ParameterSet {
		b := NewBayesian(SearchOptions{
			Definitions: testDefs(),
			Rand:        rand.New(rand.NewSource(42)),
		})
		var all []domain.ParameterSet
		for _, ps := range b.InitialBatch() {
			b.Observe(Observation{Params: ps, Scores: domain.ObjectiveScores{domain.ObjectiveSharpe: 1}})
			all = append(all, ps)
		}
		for i := 0; i < 5; i++ {
			all = append(all, b.NextBatch()...)
		}
		return all
	}

	if !reflect.DeepEqual(run(), run()) {
		t.Error("identical seeds must reproduce the identical search trajectory")
	}
}

func TestBayesian_NextBatchWithoutObservations(t *testing.T) {
	b := NewBayesian(SearchOptions{
		Definitions: testDefs(),
		Rand:        rand.New(rand.NewSource(3)),
	})

	batch := b.NextBatch()
	if len(batch) != 1 {
		t.Fatalf("expected a pure random suggestion, got %d sets", len(batch))
	}
	assertWithinDefs(t, batch[0], testDefs())
}
