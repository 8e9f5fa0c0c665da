package idhash

import (
	"testing"

	"defi-strategy-lab/internal/domain"
)

func TestComputeSolutionID(t *testing.T) {
	params := domain.ParameterSet{
		"trigger-1": {"target": 3000},
		"swap-1":    {"amount": 500},
	}

	id := ComputeSolutionID("run-abc", params)

	if len(id) != 64 {
		t.Errorf("expected 64-character hash, got %d characters", len(id))
	}

	for i := 0; i < 10; i++ {
		again := ComputeSolutionID("run-abc", params)
		if again != id {
			t.Errorf("solution id not deterministic: got %s, want %s", again, id)
		}
	}
}

func TestComputeSolutionID_DistinguishesRuns(t *testing.T) {
	params := domain.ParameterSet{
		"trigger-1": {"target": 3000},
	}

	if ComputeSolutionID("run-a", params) == ComputeSolutionID("run-b", params) {
		t.Error("expected different ids for different runs")
	}

	other := domain.ParameterSet{
		"trigger-1": {"target": 3500},
	}
	if ComputeSolutionID("run-a", params) == ComputeSolutionID("run-a", other) {
		t.Error("expected different ids for different parameter sets")
	}
}
