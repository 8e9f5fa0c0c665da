package idhash

import (
	"testing"

	"defi-strategy-lab/internal/domain"
)

func TestComputeEvaluationKey(t *testing.T) {
	blocks := strategyBlocks()
	cfg := domain.BacktestConfig{
		StartMs:             1700000000000,
		EndMs:               1700864000000,
		InitialCapital:      10000,
		CapitalToken:        "USDC",
		RebalanceIntervalMs: domain.MsPerDay,
	}
	objectives := []string{domain.ObjectiveSharpe, domain.ObjectiveTotalReturn}
	params := domain.ParameterSet{"trigger-1": {"target": 3100}}

	key := ComputeEvaluationKey(blocks, cfg, objectives, params)
	if len(key) != 64 {
		t.Errorf("expected 64-character hash, got %d characters", len(key))
	}

	// Objective order must not matter.
	flipped := ComputeEvaluationKey(blocks, cfg, []string{domain.ObjectiveTotalReturn, domain.ObjectiveSharpe}, params)
	if flipped != key {
		t.Error("expected objective order not to change the key")
	}

	// Anything that changes the scores must change the key.
	if ComputeEvaluationKey(blocks, cfg.WithRange(cfg.StartMs, cfg.EndMs+domain.MsPerDay), objectives, params) == key {
		t.Error("expected different key for different date range")
	}
	if ComputeEvaluationKey(blocks, cfg, []string{domain.ObjectiveSharpe}, params) == key {
		t.Error("expected different key for different objective list")
	}
	if ComputeEvaluationKey(blocks, cfg, objectives, domain.ParameterSet{"trigger-1": {"target": 3200}}) == key {
		t.Error("expected different key for different parameters")
	}

	other := strategyBlocks()
	other[0].InputToken = "SOL"
	if ComputeEvaluationKey(other, cfg, objectives, params) == key {
		t.Error("expected different key for different strategy")
	}
}
