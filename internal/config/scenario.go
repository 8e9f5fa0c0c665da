package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"defi-strategy-lab/internal/domain"
)

// Scenario is the input of a single backtest: a strategy and the window to
// run it over, without the search sections a Job carries. Every job file
// also parses as a scenario, so the same YAML can drive a one-off backtest
// and an optimization.
type Scenario struct {
	Strategy StrategySpec `yaml:"strategy" json:"strategy"`
	Backtest BacktestSpec `yaml:"backtest" json:"backtest"`
}

// Blocks converts the strategy specs to domain blocks.
func (s *Scenario) Blocks() []domain.Block {
	out := make([]domain.Block, len(s.Strategy.Blocks))
	for i, b := range s.Strategy.Blocks {
		out[i] = b.ToDomain()
	}
	return out
}

// LoadScenario reads and defaults a YAML scenario file. Structural checks
// are left to the simulation engine, which reports them as typed errors.
func LoadScenario(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(b)
}

// ParseScenario parses a YAML scenario document.
func ParseScenario(b []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	s.Backtest.SetDefaults()
	return &s, nil
}
