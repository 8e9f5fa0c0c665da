package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"defi-strategy-lab/internal/domain"
)

// Job describes one optimization run: the strategy, the searchable
// parameters, the backtest range and the search settings. The same shapes
// double as the JSON payloads of the HTTP API.
type Job struct {
	Name          string          `yaml:"name" json:"name"`
	Algorithm     string          `yaml:"algorithm" json:"algorithm" default:"bayesian" validate:"oneof=bayesian genetic"`
	MaxIterations int             `yaml:"max_iterations" json:"maxIterations" default:"50" validate:"gt=0"`
	Seed          int64           `yaml:"seed" json:"seed,omitempty"`
	Objectives    []string        `yaml:"objectives" json:"objectives,omitempty"`
	Backtest      BacktestSpec    `yaml:"backtest" json:"backtest"`
	Strategy      StrategySpec    `yaml:"strategy" json:"strategy"`
	Parameters    []ParameterSpec `yaml:"parameters" json:"parameters" validate:"min=1,dive"`
}

// StrategySpec is the serializable form of a block sequence.
type StrategySpec struct {
	Name   string      `yaml:"name" json:"name,omitempty"`
	Blocks []BlockSpec `yaml:"blocks" json:"blocks" validate:"min=1,dive"`
}

// BlockSpec is the serializable form of one strategy block.
type BlockSpec struct {
	ID         string             `yaml:"id" json:"id" validate:"required"`
	Kind       string             `yaml:"kind" json:"kind" validate:"required"`
	Category   string             `yaml:"category" json:"category,omitempty"`
	Token      string             `yaml:"token" json:"token,omitempty"`
	Output     string             `yaml:"output" json:"output,omitempty"`
	Protocol   string             `yaml:"protocol" json:"protocol,omitempty"`
	Comparator string             `yaml:"comparator" json:"comparator,omitempty"`
	Indicator  string             `yaml:"indicator" json:"indicator,omitempty"`
	Params     map[string]float64 `yaml:"params" json:"params,omitempty"`
}

// ToDomain converts the block to its domain form, deriving the category from
// the kind when none is given.
func (b BlockSpec) ToDomain() domain.Block {
	kind := domain.BlockKind(b.Kind)
	category := domain.BlockCategory(b.Category)
	if category == "" {
		category = domain.DefaultCategory(kind)
	}
	return domain.Block{
		ID:          b.ID,
		Kind:        kind,
		Category:    category,
		InputToken:  b.Token,
		OutputToken: b.Output,
		Protocol:    b.Protocol,
		Comparator:  b.Comparator,
		Indicator:   b.Indicator,
		Params:      b.Params,
	}
}

// ParameterSpec is the serializable form of one searchable parameter.
type ParameterSpec struct {
	Block  string    `yaml:"block" json:"block" validate:"required"`
	Name   string    `yaml:"name" json:"name" validate:"required"`
	Type   string    `yaml:"type" json:"type" default:"continuous" validate:"oneof=continuous discrete"`
	Min    float64   `yaml:"min" json:"min,omitempty"`
	Max    float64   `yaml:"max" json:"max,omitempty"`
	Values []float64 `yaml:"values" json:"values,omitempty"`
}

// ToDomain converts the entry to a domain parameter definition.
func (p ParameterSpec) ToDomain() domain.ParameterDef {
	return domain.ParameterDef{
		BlockID: p.Block,
		Name:    p.Name,
		Type:    domain.ParamType(p.Type),
		Min:     p.Min,
		Max:     p.Max,
		Values:  p.Values,
	}
}

// BacktestSpec is the serializable form of a backtest configuration. Start
// and End accept a date ("2024-01-31"), an RFC 3339 timestamp, or a raw
// millisecond epoch.
type BacktestSpec struct {
	Start             string   `yaml:"start" json:"start" validate:"required"`
	End               string   `yaml:"end" json:"end" validate:"required"`
	InitialCapital    float64  `yaml:"initial_capital" json:"initialCapital" validate:"gt=0"`
	CapitalToken      string   `yaml:"capital_token" json:"capitalToken" validate:"required"`
	RebalanceInterval Duration `yaml:"rebalance_interval" json:"rebalanceInterval"`
	GasCostUsd        float64  `yaml:"gas_cost_usd" json:"gasCostUsd,omitempty" validate:"gte=0"`
	SwapFeePct        float64  `yaml:"swap_fee_pct" json:"swapFeePct,omitempty" validate:"gte=0"`
}

// SetDefaults fills the rebalance interval.
func (b *BacktestSpec) SetDefaults() {
	if b.RebalanceInterval == 0 {
		b.RebalanceInterval = Duration(24 * time.Hour)
	}
}

// ToDomain parses the time bounds and builds the domain config, applying
// the standard cost defaults.
func (b BacktestSpec) ToDomain() (domain.BacktestConfig, error) {
	startMs, err := parseTimeMs(b.Start)
	if err != nil {
		return domain.BacktestConfig{}, fmt.Errorf("backtest start: %w", err)
	}
	endMs, err := parseTimeMs(b.End)
	if err != nil {
		return domain.BacktestConfig{}, fmt.Errorf("backtest end: %w", err)
	}

	cfg := domain.BacktestConfig{
		StartMs:             startMs,
		EndMs:               endMs,
		InitialCapital:      b.InitialCapital,
		CapitalToken:        b.CapitalToken,
		RebalanceIntervalMs: int64(b.RebalanceInterval.Std() / time.Millisecond),
		GasCostUsd:          b.GasCostUsd,
		SwapFeePct:          b.SwapFeePct,
	}.WithDefaults()
	return cfg, cfg.Validate()
}

// parseTimeMs accepts a millisecond epoch, a date, or an RFC 3339 timestamp.
func parseTimeMs(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized time %q: want a date, RFC 3339 timestamp or millisecond epoch", s)
}

// Blocks converts the strategy to domain blocks in declared order.
func (j *Job) Blocks() []domain.Block {
	out := make([]domain.Block, len(j.Strategy.Blocks))
	for i, b := range j.Strategy.Blocks {
		out[i] = b.ToDomain()
	}
	return out
}

// Definitions converts the parameter specs to domain definitions.
func (j *Job) Definitions() []domain.ParameterDef {
	out := make([]domain.ParameterDef, len(j.Parameters))
	for i, p := range j.Parameters {
		out[i] = p.ToDomain()
	}
	return out
}

// LoadJob reads, defaults and validates a YAML job file.
func LoadJob(path string) (*Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	return ParseJob(b)
}

// ParseJob parses a YAML job document. The HTTP API routes its optimization
// payloads through the same checks.
func ParseJob(b []byte) (*Job, error) {
	var j Job
	if err := yaml.Unmarshal(b, &j); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	if err := j.Check(); err != nil {
		return nil, err
	}
	return &j, nil
}

// Check validates the job: struct tags first, then the rules tags cannot
// express (objective names, parameter ranges, block references).
func (j *Job) Check() error {
	if err := defaults.Set(j); err != nil {
		return fmt.Errorf("apply job defaults: %w", err)
	}
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("validate job: %w", err)
	}

	for _, name := range j.Objectives {
		if !domain.KnownObjective(name) {
			return fmt.Errorf("validate job: unknown objective %q", name)
		}
	}

	blockIDs := make(map[string]bool, len(j.Strategy.Blocks))
	for _, b := range j.Strategy.Blocks {
		if blockIDs[b.ID] {
			return fmt.Errorf("validate job: duplicate block id %q", b.ID)
		}
		blockIDs[b.ID] = true
	}

	for _, p := range j.Parameters {
		if !blockIDs[p.Block] {
			return fmt.Errorf("validate job: parameter %s.%s references an unknown block", p.Block, p.Name)
		}
		switch domain.ParamType(p.Type) {
		case domain.ParamContinuous:
			if p.Max <= p.Min {
				return fmt.Errorf("validate job: parameter %s.%s: max must exceed min", p.Block, p.Name)
			}
		case domain.ParamDiscrete:
			if len(p.Values) == 0 {
				return fmt.Errorf("validate job: parameter %s.%s: discrete values are empty", p.Block, p.Name)
			}
		}
	}

	return nil
}
