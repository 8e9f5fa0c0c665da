package domain

// ParameterSet maps block ID to named numeric overrides. It is the unit the
// optimizer searches over; applying one to a strategy derives per-block
// merged params via Block.WithParams.
type ParameterSet map[string]map[string]float64

// Clone returns a deep copy.
func (ps ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(ps))
	for blockID, params := range ps {
		inner := make(map[string]float64, len(params))
		for name, v := range params {
			inner[name] = v
		}
		out[blockID] = inner
	}
	return out
}

// Get returns the override for blockID/name and whether it is present.
func (ps ParameterSet) Get(blockID, name string) (float64, bool) {
	params, ok := ps[blockID]
	if !ok {
		return 0, false
	}
	v, ok := params[name]
	return v, ok
}

// Set stores an override, allocating the inner map if needed.
func (ps ParameterSet) Set(blockID, name string, v float64) {
	params, ok := ps[blockID]
	if !ok {
		params = make(map[string]float64)
		ps[blockID] = params
	}
	params[name] = v
}

// ParamType distinguishes continuous ranges from discrete value sets.
type ParamType string

// Parameter types.
const (
	ParamContinuous ParamType = "continuous"
	ParamDiscrete   ParamType = "discrete"
)

// ParameterDef declares one searchable parameter of one block: either a
// continuous [Min, Max] range or a discrete set of allowed values.
type ParameterDef struct {
	BlockID string
	Name    string
	Type    ParamType
	Min     float64
	Max     float64
	Values  []float64 // discrete only
}

// Span returns the width of the parameter's range. Discrete parameters span
// their index space so normalized distances stay comparable.
func (d ParameterDef) Span() float64 {
	if d.Type == ParamDiscrete {
		if len(d.Values) < 2 {
			return 0
		}
		return float64(len(d.Values) - 1)
	}
	return d.Max - d.Min
}

// Normalize maps a value into [0, 1] within the parameter's range. Values
// outside the range are clamped.
func (d ParameterDef) Normalize(v float64) float64 {
	if d.Type == ParamDiscrete {
		if len(d.Values) < 2 {
			return 0
		}
		idx := 0
		for i, allowed := range d.Values {
			if allowed == v {
				idx = i
				break
			}
		}
		return float64(idx) / float64(len(d.Values)-1)
	}
	span := d.Max - d.Min
	if span <= 0 {
		return 0
	}
	n := (v - d.Min) / span
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// Clamp restricts a continuous value to [Min, Max]. Discrete values snap to
// the nearest allowed value.
func (d ParameterDef) Clamp(v float64) float64 {
	if d.Type == ParamDiscrete {
		if len(d.Values) == 0 {
			return v
		}
		best := d.Values[0]
		bestDist := absFloat(v - best)
		for _, allowed := range d.Values[1:] {
			if dist := absFloat(v - allowed); dist < bestDist {
				best = allowed
				bestDist = dist
			}
		}
		return best
	}
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ObjectiveScores maps objective name to its value for one evaluated
// simulation (or an average across walk-forward windows).
type ObjectiveScores map[string]float64

// Clone returns a shallow copy.
func (s ObjectiveScores) Clone() ObjectiveScores {
	out := make(ObjectiveScores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Objective names.
const (
	ObjectiveSharpe       = "sharpeRatio"
	ObjectiveTotalReturn  = "totalReturn"
	ObjectiveMaxDrawdown  = "maxDrawdown"
	ObjectiveWinRate      = "winRate"
	ObjectiveGasCosts     = "gasCosts"
	ObjectiveProtocolFees = "protocolFees"
)

// AllObjectives lists every supported objective name.
var AllObjectives = []string{
	ObjectiveSharpe,
	ObjectiveTotalReturn,
	ObjectiveMaxDrawdown,
	ObjectiveWinRate,
	ObjectiveGasCosts,
	ObjectiveProtocolFees,
}

// ObjectiveMaximized reports the optimization direction of an objective:
// Sharpe, total return and win rate are maximized, everything else
// (drawdown, costs, fees) is minimized.
func ObjectiveMaximized(name string) bool {
	switch name {
	case ObjectiveSharpe, ObjectiveTotalReturn, ObjectiveWinRate:
		return true
	default:
		return false
	}
}

// KnownObjective reports whether name is a supported objective.
func KnownObjective(name string) bool {
	for _, o := range AllObjectives {
		if o == name {
			return true
		}
	}
	return false
}
