package metrics

import (
	"encoding/json"
	"math"

	"defi-strategy-lab/internal/domain"
)

// Metrics holds the scalar performance and risk statistics derived from a
// single simulation run.
type Metrics struct {
	SharpeRatio    float64 `json:"sharpeRatio"`
	SortinoRatio   float64 `json:"sortinoRatio"`
	CalmarRatio    float64 `json:"calmarRatio"`
	TotalReturnPct float64 `json:"totalReturn"`
	MaxDrawdownPct float64 `json:"maxDrawdown"`
	WinRatePct     float64 `json:"winRate"`

	WinTrades   int `json:"winTrades"`
	TotalTrades int `json:"totalTrades"`

	TotalGasUsd  float64 `json:"totalGasSpent"`
	TotalFeesUsd float64 `json:"totalFeesSpent"`
}

// Compute derives all metrics from an equity curve and its trade log.
// The curve must be in chronological order. Degenerate input (empty or
// single-point curves, zero-variance returns) produces zeros, never NaN.
func Compute(curve []domain.EquityCurvePoint, trades []domain.Trade) *Metrics {
	m := &Metrics{TotalTrades: len(trades)}

	for _, t := range trades {
		m.TotalGasUsd += t.GasCostUsd
		m.TotalFeesUsd += t.FeesUsd
	}

	wins, pairs := computeWinPairs(trades)
	m.WinTrades = wins
	if pairs > 0 {
		m.WinRatePct = float64(wins) / float64(pairs) * 100
	}

	if len(curve) == 0 {
		return m
	}

	first := curve[0]
	last := curve[len(curve)-1]
	if first.EquityUsd > 0 {
		m.TotalReturnPct = (last.EquityUsd - first.EquityUsd) / first.EquityUsd * 100
	}

	returns := dailyReturns(curve)
	m.SharpeRatio = computeSharpe(returns)
	m.SortinoRatio = computeSortino(returns)
	m.MaxDrawdownPct = computeMaxDrawdown(curve)

	annualized := m.TotalReturnPct
	if rangeDays := float64(last.TimestampMs-first.TimestampMs) / float64(domain.MsPerDay); rangeDays > 0 {
		annualized = m.TotalReturnPct * daysPerYear / rangeDays
	}
	m.CalmarRatio = computeCalmar(annualized, m.MaxDrawdownPct)

	return m
}

// MarshalJSON renders the Sortino and Calmar ratios as null when they are
// infinite (no downside interval, zero drawdown); encoding/json rejects IEEE
// infinities outright.
func (m *Metrics) MarshalJSON() ([]byte, error) {
	type alias Metrics
	return json.Marshal(struct {
		*alias
		SortinoRatio *float64 `json:"sortinoRatio"`
		CalmarRatio  *float64 `json:"calmarRatio"`
	}{
		alias:        (*alias)(m),
		SortinoRatio: finiteOrNil(m.SortinoRatio),
		CalmarRatio:  finiteOrNil(m.CalmarRatio),
	})
}

func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// Objectives projects the metrics onto the fixed objective set used by the
// optimizer. Only finite, per-window averageable statistics are included.
func (m *Metrics) Objectives() domain.ObjectiveScores {
	return domain.ObjectiveScores{
		domain.ObjectiveSharpe:       m.SharpeRatio,
		domain.ObjectiveTotalReturn:  m.TotalReturnPct,
		domain.ObjectiveMaxDrawdown:  m.MaxDrawdownPct,
		domain.ObjectiveWinRate:      m.WinRatePct,
		domain.ObjectiveGasCosts:     m.TotalGasUsd,
		domain.ObjectiveProtocolFees: m.TotalFeesUsd,
	}
}
