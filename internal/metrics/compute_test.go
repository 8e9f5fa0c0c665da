package metrics

import (
	"encoding/json"
	"math"
	"testing"

	"defi-strategy-lab/internal/domain"
)

const testStartMs = int64(1700000000000)

// testCurve builds an equity curve with points spaced one day apart.
func testCurve(equities ...float64) []domain.EquityCurvePoint {
	pts := make([]domain.EquityCurvePoint, len(equities))
	for i, e := range equities {
		pts[i] = domain.EquityCurvePoint{
			TimestampMs: testStartMs + int64(i)*domain.MsPerDay,
			EquityUsd:   e,
		}
	}
	return pts
}

func TestDailyReturns_Consecutive(t *testing.T) {
	returns := dailyReturns(testCurve(100, 110, 99))

	if len(returns) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(returns))
	}
	if math.Abs(returns[0]-0.10) > 1e-12 {
		t.Errorf("expected first return 0.10, got %f", returns[0])
	}
	if math.Abs(returns[1]-(-0.10)) > 1e-12 {
		t.Errorf("expected second return -0.10, got %f", returns[1])
	}
}

func TestDailyReturns_SkipsNonPositivePrevious(t *testing.T) {
	// The pair following a zero equity point would divide by zero.
	returns := dailyReturns(testCurve(100, 0, 50))

	if len(returns) != 1 {
		t.Fatalf("expected 1 return, got %d", len(returns))
	}
	for _, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			t.Errorf("expected finite return, got %f", r)
		}
	}
}

func TestComputeSharpe_KnownValue(t *testing.T) {
	// mean 0.02, sample stddev 0.01 → 2 * sqrt(365)
	got := computeSharpe([]float64{0.01, 0.02, 0.03})
	want := 2 * math.Sqrt(365)

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected sharpe %f, got %f", want, got)
	}
}

func TestComputeSharpe_ZeroVariance(t *testing.T) {
	if got := computeSharpe([]float64{0.01, 0.01, 0.01}); got != 0 {
		t.Errorf("expected sharpe 0 for constant returns, got %f", got)
	}
	if got := computeSharpe(nil); got != 0 {
		t.Errorf("expected sharpe 0 on empty input, got %f", got)
	}
}

func TestComputeSortino_NoDownside(t *testing.T) {
	got := computeSortino([]float64{0.01, 0.02, 0.0})
	if !math.IsInf(got, 1) {
		t.Errorf("expected +Inf sortino without negative returns, got %f", got)
	}
}

func TestComputeSortino_DownsideSubset(t *testing.T) {
	// downside = {-0.01, -0.03}: mean -0.02, sample stddev sqrt(0.0002)
	returns := []float64{0.02, -0.01, 0.03, -0.03}
	want := 0.0025 / math.Sqrt(0.0002) * math.Sqrt(365)

	got := computeSortino(returns)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected sortino %f, got %f", want, got)
	}
}

func TestComputeSortino_SingleLossDegrades(t *testing.T) {
	// One negative sample has no deviation, so the ratio degrades to 0.
	if got := computeSortino([]float64{0.02, -0.01}); got != 0 {
		t.Errorf("expected sortino 0, got %f", got)
	}
}

func TestComputeMaxDrawdown_NonDecreasingIsZero(t *testing.T) {
	if got := computeMaxDrawdown(testCurve(100, 100, 110)); got != 0 {
		t.Errorf("expected drawdown 0 for non-decreasing curve, got %f", got)
	}
}

func TestComputeMaxDrawdown_PeakToTrough(t *testing.T) {
	// peak 120, trough 90 → (120-90)/120 = 25%
	got := computeMaxDrawdown(testCurve(100, 120, 90, 105))
	if math.Abs(got-25) > 1e-9 {
		t.Errorf("expected drawdown 25, got %f", got)
	}
}

func TestComputeMaxDrawdown_Bounded(t *testing.T) {
	// Equity below zero would exceed 100% without the clamp.
	got := computeMaxDrawdown(testCurve(100, -50))
	if got != 100 {
		t.Errorf("expected drawdown clamped to 100, got %f", got)
	}

	got = computeMaxDrawdown(testCurve(100, 90))
	if got < 0 || got > 100 {
		t.Errorf("expected drawdown in [0, 100], got %f", got)
	}
}

func TestComputeCalmar_ZeroDrawdown(t *testing.T) {
	if got := computeCalmar(50, 0); !math.IsInf(got, 1) {
		t.Errorf("expected +Inf calmar with zero drawdown, got %f", got)
	}
	// A flat curve has zero return and zero drawdown.
	if got := computeCalmar(0, 0); got != 0 {
		t.Errorf("expected calmar 0 for flat curve, got %f", got)
	}
}

func TestComputeWinPairs_DisjointPairs(t *testing.T) {
	trades := []domain.Trade{
		{InputAmount: 1, Price: 100}, // entry 100
		{InputAmount: 1, Price: 110}, // exit 110 → win
		{InputAmount: 2, Price: 60},  // entry 120
		{InputAmount: 1, Price: 115}, // exit 115 → loss
		{InputAmount: 1, Price: 999}, // unpaired, ignored
	}

	wins, pairs := computeWinPairs(trades)
	if pairs != 2 {
		t.Errorf("expected 2 pairs, got %d", pairs)
	}
	if wins != 1 {
		t.Errorf("expected 1 win, got %d", wins)
	}
}

func TestCompute_EndToEnd(t *testing.T) {
	curve := testCurve(1000, 1100, 1050)
	trades := []domain.Trade{
		{InputAmount: 1, Price: 100, GasCostUsd: 1.5, FeesUsd: 3},
		{InputAmount: 1, Price: 110, GasCostUsd: 1.5},
	}

	m := Compute(curve, trades)

	if math.Abs(m.TotalReturnPct-5) > 1e-9 {
		t.Errorf("expected total return 5%%, got %f", m.TotalReturnPct)
	}
	if m.TotalTrades != 2 || m.WinTrades != 1 {
		t.Errorf("expected 2 trades / 1 win, got %d / %d", m.TotalTrades, m.WinTrades)
	}
	if m.WinRatePct != 100 {
		t.Errorf("expected win rate 100%%, got %f", m.WinRatePct)
	}
	if m.TotalGasUsd != 3 {
		t.Errorf("expected gas total 3, got %f", m.TotalGasUsd)
	}
	if m.TotalFeesUsd != 3 {
		t.Errorf("expected fees total 3, got %f", m.TotalFeesUsd)
	}

	wantDD := 50.0 / 1100.0 * 100
	if math.Abs(m.MaxDrawdownPct-wantDD) > 1e-9 {
		t.Errorf("expected drawdown %f, got %f", wantDD, m.MaxDrawdownPct)
	}
	if m.CalmarRatio <= 0 || math.IsInf(m.CalmarRatio, 0) {
		t.Errorf("expected finite positive calmar, got %f", m.CalmarRatio)
	}
}

func TestCompute_DegenerateInputs(t *testing.T) {
	for name, m := range map[string]*Metrics{
		"empty":        Compute(nil, nil),
		"single point": Compute(testCurve(1000), nil),
	} {
		if m.SharpeRatio != 0 || m.TotalReturnPct != 0 || m.MaxDrawdownPct != 0 || m.WinRatePct != 0 {
			t.Errorf("%s: expected zero metrics, got %+v", name, m)
		}
		for field, v := range map[string]float64{
			"sharpe":  m.SharpeRatio,
			"sortino": m.SortinoRatio,
			"calmar":  m.CalmarRatio,
		} {
			if math.IsNaN(v) {
				t.Errorf("%s: %s is NaN", name, field)
			}
		}
	}
}

func TestMetrics_ObjectivesProjection(t *testing.T) {
	m := &Metrics{
		SharpeRatio:    1.5,
		TotalReturnPct: 12,
		MaxDrawdownPct: 8,
		WinRatePct:     60,
		TotalGasUsd:    45,
		TotalFeesUsd:   90,
	}

	obj := m.Objectives()
	if len(obj) != len(domain.AllObjectives) {
		t.Fatalf("expected %d objectives, got %d", len(domain.AllObjectives), len(obj))
	}
	if obj[domain.ObjectiveSharpe] != 1.5 {
		t.Errorf("expected sharpeRatio 1.5, got %f", obj[domain.ObjectiveSharpe])
	}
	if obj[domain.ObjectiveGasCosts] != 45 {
		t.Errorf("expected gasCosts 45, got %f", obj[domain.ObjectiveGasCosts])
	}
}

func TestMetrics_MarshalJSONInfiniteRatios(t *testing.T) {
	m := &Metrics{
		SharpeRatio:  2.1,
		SortinoRatio: math.Inf(1),
		CalmarRatio:  math.Inf(1),
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal metrics with infinite ratios: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["sortinoRatio"] != nil {
		t.Errorf("expected null sortinoRatio, got %v", decoded["sortinoRatio"])
	}
	if decoded["calmarRatio"] != nil {
		t.Errorf("expected null calmarRatio, got %v", decoded["calmarRatio"])
	}
	if decoded["sharpeRatio"] != 2.1 {
		t.Errorf("expected sharpeRatio 2.1, got %v", decoded["sharpeRatio"])
	}
}

func TestAverageObjectives(t *testing.T) {
	avg := AverageObjectives([]domain.ObjectiveScores{
		{domain.ObjectiveSharpe: 1.0, domain.ObjectiveTotalReturn: 10},
		{domain.ObjectiveSharpe: 3.0, domain.ObjectiveTotalReturn: 20},
	})

	if avg[domain.ObjectiveSharpe] != 2.0 {
		t.Errorf("expected sharpe 2.0, got %f", avg[domain.ObjectiveSharpe])
	}
	if avg[domain.ObjectiveTotalReturn] != 15.0 {
		t.Errorf("expected totalReturn 15.0, got %f", avg[domain.ObjectiveTotalReturn])
	}
}

func TestAverageObjectives_PartialCoverage(t *testing.T) {
	avg := AverageObjectives([]domain.ObjectiveScores{
		{domain.ObjectiveSharpe: 2.0},
		{domain.ObjectiveSharpe: 4.0, domain.ObjectiveWinRate: 50},
	})

	if avg[domain.ObjectiveSharpe] != 3.0 {
		t.Errorf("expected sharpe 3.0, got %f", avg[domain.ObjectiveSharpe])
	}
	if avg[domain.ObjectiveWinRate] != 50.0 {
		t.Errorf("expected winRate averaged over its single sample, got %f", avg[domain.ObjectiveWinRate])
	}
	if len(AverageObjectives(nil)) != 0 {
		t.Error("expected empty result for no samples")
	}
}
