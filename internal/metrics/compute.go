package metrics

import (
	"math"

	"defi-strategy-lab/internal/domain"
)

const daysPerYear = 365.0

// dailyReturns derives consecutive relative returns from an equity curve:
// r_i = (e_i - e_{i-1}) / e_{i-1}. Pairs with a non-positive previous
// equity are skipped rather than producing NaN or Inf.
func dailyReturns(curve []domain.EquityCurvePoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].EquityUsd
		if prev <= 0 {
			continue
		}
		returns = append(returns, (curve[i].EquityUsd-prev)/prev)
	}
	return returns
}

// computeMean calculates the arithmetic mean. Returns 0 on empty input.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computeSharpe annualizes mean(returns)/stddev(returns) with a 365-day
// factor. Returns 0 when the deviation is 0 or there are too few samples.
func computeSharpe(returns []float64) float64 {
	mean := computeMean(returns)
	stddev := computeStddev(returns, mean)
	if stddev == 0 {
		return 0
	}
	return mean / stddev * math.Sqrt(daysPerYear)
}

// computeSortino is Sharpe with the denominator restricted to the
// negative-return subset. A curve with no losing interval has no downside
// deviation at all, which is reported as +Inf rather than 0.
func computeSortino(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return math.Inf(1)
	}
	downDev := computeStddev(downside, computeMean(downside))
	if downDev == 0 {
		return 0
	}
	return computeMean(returns) / downDev * math.Sqrt(daysPerYear)
}

// computeMaxDrawdown tracks a running equity peak and returns the worst
// (peak-current)/peak decline as a percentage in [0, 100]. A non-decreasing
// curve yields exactly 0.
func computeMaxDrawdown(curve []domain.EquityCurvePoint) float64 {
	peak := 0.0
	maxDrawdown := 0.0
	for _, p := range curve {
		if p.EquityUsd > peak {
			peak = p.EquityUsd
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - p.EquityUsd) / peak * 100
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	if maxDrawdown > 100 {
		return 100
	}
	return maxDrawdown
}

// computeCalmar divides the annualized total return by the max drawdown.
// A strictly rising curve (drawdown 0, positive return) is +Inf; a flat
// curve degrades to 0.
func computeCalmar(annualizedReturnPct, maxDrawdownPct float64) float64 {
	if maxDrawdownPct == 0 {
		if annualizedReturnPct > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return annualizedReturnPct / maxDrawdownPct
}

// computeWinPairs walks the trade log in order, pairing trades (0,1),
// (2,3), ... as entry/exit legs. A pair wins when the exit leg moved more
// USD value than the entry leg. A trailing unpaired trade is ignored.
func computeWinPairs(trades []domain.Trade) (wins, pairs int) {
	for i := 0; i+1 < len(trades); i += 2 {
		pairs++
		if trades[i+1].ValueUsd() > trades[i].ValueUsd() {
			wins++
		}
	}
	return wins, pairs
}

// AverageObjectives averages a list of score maps per objective. An
// objective is averaged over the maps that carry it; accumulation follows
// list order so equal inputs give bit-equal results.
func AverageObjectives(scores []domain.ObjectiveScores) domain.ObjectiveScores {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range scores {
		for name, v := range s {
			sums[name] += v
			counts[name]++
		}
	}
	out := make(domain.ObjectiveScores, len(sums))
	for name, sum := range sums {
		out[name] = sum / float64(counts[name])
	}
	return out
}
