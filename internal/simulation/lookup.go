package simulation

import (
	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/pricing"
)

// resolvePrices resolves one price per token for a step: interpolation
// first, nearest positive sample as the fallback. The capital token
// defaults to 1.0 when it has no series of its own, so stable-denominated
// runs work without a synthetic flat series. Returns the tokens that could
// not be priced at all.
func resolvePrices(series map[string][]domain.PricePoint, tokens []string, targetMs int64, capitalToken string) (map[string]float64, []string) {
	prices := make(map[string]float64, len(tokens))
	var missing []string

	for _, token := range tokens {
		pts := series[token]
		if len(pts) == 0 {
			if token == capitalToken {
				prices[token] = 1.0
				continue
			}
			missing = append(missing, token)
			continue
		}

		if p, err := pricing.PriceAt(pts, targetMs); err == nil && p > 0 {
			prices[token] = p
			continue
		}
		if p, err := pricing.NearestPositive(pts, targetMs); err == nil {
			prices[token] = p
			continue
		}
		missing = append(missing, token)
	}
	return prices, missing
}

// volumesAt resolves the last known volume per token at a step. Tokens
// without volume data are simply absent from the result.
func volumesAt(series map[string][]domain.VolumePoint, tokens []string, targetMs int64) map[string]float64 {
	out := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		if v, ok := pricing.VolumeAt(series[token], targetMs); ok {
			out[token] = v
		}
	}
	return out
}

// historiesUpTo builds the per-token price history visible at a step.
func historiesUpTo(series map[string][]domain.PricePoint, targetMs int64) map[string][]domain.PricePoint {
	out := make(map[string][]domain.PricePoint, len(series))
	for token, pts := range series {
		out[token] = pricing.HistoryUpTo(pts, targetMs)
	}
	return out
}

// timeGrid builds step timestamps from startMs to endMs stepped by
// intervalMs. The final endpoint is always included, even when the last
// step falls short of a full interval.
func timeGrid(startMs, endMs, intervalMs int64) []int64 {
	var grid []int64
	for ts := startMs; ts < endMs; ts += intervalMs {
		grid = append(grid, ts)
	}
	return append(grid, endMs)
}
