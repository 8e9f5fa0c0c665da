// Package pricing provides price-series lookup: exact and interpolated
// reads, nearest-sample fallback, history views for indicators, and
// granularity downsampling.
package pricing

import (
	"errors"
	"sort"

	"defi-strategy-lab/internal/domain"
)

// Errors returned by series lookups.
var (
	ErrNoPriceData  = errors.New("no price data available")
	ErrNoVolumeData = errors.New("no volume data available")
)

// PriceAt returns the price at target: the exact sample when one exists,
// the first/last sample when target falls outside the series range, and a
// linear interpolation between the bracketing samples otherwise.
// Returns ErrNoPriceData on an empty series. The series must be sorted by
// timestamp ascending.
func PriceAt(series []domain.PricePoint, targetMs int64) (float64, error) {
	if len(series) == 0 {
		return 0, ErrNoPriceData
	}

	// Clamp outside the covered range.
	if targetMs <= series[0].TimestampMs {
		return series[0].Price, nil
	}
	last := series[len(series)-1]
	if targetMs >= last.TimestampMs {
		return last.Price, nil
	}

	// First sample at or after target.
	i := sort.Search(len(series), func(i int) bool {
		return series[i].TimestampMs >= targetMs
	})
	if series[i].TimestampMs == targetMs {
		return series[i].Price, nil
	}

	lo, hi := series[i-1], series[i]
	span := float64(hi.TimestampMs - lo.TimestampMs)
	frac := float64(targetMs-lo.TimestampMs) / span
	return lo.Price + (hi.Price-lo.Price)*frac, nil
}

// NearestPositive returns the positive-priced sample closest to target,
// scanning outward from the interpolation point. Used as the fallback when
// the interpolated price is unusable (zero or negative data).
func NearestPositive(series []domain.PricePoint, targetMs int64) (float64, error) {
	best := 0.0
	var bestDist int64 = -1
	for _, p := range series {
		if p.Price <= 0 {
			continue
		}
		dist := p.TimestampMs - targetMs
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best = p.Price
			bestDist = dist
		}
	}
	if bestDist < 0 {
		return 0, ErrNoPriceData
	}
	return best, nil
}

// VolumeAt returns the last known volume at or before target. The second
// return is false when the series is empty or has no sample before target.
func VolumeAt(series []domain.VolumePoint, targetMs int64) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].TimestampMs <= targetMs {
			return series[i].Volume, true
		}
	}
	return 0, false
}

// HistoryUpTo returns the prefix of series with timestamps at or before
// target. The result aliases the input; callers must not mutate it.
func HistoryUpTo(series []domain.PricePoint, targetMs int64) []domain.PricePoint {
	i := sort.Search(len(series), func(i int) bool {
		return series[i].TimestampMs > targetMs
	})
	return series[:i]
}

// SortPoints sorts a price series by timestamp ascending, in place.
func SortPoints(series []domain.PricePoint) {
	sort.Slice(series, func(i, j int) bool {
		return series[i].TimestampMs < series[j].TimestampMs
	})
}

// Downsample buckets a sorted series by granularityMs and keeps the last
// sample of each bucket (close semantics), stamped at the bucket start.
// granularityMs <= 0 returns the input unchanged.
func Downsample(series []domain.PricePoint, granularityMs int64) []domain.PricePoint {
	if granularityMs <= 0 || len(series) == 0 {
		return series
	}

	out := make([]domain.PricePoint, 0, len(series))
	var bucketStart int64
	for i, p := range series {
		start := p.TimestampMs - (p.TimestampMs % granularityMs)
		if i == 0 || start != bucketStart {
			out = append(out, domain.PricePoint{TimestampMs: start, Price: p.Price})
			bucketStart = start
			continue
		}
		out[len(out)-1].Price = p.Price
	}
	return out
}
