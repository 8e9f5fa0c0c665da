package pricing

import (
	"context"
	"fmt"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/storage"
)

// Oracle supplies price series for simulation. Implementations load data
// once per run, before the stepped loop; the engine never calls out during
// stepping.
type Oracle interface {
	// GetPrices returns a sorted series per requested token covering
	// [startMs, endMs], downsampled to granularityMs when positive. Tokens
	// with no data map to an empty series.
	GetPrices(ctx context.Context, tokens []string, startMs, endMs, granularityMs int64) (map[string][]domain.PricePoint, error)
}

// VolumeSource optionally supplies volume series for volume-trigger blocks.
type VolumeSource interface {
	GetVolumes(ctx context.Context, tokens []string, startMs, endMs int64) (map[string][]domain.VolumePoint, error)
}

// StaticOracle serves series held in memory, for tests and for requests that
// embed their own price data.
type StaticOracle struct {
	prices  map[string][]domain.PricePoint
	volumes map[string][]domain.VolumePoint
}

// NewStaticOracle copies and sorts the given series.
func NewStaticOracle(prices map[string][]domain.PricePoint, volumes map[string][]domain.VolumePoint) *StaticOracle {
	o := &StaticOracle{
		prices:  make(map[string][]domain.PricePoint, len(prices)),
		volumes: make(map[string][]domain.VolumePoint, len(volumes)),
	}
	for token, series := range prices {
		cp := make([]domain.PricePoint, len(series))
		copy(cp, series)
		SortPoints(cp)
		o.prices[token] = cp
	}
	for token, series := range volumes {
		cp := make([]domain.VolumePoint, len(series))
		copy(cp, series)
		o.volumes[token] = cp
	}
	return o
}

// GetPrices returns the in-range slice per token, padded by one sample on
// each side so edge timestamps still interpolate.
func (o *StaticOracle) GetPrices(_ context.Context, tokens []string, startMs, endMs, granularityMs int64) (map[string][]domain.PricePoint, error) {
	out := make(map[string][]domain.PricePoint, len(tokens))
	for _, token := range tokens {
		out[token] = Downsample(sliceRange(o.prices[token], startMs, endMs), granularityMs)
	}
	return out, nil
}

// GetVolumes returns in-range volume series per token.
func (o *StaticOracle) GetVolumes(_ context.Context, tokens []string, startMs, endMs int64) (map[string][]domain.VolumePoint, error) {
	out := make(map[string][]domain.VolumePoint, len(tokens))
	for _, token := range tokens {
		var kept []domain.VolumePoint
		for _, p := range o.volumes[token] {
			if p.TimestampMs >= startMs && p.TimestampMs <= endMs {
				kept = append(kept, p)
			}
		}
		out[token] = kept
	}
	return out, nil
}

// sliceRange keeps samples within [startMs, endMs] plus one bracketing
// sample on each side.
func sliceRange(series []domain.PricePoint, startMs, endMs int64) []domain.PricePoint {
	if len(series) == 0 {
		return nil
	}
	lo := 0
	for i, p := range series {
		if p.TimestampMs <= startMs {
			lo = i
		} else {
			break
		}
	}
	hi := len(series) - 1
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].TimestampMs >= endMs {
			hi = i
		} else {
			break
		}
	}
	if hi < lo {
		hi = lo
	}
	out := make([]domain.PricePoint, hi-lo+1)
	copy(out, series[lo:hi+1])
	return out
}

// StoreOracle loads series from a price history store, with an optional
// volume store. ClickHouse in production, the memory store in tests.
type StoreOracle struct {
	prices  storage.PriceHistoryStore
	volumes storage.VolumeHistoryStore
}

// NewStoreOracle wraps the given stores; volumes may be nil.
func NewStoreOracle(prices storage.PriceHistoryStore, volumes storage.VolumeHistoryStore) *StoreOracle {
	return &StoreOracle{prices: prices, volumes: volumes}
}

// GetPrices loads each token's range from the store. Pads the query window
// by one granularity step (or one day when granularity is zero) so edge
// timestamps interpolate instead of clamping to a mid-range sample.
func (o *StoreOracle) GetPrices(ctx context.Context, tokens []string, startMs, endMs, granularityMs int64) (map[string][]domain.PricePoint, error) {
	pad := granularityMs
	if pad <= 0 {
		pad = domain.MsPerDay
	}

	out := make(map[string][]domain.PricePoint, len(tokens))
	for _, token := range tokens {
		series, err := o.prices.GetByTimeRange(ctx, token, startMs-pad, endMs+pad)
		if err != nil {
			return nil, fmt.Errorf("load prices for %s: %w", token, err)
		}
		out[token] = Downsample(series, granularityMs)
	}
	return out, nil
}

// GetVolumes loads each token's volume range; returns empty series when no
// volume store is configured.
func (o *StoreOracle) GetVolumes(ctx context.Context, tokens []string, startMs, endMs int64) (map[string][]domain.VolumePoint, error) {
	out := make(map[string][]domain.VolumePoint, len(tokens))
	if o.volumes == nil {
		return out, nil
	}
	for _, token := range tokens {
		series, err := o.volumes.GetByTimeRange(ctx, token, startMs, endMs)
		if err != nil {
			return nil, fmt.Errorf("load volumes for %s: %w", token, err)
		}
		out[token] = series
	}
	return out, nil
}

var (
	_ Oracle       = (*StaticOracle)(nil)
	_ VolumeSource = (*StaticOracle)(nil)
	_ Oracle       = (*StoreOracle)(nil)
	_ VolumeSource = (*StoreOracle)(nil)
)
