// Package ingestion loads price and volume history files into the backing
// stores. Loading is deterministic: tokens are inserted in sorted order and
// each token's series arrives sorted by timestamp, so repeated loads of the
// same file converge to the same store state.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/pricing"
	"defi-strategy-lab/internal/storage"
)

// ErrNoVolumeStore indicates a volume file was given without a volume store.
var ErrNoVolumeStore = errors.New("no volume store configured")

const defaultBatchSize = 5000

// Loader writes history series into the stores in bounded batches.
type Loader struct {
	prices  storage.PriceHistoryStore
	volumes storage.VolumeHistoryStore
	batch   int
	logger  zerolog.Logger
}

// LoaderOptions contains configuration for creating a Loader.
type LoaderOptions struct {
	Prices  storage.PriceHistoryStore
	Volumes storage.VolumeHistoryStore // optional
	// BatchSize bounds each insert. Defaults to 5000 points.
	BatchSize int
	Logger    *zerolog.Logger // optional, defaults to a no-op logger
}

// NewLoader creates a history loader.
func NewLoader(opts LoaderOptions) *Loader {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Loader{
		prices:  opts.Prices,
		volumes: opts.Volumes,
		batch:   batch,
		logger:  logger,
	}
}

// Stats summarizes one load.
type Stats struct {
	Tokens int
	Points int
}

// LoadPriceFile reads a price CSV and inserts every series.
func (l *Loader) LoadPriceFile(ctx context.Context, path string) (Stats, error) {
	series, err := pricing.LoadPricesCSV(path)
	if err != nil {
		return Stats{}, err
	}
	return l.LoadPrices(ctx, series)
}

// LoadPrices inserts series grouped per token, sorted by symbol.
func (l *Loader) LoadPrices(ctx context.Context, series map[string][]domain.PricePoint) (Stats, error) {
	var stats Stats
	for _, token := range sortedTokens(series) {
		points := series[token]
		for start := 0; start < len(points); start += l.batch {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			end := start + l.batch
			if end > len(points) {
				end = len(points)
			}
			if err := l.prices.InsertBulk(ctx, token, points[start:end]); err != nil {
				return stats, fmt.Errorf("insert prices for %s: %w", token, err)
			}
		}
		stats.Tokens++
		stats.Points += len(points)
		l.logger.Debug().Str("token", token).Int("points", len(points)).Msg("price series loaded")
	}
	return stats, nil
}

// LoadVolumeFile reads a volume CSV and inserts every series. Returns
// ErrNoVolumeStore when the loader has no volume store.
func (l *Loader) LoadVolumeFile(ctx context.Context, path string) (Stats, error) {
	if l.volumes == nil {
		return Stats{}, ErrNoVolumeStore
	}
	series, err := pricing.LoadVolumesCSV(path)
	if err != nil {
		return Stats{}, err
	}
	return l.LoadVolumes(ctx, series)
}

// LoadVolumes inserts volume series grouped per token, sorted by symbol.
func (l *Loader) LoadVolumes(ctx context.Context, series map[string][]domain.VolumePoint) (Stats, error) {
	if l.volumes == nil {
		return Stats{}, ErrNoVolumeStore
	}
	var stats Stats
	for _, token := range sortedVolumeTokens(series) {
		points := series[token]
		for start := 0; start < len(points); start += l.batch {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			end := start + l.batch
			if end > len(points) {
				end = len(points)
			}
			if err := l.volumes.InsertBulk(ctx, token, points[start:end]); err != nil {
				return stats, fmt.Errorf("insert volumes for %s: %w", token, err)
			}
		}
		stats.Tokens++
		stats.Points += len(points)
		l.logger.Debug().Str("token", token).Int("points", len(points)).Msg("volume series loaded")
	}
	return stats, nil
}

func sortedTokens(series map[string][]domain.PricePoint) []string {
	out := make([]string, 0, len(series))
	for token := range series {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

func sortedVolumeTokens(series map[string][]domain.VolumePoint) []string {
	out := make([]string, 0, len(series))
	for token := range series {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}
