package memory

import (
	"context"
	"sort"
	"sync"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/storage"
)

// VolumeHistoryStore is an in-memory implementation of
// storage.VolumeHistoryStore.
type VolumeHistoryStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.VolumePoint // token -> timestamp_ms -> point
}

// NewVolumeHistoryStore creates an empty in-memory volume history store.
func NewVolumeHistoryStore() *VolumeHistoryStore {
	return &VolumeHistoryStore{data: make(map[string]map[int64]domain.VolumePoint)}
}

// Compile-time interface check.
var _ storage.VolumeHistoryStore = (*VolumeHistoryStore)(nil)

// InsertBulk adds points for a token. A point sharing a timestamp with a
// stored one overwrites it.
func (s *VolumeHistoryStore) InsertBulk(_ context.Context, token string, points []domain.VolumePoint) error {
	if token == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.data[token]
	if !ok {
		series = make(map[int64]domain.VolumePoint, len(points))
		s.data[token] = series
	}
	for _, p := range points {
		series[p.TimestampMs] = p
	}
	return nil
}

// GetByTimeRange retrieves points for a token within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *VolumeHistoryStore) GetByTimeRange(_ context.Context, token string, start, end int64) ([]domain.VolumePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.VolumePoint
	for ts, p := range s.data[token] {
		if ts >= start && ts <= end {
			result = append(result, p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}
