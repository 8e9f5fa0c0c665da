// Package memory provides in-memory storage implementations. They back the
// default single-process deployment and the unit tests; the database
// backends mirror their behavior.
package memory

import (
	"context"
	"sort"
	"sync"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/storage"
)

// PriceHistoryStore is an in-memory implementation of
// storage.PriceHistoryStore.
type PriceHistoryStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.PricePoint // token -> timestamp_ms -> point
}

// NewPriceHistoryStore creates an empty in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{data: make(map[string]map[int64]domain.PricePoint)}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk adds points for a token. A point sharing a timestamp with a
// stored one overwrites it.
func (s *PriceHistoryStore) InsertBulk(_ context.Context, token string, points []domain.PricePoint) error {
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
		series = make(map[int64]domain.PricePoint, len(points))
		s.data[token] = series
	}
	for _, p := range points {
		series[p.TimestampMs] = p
	}
	return nil
}

// GetByToken retrieves all points for a token, ordered by timestamp ASC.
func (s *PriceHistoryStore) GetByToken(_ context.Context, token string) ([]domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[token]
	result := make([]domain.PricePoint, 0, len(series))
	for _, p := range series {
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

// GetByTimeRange retrieves points for a token within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *PriceHistoryStore) GetByTimeRange(_ context.Context, token string, start, end int64) ([]domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PricePoint
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

// Tokens lists every token with stored history, sorted.
func (s *PriceHistoryStore) Tokens(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]string, 0, len(s.data))
	for token := range s.data {
		tokens = append(tokens, token)
	}

	sort.Strings(tokens)
	return tokens, nil
}
