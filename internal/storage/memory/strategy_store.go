package memory

import (
	"context"
	"sort"
	"sync"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/storage"
)

// StrategyStore is an in-memory implementation of storage.StrategyStore.
type StrategyStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Strategy
}

// NewStrategyStore creates an empty in-memory strategy store.
func NewStrategyStore() *StrategyStore {
	return &StrategyStore{data: make(map[string]*domain.Strategy)}
}

// Compile-time interface check.
var _ storage.StrategyStore = (*StrategyStore)(nil)

// Insert adds a new strategy. Returns ErrDuplicateKey if the ID exists.
func (s *StrategyStore) Insert(_ context.Context, strat *domain.Strategy) error {
	if strat == nil || strat.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[strat.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[strat.ID] = cloneStrategy(strat)
	return nil
}

// GetByID retrieves a strategy. Returns ErrNotFound if not exists.
func (s *StrategyStore) GetByID(_ context.Context, id string) (*domain.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	strat, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneStrategy(strat), nil
}

// List retrieves all strategies ordered by creation time ASC.
func (s *StrategyStore) List(_ context.Context) ([]*domain.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Strategy, 0, len(s.data))
	for _, strat := range s.data {
		result = append(result, cloneStrategy(strat))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAtMs != result[j].CreatedAtMs {
			return result[i].CreatedAtMs < result[j].CreatedAtMs
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// cloneStrategy copies a strategy so callers cannot mutate stored state
// through shared blocks.
func cloneStrategy(strat *domain.Strategy) *domain.Strategy {
	out := *strat
	if strat.Blocks != nil {
		out.Blocks = make([]domain.Block, len(strat.Blocks))
		for i, b := range strat.Blocks {
			out.Blocks[i] = b.WithParams(nil)
		}
	}
	return &out
}
