package memory

import (
	"context"
	"sort"
	"sync"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/storage"
)

// OptimizationStore is an in-memory implementation of
// storage.OptimizationStore.
type OptimizationStore struct {
	mu        sync.RWMutex
	runs      map[string]*domain.OptimizationRun
	solutions map[string][]*domain.Solution // run ID -> solutions in insertion order
}

// NewOptimizationStore creates an empty in-memory optimization store.
func NewOptimizationStore() *OptimizationStore {
	return &OptimizationStore{
		runs:      make(map[string]*domain.OptimizationRun),
		solutions: make(map[string][]*domain.Solution),
	}
}

// Compile-time interface check.
var _ storage.OptimizationStore = (*OptimizationStore)(nil)

// InsertRun adds a new run. Returns ErrDuplicateKey if the ID exists.
func (s *OptimizationStore) InsertRun(_ context.Context, r *domain.OptimizationRun) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[r.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.runs[r.ID] = cloneRun(r)
	return nil
}

// UpdateRun overwrites a run's record. Returns ErrNotFound if the run does
// not exist.
func (s *OptimizationStore) UpdateRun(_ context.Context, r *domain.OptimizationRun) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[r.ID]; !exists {
		return storage.ErrNotFound
	}
	s.runs[r.ID] = cloneRun(r)
	return nil
}

// GetRun retrieves a run. Returns ErrNotFound if not exists.
func (s *OptimizationStore) GetRun(_ context.Context, id string) (*domain.OptimizationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRun(r), nil
}

// ListRuns retrieves all runs ordered by start time ASC.
func (s *OptimizationStore) ListRuns(_ context.Context) ([]*domain.OptimizationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.OptimizationRun, 0, len(s.runs))
	for _, r := range s.runs {
		result = append(result, cloneRun(r))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAtMs != result[j].StartedAtMs {
			return result[i].StartedAtMs < result[j].StartedAtMs
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// InsertSolutions appends solutions for a run, preserving order.
func (s *OptimizationStore) InsertSolutions(_ context.Context, runID string, solutions []*domain.Solution) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(solutions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sol := range solutions {
		s.solutions[runID] = append(s.solutions[runID], cloneSolution(sol))
	}
	return nil
}

// GetSolutions retrieves all solutions for a run in insertion order.
func (s *OptimizationStore) GetSolutions(_ context.Context, runID string) ([]*domain.Solution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.solutions[runID]
	result := make([]*domain.Solution, 0, len(stored))
	for _, sol := range stored {
		result = append(result, cloneSolution(sol))
	}
	return result, nil
}

func cloneRun(r *domain.OptimizationRun) *domain.OptimizationRun {
	out := *r
	if r.Objectives != nil {
		out.Objectives = append([]string(nil), r.Objectives...)
	}
	return &out
}

func cloneSolution(sol *domain.Solution) *domain.Solution {
	out := *sol
	out.Parameters = sol.Parameters.Clone()
	out.InSampleScores = sol.InSampleScores.Clone()
	out.OutOfSampleScores = sol.OutOfSampleScores.Clone()
	return &out
}
