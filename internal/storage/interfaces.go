package storage

import (
	"context"

	"defi-strategy-lab/internal/domain"
)

// PriceHistoryStore provides access to per-token price history.
type PriceHistoryStore interface {
	// InsertBulk adds points for a token. Points replacing an existing
	// (token, timestamp_ms) pair overwrite it.
	InsertBulk(ctx context.Context, token string, points []domain.PricePoint) error

	// GetByToken retrieves all points for a token, ordered by timestamp ASC.
	GetByToken(ctx context.Context, token string) ([]domain.PricePoint, error)

	// GetByTimeRange retrieves points for a token within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, token string, start, end int64) ([]domain.PricePoint, error)

	// Tokens lists every token with stored history.
	Tokens(ctx context.Context) ([]string, error)
}

// VolumeHistoryStore provides access to per-token volume history.
type VolumeHistoryStore interface {
	// InsertBulk adds points for a token, overwriting duplicates.
	InsertBulk(ctx context.Context, token string, points []domain.VolumePoint) error

	// GetByTimeRange retrieves points for a token within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, token string, start, end int64) ([]domain.VolumePoint, error)
}

// StrategyStore provides access to stored strategies.
type StrategyStore interface {
	// Insert adds a new strategy. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, s *domain.Strategy) error

	// GetByID retrieves a strategy. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Strategy, error)

	// List retrieves all strategies ordered by creation time ASC.
	List(ctx context.Context) ([]*domain.Strategy, error)
}

// OptimizationStore provides access to optimization runs and their
// solutions.
type OptimizationStore interface {
	// InsertRun adds a new run. Returns ErrDuplicateKey if the ID exists.
	InsertRun(ctx context.Context, r *domain.OptimizationRun) error

	// UpdateRun overwrites a run's mutable outcome fields. Returns
	// ErrNotFound if the run does not exist.
	UpdateRun(ctx context.Context, r *domain.OptimizationRun) error

	// GetRun retrieves a run. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, id string) (*domain.OptimizationRun, error)

	// ListRuns retrieves all runs ordered by start time ASC.
	ListRuns(ctx context.Context) ([]*domain.OptimizationRun, error)

	// InsertSolutions adds solutions for a run.
	InsertSolutions(ctx context.Context, runID string, solutions []*domain.Solution) error

	// GetSolutions retrieves all solutions for a run in insertion order.
	GetSolutions(ctx context.Context, runID string) ([]*domain.Solution, error)
}
