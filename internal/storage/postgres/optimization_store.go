package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/storage"
)

// OptimizationStore implements storage.OptimizationStore using PostgreSQL.
// Solutions are append-only; a BIGSERIAL seq column preserves insertion
// order because (run_id, id) is not unique when a search revisits the same
// parameter set.
type OptimizationStore struct {
	pool *Pool
}

// NewOptimizationStore creates a new OptimizationStore.
func NewOptimizationStore(pool *Pool) *OptimizationStore {
	return &OptimizationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OptimizationStore = (*OptimizationStore)(nil)

// InsertRun adds a new run. Returns ErrDuplicateKey if the ID exists.
func (s *OptimizationStore) InsertRun(ctx context.Context, r *domain.OptimizationRun) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO optimization_runs (
			id, strategy_id, algorithm, objectives, max_iterations, status,
			total_iterations, total_time_ms, cache_hit_rate, started_at_ms, completed_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.StrategyID,
		r.Algorithm,
		r.Objectives,
		r.MaxIterations,
		string(r.Status),
		r.TotalIterations,
		r.TotalTimeMs,
		r.CacheHitRate,
		r.StartedAtMs,
		r.CompletedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert optimization run: %w", err)
	}
	return nil
}

// UpdateRun overwrites a run's record. Returns ErrNotFound if the run does
// not exist.
func (s *OptimizationStore) UpdateRun(ctx context.Context, r *domain.OptimizationRun) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE optimization_runs SET
			strategy_id = $2, algorithm = $3, objectives = $4, max_iterations = $5,
			status = $6, total_iterations = $7, total_time_ms = $8, cache_hit_rate = $9,
			started_at_ms = $10, completed_at_ms = $11
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		r.ID,
		r.StrategyID,
		r.Algorithm,
		r.Objectives,
		r.MaxIterations,
		string(r.Status),
		r.TotalIterations,
		r.TotalTimeMs,
		r.CacheHitRate,
		r.StartedAtMs,
		r.CompletedAtMs,
	)
	if err != nil {
		return fmt.Errorf("update optimization run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetRun retrieves a run. Returns ErrNotFound if not exists.
func (s *OptimizationStore) GetRun(ctx context.Context, id string) (*domain.OptimizationRun, error) {
	query := `
		SELECT id, strategy_id, algorithm, objectives, max_iterations, status,
			total_iterations, total_time_ms, cache_hit_rate, started_at_ms, completed_at_ms
		FROM optimization_runs
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	r, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get optimization run: %w", err)
	}
	return r, nil
}

// ListRuns retrieves all runs ordered by start time ASC.
func (s *OptimizationStore) ListRuns(ctx context.Context) ([]*domain.OptimizationRun, error) {
	query := `
		SELECT id, strategy_id, algorithm, objectives, max_iterations, status,
			total_iterations, total_time_ms, cache_hit_rate, started_at_ms, completed_at_ms
		FROM optimization_runs
		ORDER BY started_at_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list optimization runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.OptimizationRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// InsertSolutions adds solutions for a run atomically, preserving order.
func (s *OptimizationStore) InsertSolutions(ctx context.Context, runID string, solutions []*domain.Solution) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(solutions) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO solutions (
			run_id, id, parameters, in_sample, out_of_sample,
			degradation_pct, is_pareto, failed, failure_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, sol := range solutions {
		parameters, err := json.Marshal(sol.Parameters)
		if err != nil {
			return fmt.Errorf("encode parameters: %w", err)
		}
		inSample, err := json.Marshal(sol.InSampleScores)
		if err != nil {
			return fmt.Errorf("encode in-sample scores: %w", err)
		}
		outOfSample, err := json.Marshal(sol.OutOfSampleScores)
		if err != nil {
			return fmt.Errorf("encode out-of-sample scores: %w", err)
		}

		_, err = tx.Exec(ctx, query,
			runID,
			sol.ID,
			parameters,
			inSample,
			outOfSample,
			sol.DegradationPct,
			sol.IsParetoOptimal,
			sol.Failed,
			sol.FailureReason,
		)
		if err != nil {
			return fmt.Errorf("insert solution %s: %w", sol.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit solutions: %w", err)
	}
	return nil
}

// GetSolutions retrieves all solutions for a run in insertion order.
func (s *OptimizationStore) GetSolutions(ctx context.Context, runID string) ([]*domain.Solution, error) {
	query := `
		SELECT id, parameters, in_sample, out_of_sample,
			degradation_pct, is_pareto, failed, failure_reason
		FROM solutions
		WHERE run_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get solutions: %w", err)
	}
	defer rows.Close()

	solutions := make([]*domain.Solution, 0)
	for rows.Next() {
		sol, err := scanSolution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan solution row: %w", err)
		}
		solutions = append(solutions, sol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate solution rows: %w", err)
	}
	return solutions, nil
}

// scanRun scans a single row into an OptimizationRun.
func scanRun(row pgx.Row) (*domain.OptimizationRun, error) {
	var r domain.OptimizationRun
	var status string

	err := row.Scan(
		&r.ID,
		&r.StrategyID,
		&r.Algorithm,
		&r.Objectives,
		&r.MaxIterations,
		&status,
		&r.TotalIterations,
		&r.TotalTimeMs,
		&r.CacheHitRate,
		&r.StartedAtMs,
		&r.CompletedAtMs,
	)
	if err != nil {
		return nil, err
	}

	r.Status = domain.RunStatus(status)
	return &r, nil
}

// scanSolution scans a single row into a Solution.
func scanSolution(row pgx.Row) (*domain.Solution, error) {
	var sol domain.Solution
	var parameters, inSample, outOfSample []byte

	err := row.Scan(
		&sol.ID,
		&parameters,
		&inSample,
		&outOfSample,
		&sol.DegradationPct,
		&sol.IsParetoOptimal,
		&sol.Failed,
		&sol.FailureReason,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(parameters, &sol.Parameters); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if err := json.Unmarshal(inSample, &sol.InSampleScores); err != nil {
		return nil, fmt.Errorf("decode in-sample scores: %w", err)
	}
	if err := json.Unmarshal(outOfSample, &sol.OutOfSampleScores); err != nil {
		return nil, fmt.Errorf("decode out-of-sample scores: %w", err)
	}
	return &sol, nil
}
