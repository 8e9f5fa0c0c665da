package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/storage"
)

// StrategyStore implements storage.StrategyStore using PostgreSQL. Block
// sequences are stored as a JSONB document per strategy; blocks are only
// ever read and written as a whole.
type StrategyStore struct {
	pool *Pool
}

// NewStrategyStore creates a new StrategyStore.
func NewStrategyStore(pool *Pool) *StrategyStore {
	return &StrategyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StrategyStore = (*StrategyStore)(nil)

// Insert adds a new strategy. Returns ErrDuplicateKey if the ID exists.
func (s *StrategyStore) Insert(ctx context.Context, strat *domain.Strategy) error {
	if strat == nil || strat.ID == "" {
		return storage.ErrInvalidInput
	}

	blocks, err := encodeBlocks(strat.Blocks)
	if err != nil {
		return fmt.Errorf("encode blocks: %w", err)
	}

	query := `
		INSERT INTO strategies (id, name, description, blocks, created_at_ms, updated_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.pool.Exec(ctx, query,
		strat.ID,
		strat.Name,
		strat.Description,
		blocks,
		strat.CreatedAtMs,
		strat.UpdatedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert strategy: %w", err)
	}
	return nil
}

// GetByID retrieves a strategy. Returns ErrNotFound if not exists.
func (s *StrategyStore) GetByID(ctx context.Context, id string) (*domain.Strategy, error) {
	query := `
		SELECT id, name, description, blocks, created_at_ms, updated_at_ms
		FROM strategies
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	strat, err := scanStrategy(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get strategy by id: %w", err)
	}
	return strat, nil
}

// List retrieves all strategies ordered by creation time ASC.
func (s *StrategyStore) List(ctx context.Context) ([]*domain.Strategy, error) {
	query := `
		SELECT id, name, description, blocks, created_at_ms, updated_at_ms
		FROM strategies
		ORDER BY created_at_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	defer rows.Close()

	var strategies []*domain.Strategy
	for rows.Next() {
		strat, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan strategy row: %w", err)
		}
		strategies = append(strategies, strat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strategy rows: %w", err)
	}
	return strategies, nil
}

// scanStrategy scans a single row into a Strategy.
func scanStrategy(row pgx.Row) (*domain.Strategy, error) {
	var strat domain.Strategy
	var blocks []byte

	err := row.Scan(
		&strat.ID,
		&strat.Name,
		&strat.Description,
		&blocks,
		&strat.CreatedAtMs,
		&strat.UpdatedAtMs,
	)
	if err != nil {
		return nil, err
	}

	strat.Blocks, err = decodeBlocks(blocks)
	if err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}
	return &strat, nil
}

// blockRecord is the JSONB shape of one block. The domain type carries no
// serialization tags, so the storage layer owns the column format.
type blockRecord struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Category    string             `json:"category"`
	InputToken  string             `json:"inputToken,omitempty"`
	OutputToken string             `json:"outputToken,omitempty"`
	Protocol    string             `json:"protocol,omitempty"`
	Comparator  string             `json:"comparator,omitempty"`
	Indicator   string             `json:"indicator,omitempty"`
	Params      map[string]float64 `json:"params,omitempty"`
}

func encodeBlocks(blocks []domain.Block) ([]byte, error) {
	records := make([]blockRecord, len(blocks))
	for i, b := range blocks {
		records[i] = blockRecord{
			ID:          b.ID,
			Kind:        string(b.Kind),
			Category:    string(b.Category),
			InputToken:  b.InputToken,
			OutputToken: b.OutputToken,
			Protocol:    b.Protocol,
			Comparator:  b.Comparator,
			Indicator:   b.Indicator,
			Params:      b.Params,
		}
	}
	return json.Marshal(records)
}

func decodeBlocks(data []byte) ([]domain.Block, error) {
	var records []blockRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	blocks := make([]domain.Block, len(records))
	for i, r := range records {
		blocks[i] = domain.Block{
			ID:          r.ID,
			Kind:        domain.BlockKind(r.Kind),
			Category:    domain.BlockCategory(r.Category),
			InputToken:  r.InputToken,
			OutputToken: r.OutputToken,
			Protocol:    r.Protocol,
			Comparator:  r.Comparator,
			Indicator:   r.Indicator,
			Params:      r.Params,
		}
	}
	return blocks, nil
}
