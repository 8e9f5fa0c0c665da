package clickhouse

import (
	"context"
	"fmt"
	"time"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using ClickHouse.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk adds points for a token. A point sharing a timestamp with a
// stored one overwrites it: rows carry an ingestion-time version and reads
// collapse duplicates with FINAL.
func (s *PriceHistoryStore) InsertBulk(ctx context.Context, token string, points []domain.PricePoint) error {
	if token == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	// Dedupe within the batch, last point wins. Identical versions would
	// otherwise make the merge outcome arbitrary.
	latest := make(map[int64]domain.PricePoint, len(points))
	var order []int64
	for _, p := range points {
		if _, seen := latest[p.TimestampMs]; !seen {
			order = append(order, p.TimestampMs)
		}
		latest[p.TimestampMs] = p
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_history (token, timestamp_ms, price, version)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	version := uint64(time.Now().UnixNano())
	for _, ts := range order {
		p := latest[ts]
		if err := batch.Append(token, p.TimestampMs, p.Price, version); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByToken retrieves all points for a token, ordered by timestamp ASC.
func (s *PriceHistoryStore) GetByToken(ctx context.Context, token string) ([]domain.PricePoint, error) {
	query := `
		SELECT timestamp_ms, price
		FROM price_history FINAL
		WHERE token = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, token)
	if err != nil {
		return nil, fmt.Errorf("query by token: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetByTimeRange retrieves points for a token within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *PriceHistoryStore) GetByTimeRange(ctx context.Context, token string, start, end int64) ([]domain.PricePoint, error) {
	query := `
		SELECT timestamp_ms, price
		FROM price_history FINAL
		WHERE token = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, token, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// Tokens lists every token with stored history, sorted.
func (s *PriceHistoryStore) Tokens(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT token
		FROM price_history
		ORDER BY token ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

// scanPricePoints scans multiple rows.
func scanPricePoints(rows chRows) ([]domain.PricePoint, error) {
	var points []domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.TimestampMs, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price history row: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history rows: %w", err)
	}
	return points, nil
}
