package clickhouse

import (
	"context"
	"fmt"
	"time"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/storage"
)

// VolumeHistoryStore implements storage.VolumeHistoryStore using ClickHouse.
type VolumeHistoryStore struct {
	conn *Conn
}

// NewVolumeHistoryStore creates a new VolumeHistoryStore.
func NewVolumeHistoryStore(conn *Conn) *VolumeHistoryStore {
	return &VolumeHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.VolumeHistoryStore = (*VolumeHistoryStore)(nil)

// InsertBulk adds points for a token, overwriting duplicates the same way
// PriceHistoryStore does.
func (s *VolumeHistoryStore) InsertBulk(ctx context.Context, token string, points []domain.VolumePoint) error {
	if token == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	latest := make(map[int64]domain.VolumePoint, len(points))
	var order []int64
	for _, p := range points {
		if _, seen := latest[p.TimestampMs]; !seen {
			order = append(order, p.TimestampMs)
		}
		latest[p.TimestampMs] = p
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO volume_history (token, timestamp_ms, volume, version)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	version := uint64(time.Now().UnixNano())
	for _, ts := range order {
		p := latest[ts]
		if err := batch.Append(token, p.TimestampMs, p.Volume, version); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves points for a token within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *VolumeHistoryStore) GetByTimeRange(ctx context.Context, token string, start, end int64) ([]domain.VolumePoint, error) {
	query := `
		SELECT timestamp_ms, volume
		FROM volume_history FINAL
		WHERE token = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, token, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	var points []domain.VolumePoint
	for rows.Next() {
		var p domain.VolumePoint
		if err := rows.Scan(&p.TimestampMs, &p.Volume); err != nil {
			return nil, fmt.Errorf("scan volume history row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volume history rows: %w", err)
	}
	return points, nil
}
