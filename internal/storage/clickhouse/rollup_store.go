package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

// RollupStore implements storage.RollupStore using ClickHouse. Per-kind
// counts and profits are stored as JSON strings since the kind set is small
// and the table is read back whole.
type RollupStore struct {
	conn *Conn
}

// NewRollupStore creates a new RollupStore.
func NewRollupStore(conn *Conn) *RollupStore {
	return &RollupStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RollupStore = (*RollupStore)(nil)

// InsertBulk adds multiple rollups. Fails entire batch on any duplicate window start.
func (s *RollupStore) InsertBulk(ctx context.Context, rollups []*domain.RevenueRollup) error {
	if len(rollups) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{}, len(rollups))
	for _, r := range rollups {
		if r == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[r.WindowStart]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.WindowStart] = struct{}{}
	}

	// Check for duplicates against existing rows. MergeTree does not enforce
	// uniqueness at insert time.
	for _, r := range rollups {
		exists, err := s.exists(ctx, r.WindowStart)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO revenue_rollups (
			window_start, computed_at, counts, profit_by_kind, potential_profit
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rollups {
		counts, err := json.Marshal(r.Counts)
		if err != nil {
			return fmt.Errorf("marshal counts: %w", err)
		}
		profits, err := json.Marshal(r.ProfitByKind)
		if err != nil {
			return fmt.Errorf("marshal profit by kind: %w", err)
		}

		err = batch.Append(
			r.WindowStart,
			r.ComputedAt,
			string(counts),
			string(profits),
			r.PotentialProfit,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves rollups with window start within [start, end] (inclusive).
func (s *RollupStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.RevenueRollup, error) {
	query := `
		SELECT window_start, computed_at, counts, profit_by_kind, potential_profit
		FROM revenue_rollups
		WHERE window_start >= ? AND window_start <= ?
		ORDER BY window_start ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query rollups by time range: %w", err)
	}
	defer rows.Close()

	var rollups []*domain.RevenueRollup
	for rows.Next() {
		var r domain.RevenueRollup
		var counts, profits string

		err := rows.Scan(&r.WindowStart, &r.ComputedAt, &counts, &profits, &r.PotentialProfit)
		if err != nil {
			return nil, fmt.Errorf("scan rollup row: %w", err)
		}

		if err := json.Unmarshal([]byte(counts), &r.Counts); err != nil {
			return nil, fmt.Errorf("unmarshal counts: %w", err)
		}
		if err := json.Unmarshal([]byte(profits), &r.ProfitByKind); err != nil {
			return nil, fmt.Errorf("unmarshal profit by kind: %w", err)
		}

		rollups = append(rollups, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rollup rows: %w", err)
	}

	return rollups, nil
}

// DeleteOlderThan removes rollups with window start strictly before cutoffMs.
func (s *RollupStore) DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM revenue_rollups WHERE window_start < ?`, cutoffMs,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count old rollups: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	err = s.conn.Exec(ctx,
		`ALTER TABLE revenue_rollups DELETE WHERE window_start < ?`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("delete old rollups: %w", err)
	}

	return int64(count), nil
}

// exists checks if a rollup with the given window start exists.
func (s *RollupStore) exists(ctx context.Context, windowStart int64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM revenue_rollups WHERE window_start = ?`, windowStart,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
