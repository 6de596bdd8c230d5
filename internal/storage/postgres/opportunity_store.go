package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

// OpportunityStore implements storage.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OpportunityStore = (*OpportunityStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if the ID exists.
func (s *OpportunityStore) Insert(ctx context.Context, r *domain.OpportunityRecord) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO opportunities (
			id, kind, estimated_profit, confidence, detected_at, payload
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID,
		string(r.Kind),
		r.EstimatedProfit,
		r.Confidence,
		r.DetectedAt,
		r.Payload,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (*domain.OpportunityRecord, error) {
	query := `
		SELECT id, kind, estimated_profit, confidence, detected_at, payload
		FROM opportunities
		WHERE id = $1
	`

	var r domain.OpportunityRecord
	var kind string
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&r.ID,
		&kind,
		&r.EstimatedProfit,
		&r.Confidence,
		&r.DetectedAt,
		&r.Payload,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get opportunity by id: %w", err)
	}

	r.Kind = domain.OpportunityKind(kind)
	return &r, nil
}

// GetByKind retrieves all records of a given kind, ordered by detection time ASC.
func (s *OpportunityStore) GetByKind(ctx context.Context, kind domain.OpportunityKind) ([]*domain.OpportunityRecord, error) {
	query := `
		SELECT id, kind, estimated_profit, confidence, detected_at, payload
		FROM opportunities
		WHERE kind = $1
		ORDER BY detected_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("get opportunities by kind: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// GetByTimeRange retrieves records detected within [start, end] (inclusive).
func (s *OpportunityStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.OpportunityRecord, error) {
	query := `
		SELECT id, kind, estimated_profit, confidence, detected_at, payload
		FROM opportunities
		WHERE detected_at >= $1 AND detected_at <= $2
		ORDER BY detected_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get opportunities by time range: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// DeleteOlderThan removes records detected strictly before cutoffMs.
func (s *OpportunityStore) DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE detected_at < $1`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("delete old opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanOpportunities scans multiple rows into a slice of OpportunityRecord.
func scanOpportunities(rows pgx.Rows) ([]*domain.OpportunityRecord, error) {
	var records []*domain.OpportunityRecord

	for rows.Next() {
		var r domain.OpportunityRecord
		var kind string

		err := rows.Scan(
			&r.ID,
			&kind,
			&r.EstimatedProfit,
			&r.Confidence,
			&r.DetectedAt,
			&r.Payload,
		)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity row: %w", err)
		}

		r.Kind = domain.OpportunityKind(kind)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opportunity rows: %w", err)
	}

	return records, nil
}
