package storage

import (
	"context"

	"solana-mev-engine/internal/domain"
)

// OpportunityStore provides access to archived opportunity records.
type OpportunityStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, r *domain.OpportunityRecord) error

	// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.OpportunityRecord, error)

	// GetByKind retrieves all records of a given kind, ordered by detection time ASC.
	GetByKind(ctx context.Context, kind domain.OpportunityKind) ([]*domain.OpportunityRecord, error)

	// GetByTimeRange retrieves records detected within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.OpportunityRecord, error)

	Purger
}

// RollupStore provides access to archived revenue rollups.
type RollupStore interface {
	// InsertBulk adds multiple rollups. Fails the entire batch on any duplicate
	// window start.
	InsertBulk(ctx context.Context, rollups []*domain.RevenueRollup) error

	// GetByTimeRange retrieves rollups with window start within [start, end]
	// (inclusive), ordered by window start ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.RevenueRollup, error)

	Purger
}

// Purger deletes records older than a cutoff. The retention manager calls it
// on its sweep interval.
type Purger interface {
	// DeleteOlderThan removes records with timestamps strictly before cutoffMs
	// and returns the number removed.
	DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error)
}
