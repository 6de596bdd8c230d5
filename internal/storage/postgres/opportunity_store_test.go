package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

func testRecord(id string, kind domain.OpportunityKind, detectedAt int64) *domain.OpportunityRecord {
	return &domain.OpportunityRecord{
		ID:              id,
		Kind:            kind,
		EstimatedProfit: 1500.0,
		Confidence:      0.8,
		DetectedAt:      detectedAt,
		Payload:         []byte(`{"pair":"SOL/USDC","spreadPercent":1.5}`),
	}
}

func TestOpportunityStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOpportunityStore(pool)

	rec := testRecord("op-1", domain.KindArbitrage, 1700000001000)

	err := store.Insert(ctx, rec)
	require.NoError(t, err)

	got, err := store.GetByID(ctx, "op-1")
	require.NoError(t, err)

	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Kind, got.Kind)
	assert.InDelta(t, rec.EstimatedProfit, got.EstimatedProfit, 0.0001)
	assert.InDelta(t, rec.Confidence, got.Confidence, 0.0001)
	assert.Equal(t, rec.DetectedAt, got.DetectedAt)
	assert.JSONEq(t, string(rec.Payload), string(got.Payload))
}

func TestOpportunityStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOpportunityStore(pool)

	rec := testRecord("op-dup", domain.KindSandwich, 1700000001000)
	require.NoError(t, store.Insert(ctx, rec))

	err := store.Insert(ctx, rec)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestOpportunityStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewOpportunityStore(pool).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOpportunityStore_GetByKind(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOpportunityStore(pool)

	require.NoError(t, store.Insert(ctx, testRecord("op-a", domain.KindArbitrage, 3000)))
	require.NoError(t, store.Insert(ctx, testRecord("op-b", domain.KindArbitrage, 1000)))
	require.NoError(t, store.Insert(ctx, testRecord("op-c", domain.KindLiquidation, 2000)))

	arbs, err := store.GetByKind(ctx, domain.KindArbitrage)
	require.NoError(t, err)

	require.Len(t, arbs, 2)
	assert.Equal(t, "op-b", arbs[0].ID)
	assert.Equal(t, "op-a", arbs[1].ID)
}

func TestOpportunityStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOpportunityStore(pool)

	require.NoError(t, store.Insert(ctx, testRecord("op-a", domain.KindCopyTrading, 1000)))
	require.NoError(t, store.Insert(ctx, testRecord("op-b", domain.KindCopyTrading, 2000)))
	require.NoError(t, store.Insert(ctx, testRecord("op-c", domain.KindCopyTrading, 3000)))

	// Inclusive bounds
	result, err := store.GetByTimeRange(ctx, 1000, 2000)
	require.NoError(t, err)

	require.Len(t, result, 2)
	assert.Equal(t, "op-a", result[0].ID)
	assert.Equal(t, "op-b", result[1].ID)
}

func TestOpportunityStore_DeleteOlderThan(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOpportunityStore(pool)

	require.NoError(t, store.Insert(ctx, testRecord("op-a", domain.KindArbitrage, 1000)))
	require.NoError(t, store.Insert(ctx, testRecord("op-b", domain.KindArbitrage, 2000)))
	require.NoError(t, store.Insert(ctx, testRecord("op-c", domain.KindArbitrage, 3000)))

	removed, err := store.DeleteOlderThan(ctx, 3000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	remaining, err := store.GetByTimeRange(ctx, 0, 10000)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "op-c", remaining[0].ID)
}
