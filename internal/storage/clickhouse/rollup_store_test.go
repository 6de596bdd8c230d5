package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

func testRollup(windowStart int64) *domain.RevenueRollup {
	return &domain.RevenueRollup{
		WindowStart: windowStart,
		ComputedAt:  windowStart + 3_600_000,
		Counts: map[domain.OpportunityKind]int{
			domain.KindArbitrage: 3,
			domain.KindSandwich:  1,
		},
		ProfitByKind: map[domain.OpportunityKind]float64{
			domain.KindArbitrage: 450.0,
			domain.KindSandwich:  80.5,
		},
		PotentialProfit: 530.5,
	}
}

func TestRollupStore_InsertBulkAndGetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRollupStore(conn)
	ctx := context.Background()

	rollups := []*domain.RevenueRollup{
		testRollup(1_700_000_000_000),
		testRollup(1_700_003_600_000),
		testRollup(1_700_007_200_000),
	}
	require.NoError(t, store.InsertBulk(ctx, rollups))

	got, err := store.GetByTimeRange(ctx, 1_700_000_000_000, 1_700_003_600_000)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by window start, maps round-tripped.
	assert.Equal(t, int64(1_700_000_000_000), got[0].WindowStart)
	assert.Equal(t, int64(1_700_003_600_000), got[1].WindowStart)
	assert.Equal(t, 3, got[0].Counts[domain.KindArbitrage])
	assert.Equal(t, 450.0, got[0].ProfitByKind[domain.KindArbitrage])
	assert.Equal(t, 530.5, got[0].PotentialProfit)
}

func TestRollupStore_InsertBulkDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRollupStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.RevenueRollup{testRollup(1000)}))

	err := store.InsertBulk(ctx, []*domain.RevenueRollup{testRollup(1000)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRollupStore_InsertBulkIntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRollupStore(conn)
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.RevenueRollup{testRollup(2000), testRollup(2000)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Nothing from the failed batch landed.
	got, err := store.GetByTimeRange(ctx, 0, 10_000)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRollupStore_InsertBulkNil(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRollupStore(conn)

	err := store.InsertBulk(context.Background(), []*domain.RevenueRollup{nil})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestRollupStore_DeleteOlderThan(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRollupStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.RevenueRollup{
		testRollup(1000), testRollup(2000), testRollup(3000),
	}))

	removed, err := store.DeleteOlderThan(ctx, 3000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}
