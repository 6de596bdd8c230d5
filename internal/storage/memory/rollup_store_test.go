package memory

import (
	"context"
	"errors"
	"testing"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

func TestRollupStore_InsertBulkAndGet(t *testing.T) {
	store := NewRollupStore()
	ctx := context.Background()

	rollups := []*domain.RevenueRollup{
		{
			WindowStart:     1000,
			ComputedAt:      4600000,
			Counts:          map[domain.OpportunityKind]int{domain.KindArbitrage: 3},
			ProfitByKind:    map[domain.OpportunityKind]float64{domain.KindArbitrage: 4500},
			PotentialProfit: 4500,
		},
		{WindowStart: 2000, ComputedAt: 4601000},
	}

	if err := store.InsertBulk(ctx, rollups); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, 0, 5000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 rollups, got %d", len(result))
	}
	if result[0].WindowStart != 1000 || result[1].WindowStart != 2000 {
		t.Errorf("Wrong order: %d, %d", result[0].WindowStart, result[1].WindowStart)
	}
	if result[0].Counts[domain.KindArbitrage] != 3 {
		t.Errorf("Counts mismatch: got %d", result[0].Counts[domain.KindArbitrage])
	}
}

func TestRollupStore_DuplicateWindowFailsBatch(t *testing.T) {
	store := NewRollupStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.RevenueRollup{{WindowStart: 1000}}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	batch := []*domain.RevenueRollup{{WindowStart: 2000}, {WindowStart: 1000}}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// The whole batch must be rejected, including the non-duplicate.
	result, err := store.GetByTimeRange(ctx, 0, 5000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("Expected 1 rollup after failed batch, got %d", len(result))
	}
}

func TestRollupStore_IntraBatchDuplicate(t *testing.T) {
	store := NewRollupStore()

	batch := []*domain.RevenueRollup{{WindowStart: 1000}, {WindowStart: 1000}}
	if err := store.InsertBulk(context.Background(), batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestRollupStore_DeleteOlderThan(t *testing.T) {
	store := NewRollupStore()
	ctx := context.Background()

	batch := []*domain.RevenueRollup{{WindowStart: 1000}, {WindowStart: 2000}, {WindowStart: 3000}}
	if err := store.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	removed, err := store.DeleteOlderThan(ctx, 3000)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}
}

func TestRollupStore_ReturnsCopies(t *testing.T) {
	store := NewRollupStore()
	ctx := context.Background()

	rollup := &domain.RevenueRollup{
		WindowStart: 1000,
		Counts:      map[domain.OpportunityKind]int{domain.KindSandwich: 1},
	}
	if err := store.InsertBulk(ctx, []*domain.RevenueRollup{rollup}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, 0, 5000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	got[0].Counts[domain.KindSandwich] = 99

	again, err := store.GetByTimeRange(ctx, 0, 5000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if again[0].Counts[domain.KindSandwich] != 1 {
		t.Errorf("Map mutation leaked into store: got %d", again[0].Counts[domain.KindSandwich])
	}
}
