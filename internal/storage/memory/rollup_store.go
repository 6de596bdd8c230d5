package memory

import (
	"context"
	"sort"
	"sync"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

// RollupStore is an in-memory implementation of storage.RollupStore.
type RollupStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.RevenueRollup // keyed by window start
}

// NewRollupStore creates a new in-memory rollup store.
func NewRollupStore() *RollupStore {
	return &RollupStore{
		data: make(map[int64]*domain.RevenueRollup),
	}
}

// InsertBulk adds multiple rollups. Fails entire batch on any duplicate window start.
func (s *RollupStore) InsertBulk(_ context.Context, rollups []*domain.RevenueRollup) error {
	if len(rollups) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[int64]struct{}, len(rollups))
	for _, r := range rollups {
		if r == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.WindowStart]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.WindowStart]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.WindowStart] = struct{}{}
	}

	for _, r := range rollups {
		s.data[r.WindowStart] = copyRollup(r)
	}
	return nil
}

// GetByTimeRange retrieves rollups with window start within [start, end] (inclusive).
func (s *RollupStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.RevenueRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RevenueRollup
	for _, r := range s.data {
		if r.WindowStart >= start && r.WindowStart <= end {
			result = append(result, copyRollup(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].WindowStart < result[j].WindowStart
	})
	return result, nil
}

// DeleteOlderThan removes rollups with window start strictly before cutoffMs.
func (s *RollupStore) DeleteOlderThan(_ context.Context, cutoffMs int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for start, r := range s.data {
		if r.WindowStart < cutoffMs {
			delete(s.data, start)
			removed++
		}
	}
	return removed, nil
}

func copyRollup(r *domain.RevenueRollup) *domain.RevenueRollup {
	copy := *r
	copy.Counts = make(map[domain.OpportunityKind]int, len(r.Counts))
	for k, v := range r.Counts {
		copy.Counts[k] = v
	}
	copy.ProfitByKind = make(map[domain.OpportunityKind]float64, len(r.ProfitByKind))
	for k, v := range r.ProfitByKind {
		copy.ProfitByKind[k] = v
	}
	return &copy
}

var _ storage.RollupStore = (*RollupStore)(nil)
