package memory

import (
	"context"
	"sort"
	"sync"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

// OpportunityStore is an in-memory implementation of storage.OpportunityStore.
type OpportunityStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OpportunityRecord // keyed by ID
}

// NewOpportunityStore creates a new in-memory opportunity store.
func NewOpportunityStore() *OpportunityStore {
	return &OpportunityStore{
		data: make(map[string]*domain.OpportunityRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if the ID exists.
func (s *OpportunityStore) Insert(_ context.Context, r *domain.OpportunityRecord) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.ID] = &copy
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *OpportunityStore) GetByID(_ context.Context, id string) (*domain.OpportunityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetByKind retrieves all records of a given kind, ordered by detection time ASC.
func (s *OpportunityStore) GetByKind(_ context.Context, kind domain.OpportunityKind) ([]*domain.OpportunityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OpportunityRecord
	for _, r := range s.data {
		if r.Kind == kind {
			copy := *r
			result = append(result, &copy)
		}
	}

	sortByDetectedAt(result)
	return result, nil
}

// GetByTimeRange retrieves records detected within [start, end] (inclusive).
func (s *OpportunityStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.OpportunityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OpportunityRecord
	for _, r := range s.data {
		if r.DetectedAt >= start && r.DetectedAt <= end {
			copy := *r
			result = append(result, &copy)
		}
	}

	sortByDetectedAt(result)
	return result, nil
}

// DeleteOlderThan removes records detected strictly before cutoffMs.
func (s *OpportunityStore) DeleteOlderThan(_ context.Context, cutoffMs int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, r := range s.data {
		if r.DetectedAt < cutoffMs {
			delete(s.data, id)
			removed++
		}
	}
	return removed, nil
}

func sortByDetectedAt(records []*domain.OpportunityRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].DetectedAt != records[j].DetectedAt {
			return records[i].DetectedAt < records[j].DetectedAt
		}
		return records[i].ID < records[j].ID
	})
}

var _ storage.OpportunityStore = (*OpportunityStore)(nil)
