// Package detector implements the four opportunity detectors and their
// shared bounded history.
package detector

import (
	"sync"

	"solana-mev-engine/internal/domain"
)

// History capacity defaults: once the list exceeds maxLen entries the next
// append trims it to the most recent trimTo.
const (
	DefaultHistoryMax    = 1000
	DefaultHistoryTrimTo = 500
)

// History is a bounded, time-ordered list of opportunities for one kind.
// Appends come from a single detector; reads come from the aggregator,
// reporting, and retention concurrently.
type History struct {
	mu     sync.RWMutex
	items  []domain.Opportunity
	maxLen int
	trimTo int

	// Cumulative counters survive trimming.
	total       int64
	totalProfit float64
}

// NewHistory creates a history with the given bounds. Non-positive values
// select the defaults.
func NewHistory(maxLen, trimTo int) *History {
	if maxLen <= 0 {
		maxLen = DefaultHistoryMax
	}
	if trimTo <= 0 || trimTo > maxLen {
		trimTo = DefaultHistoryTrimTo
	}
	return &History{maxLen: maxLen, trimTo: trimTo}
}

// Append records an opportunity. When the list exceeds maxLen the most
// recent trimTo entries are kept, preserving time order.
func (h *History) Append(op domain.Opportunity) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append(h.items, op)
	h.total++
	h.totalProfit += op.Meta().EstimatedProfit

	if len(h.items) > h.maxLen {
		kept := make([]domain.Opportunity, h.trimTo)
		copy(kept, h.items[len(h.items)-h.trimTo:])
		h.items = kept
	}
}

// Since returns all entries with DetectedAt >= cutoffMs, in time order.
func (h *History) Since(cutoffMs int64) []domain.Opportunity {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []domain.Opportunity
	for _, op := range h.items {
		if op.Meta().DetectedAt >= cutoffMs {
			out = append(out, op)
		}
	}
	return out
}

// All returns a copy of the current entries.
func (h *History) All() []domain.Opportunity {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]domain.Opportunity, len(h.items))
	copy(out, h.items)
	return out
}

// Len returns the current number of retained entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

// Totals returns the cumulative opportunity count and potential profit,
// including trimmed entries.
func (h *History) Totals() (count int64, profit float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total, h.totalProfit
}

// PurgeOlderThan removes entries detected before cutoffMs and returns the
// number removed. Called only by the retention manager.
func (h *History) PurgeOlderThan(cutoffMs int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.items[:0]
	for _, op := range h.items {
		if op.Meta().DetectedAt >= cutoffMs {
			kept = append(kept, op)
		}
	}
	removed := len(h.items) - len(kept)
	h.items = kept
	return removed
}
