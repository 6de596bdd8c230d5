// Package retention bounds memory by purging aged opportunities and mempool
// entries. It is the only component permitted to delete records outright.
package retention

import (
	"context"
	"log"
	"time"

	"solana-mev-engine/internal/storage"
)

// DefaultMaxAge is how long records are retained.
const DefaultMaxAge = 24 * time.Hour

// Purgeable is any in-memory collection that can drop records older than a
// cutoff. Opportunity histories and the mempool buffer implement it.
type Purgeable interface {
	PurgeOlderThan(cutoffMs int64) int
}

// Target pairs a purgeable collection with a name for logging.
type Target struct {
	Name string
	Purgeable
}

// Manager runs the periodic purge across in-memory targets and, when
// configured, the archive stores.
type Manager struct {
	targets  []Target
	archives []storage.Purger
	maxAge   time.Duration
	logger   *log.Logger
}

// Options configures a Manager.
type Options struct {
	Targets  []Target
	Archives []storage.Purger
	MaxAge   time.Duration // default DefaultMaxAge
	Logger   *log.Logger
}

// NewManager creates a retention manager.
func NewManager(opts Options) *Manager {
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		targets:  opts.Targets,
		archives: opts.Archives,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// Tick purges every target and archive. Archive failures are logged and do
// not stop the sweep. Returns the number of in-memory records removed.
func (m *Manager) Tick(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-m.maxAge).UnixMilli()

	removed := 0
	for _, target := range m.targets {
		n := target.PurgeOlderThan(cutoff)
		removed += n
		if n > 0 {
			m.logger.Printf("[retention] Purged %d records from %s", n, target.Name)
		}
	}

	for _, archive := range m.archives {
		n, err := archive.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			m.logger.Printf("[retention] Archive purge: %v", err)
			continue
		}
		if n > 0 {
			m.logger.Printf("[retention] Purged %d archived records", n)
		}
	}

	return removed
}
