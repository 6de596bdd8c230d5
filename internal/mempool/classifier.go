// Package mempool classifies streamed transaction logs and maintains the
// bounded recent-transaction buffer read by the sandwich and copy-trading
// detectors.
package mempool

import (
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/observability"
)

// Known DEX program IDs.
const (
	// RaydiumAMMV4 is the Raydium AMM v4 program ID.
	RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	// OrcaWhirlpool is the Orca Whirlpool program ID.
	OrcaWhirlpool = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"
	// PumpFun is the pump.fun program ID.
	PumpFun = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	// JupiterV6 is the Jupiter aggregator v6 program ID.
	JupiterV6 = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
)

// DefaultPrograms returns the program IDs monitored by default.
func DefaultPrograms() []string {
	return []string{RaydiumAMMV4, OrcaWhirlpool, PumpFun, JupiterV6}
}

// Trade-size and impact heuristics. The log stream does not carry amounts,
// so notional is estimated from the number of DEX program invocations.
const (
	// notionalPerCallUSD is the estimated USD notional per DEX program call.
	notionalPerCallUSD = 25_000
	// impactDenominatorUSD scales notional into a price-impact fraction.
	impactDenominatorUSD = 10_000_000
	// maxPriceImpact caps the estimated impact at 10%.
	maxPriceImpact = 0.10
)

// DefaultBufferCap bounds the recent-transaction buffer.
const DefaultBufferCap = 10_000

// Hook is invoked synchronously for every entry appended to the buffer.
// Hooks must be fast; detectors use them to nudge their next scan, not to
// run detection inline.
type Hook func(*domain.MempoolEntry)

// Classifier tags streamed transaction logs that touch known DEX programs
// and retains tagged entries in a bounded buffer.
type Classifier struct {
	programs []string

	mu      sync.RWMutex
	entries []*domain.MempoolEntry
	cap     int

	hooks []Hook

	classified atomic.Int64
	tagged     atomic.Int64
	malformed  atomic.Int64

	logger *log.Logger
}

// Options configures a Classifier.
type Options struct {
	// Programs are the DEX program IDs to match. Defaults to DefaultPrograms.
	Programs []string
	// BufferCap bounds the recent-transaction buffer. Defaults to DefaultBufferCap.
	BufferCap int
	Logger    *log.Logger
}

// NewClassifier creates a classifier. Program IDs that do not decode as
// 32-byte base58 values are dropped with a warning.
func NewClassifier(opts Options) *Classifier {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	programs := opts.Programs
	if len(programs) == 0 {
		programs = DefaultPrograms()
	}

	valid := make([]string, 0, len(programs))
	for _, p := range programs {
		decoded, err := base58.Decode(p)
		if err != nil || len(decoded) != 32 {
			logger.Printf("[mempool] Dropping invalid program ID %q", p)
			continue
		}
		valid = append(valid, p)
	}

	bufCap := opts.BufferCap
	if bufCap <= 0 {
		bufCap = DefaultBufferCap
	}

	return &Classifier{
		programs: valid,
		cap:      bufCap,
		logger:   logger,
	}
}

// AddHook registers a hook invoked for every tagged entry. Not safe to call
// concurrently with Classify; register hooks during wiring.
func (c *Classifier) AddHook(h Hook) {
	c.hooks = append(c.hooks, h)
}

// Classify inspects one streamed transaction log. Entries touching a known
// DEX program are tagged, appended to the buffer, and handed to the hooks;
// everything else is discarded. Returns the entry if it was retained.
func (c *Classifier) Classify(signature string, logs []string, slot int64, wallet string, now time.Time) *domain.MempoolEntry {
	c.classified.Add(1)

	if signature == "" || len(logs) == 0 {
		c.malformed.Add(1)
		observability.RecordMalformed("log-stream")
		return nil
	}

	calls := c.countProgramCalls(logs)
	if calls == 0 {
		observability.RecordLogClassified(false)
		return nil
	}

	entry := &domain.MempoolEntry{
		Signature:      signature,
		Logs:           logs,
		Slot:           slot,
		ObservedAt:     now.UnixMilli(),
		DEXInteraction: true,
		ProgramCalls:   calls,
		Wallet:         wallet,
	}

	c.mu.Lock()
	c.entries = append(c.entries, entry)
	if len(c.entries) > c.cap {
		// Hard ceiling: keep the most recent half.
		keep := c.cap / 2
		c.entries = append(c.entries[:0:0], c.entries[len(c.entries)-keep:]...)
	}
	c.mu.Unlock()

	c.tagged.Add(1)
	observability.RecordLogClassified(true)

	for _, h := range c.hooks {
		h(entry)
	}
	return entry
}

// countProgramCalls counts log lines invoking a known DEX program.
func (c *Classifier) countProgramCalls(logs []string) int {
	n := 0
	for _, line := range logs {
		for _, program := range c.programs {
			if strings.Contains(line, program) && strings.Contains(line, "invoke") {
				n++
				break
			}
		}
	}
	return n
}

// Recent returns entries observed within the window ending at now.
func (c *Classifier) Recent(window time.Duration, now time.Time) []*domain.MempoolEntry {
	cutoff := now.Add(-window).UnixMilli()

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*domain.MempoolEntry
	for _, e := range c.entries {
		if e.ObservedAt >= cutoff {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the current buffer size.
func (c *Classifier) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// PurgeOlderThan removes entries observed before cutoffMs and returns the
// number removed. Called only by the retention manager.
func (c *Classifier) PurgeOlderThan(cutoffMs int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.ObservedAt >= cutoffMs {
			kept = append(kept, e)
		}
	}
	removed := len(c.entries) - len(kept)
	c.entries = kept
	return removed
}

// Stats returns counts of classified, tagged, and malformed log entries.
func (c *Classifier) Stats() (classified, tagged, malformed int64) {
	return c.classified.Load(), c.tagged.Load(), c.malformed.Load()
}

// EstimateNotional estimates the USD notional of an entry's trade from its
// DEX program call count.
func EstimateNotional(e *domain.MempoolEntry) float64 {
	return float64(e.ProgramCalls) * notionalPerCallUSD
}

// EstimatePriceImpact estimates the price impact of an entry's trade as a
// fraction, scaling with estimated notional and capped at 10%.
func EstimatePriceImpact(e *domain.MempoolEntry) float64 {
	impact := EstimateNotional(e) / impactDenominatorUSD
	if impact > maxPriceImpact {
		return maxPriceImpact
	}
	return impact
}
