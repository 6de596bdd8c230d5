// Package analytics rolls opportunity histories up into revenue statistics
// and computes market-structure metrics from the quote registry.
package analytics

import (
	"log"
	"math"
	"sync"
	"time"

	"solana-mev-engine/internal/detector"
	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/market"
)

// Rollup retention: samples are appended once a minute and the series is
// compacted to half its cap on overflow.
const (
	RollupWindow     = time.Hour
	MaxRollupSamples = 1440
	CompactedSamples = 720
	volatilityMaxAge = 60 * time.Second
)

// Aggregator owns the RevenueRollup series and the current MarketSnapshot.
type Aggregator struct {
	registry  *market.Registry
	histories map[domain.OpportunityKind]*detector.History
	logger    *log.Logger

	mu       sync.RWMutex
	rollups  []*domain.RevenueRollup
	snapshot domain.MarketSnapshot
}

// NewAggregator creates an aggregator over the given histories.
func NewAggregator(registry *market.Registry, histories map[domain.OpportunityKind]*detector.History, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{
		registry:  registry,
		histories: histories,
		logger:    logger,
	}
}

// TickRevenue appends one rollup sample covering the trailing hour.
func (a *Aggregator) TickRevenue(now time.Time) *domain.RevenueRollup {
	nowMs := now.UnixMilli()
	windowStart := nowMs - RollupWindow.Milliseconds()

	rollup := &domain.RevenueRollup{
		WindowStart:  windowStart,
		ComputedAt:   nowMs,
		Counts:       make(map[domain.OpportunityKind]int),
		ProfitByKind: make(map[domain.OpportunityKind]float64),
	}

	for kind, history := range a.histories {
		for _, op := range history.Since(windowStart) {
			rollup.Counts[kind]++
			rollup.ProfitByKind[kind] += op.Meta().EstimatedProfit
		}
		rollup.PotentialProfit += rollup.ProfitByKind[kind]
	}

	a.mu.Lock()
	a.rollups = append(a.rollups, rollup)
	if len(a.rollups) > MaxRollupSamples {
		kept := make([]*domain.RevenueRollup, CompactedSamples)
		copy(kept, a.rollups[len(a.rollups)-CompactedSamples:])
		a.rollups = kept
	}
	a.mu.Unlock()

	return rollup
}

// TickMarketStructure recomputes the market snapshot: volatility as the
// coefficient of variation of quotes fresher than 60s, total 24h volume over
// every registry entry, and liquidity depth grouped by exchange.
func (a *Aggregator) TickMarketStructure(now time.Time) domain.MarketSnapshot {
	nowMs := now.UnixMilli()
	maxAgeMs := volatilityMaxAge.Milliseconds()

	snapshot := domain.MarketSnapshot{
		LiquidityByExchange: make(map[string]float64),
		ComputedAt:          nowMs,
	}

	var prices []float64
	for _, q := range a.registry.Snapshot() {
		snapshot.TotalVolume24h += q.Volume24h
		snapshot.LiquidityByExchange[q.Exchange] += q.LiquidityDepth
		snapshot.QuoteCount++
		if q.FreshAt(nowMs, maxAgeMs) && q.Price > 0 {
			prices = append(prices, q.Price)
		}
	}
	snapshot.Volatility = coefficientOfVariation(prices)

	a.mu.Lock()
	a.snapshot = snapshot
	a.mu.Unlock()

	return snapshot
}

// Volatility returns the current volatility estimate. Used by detectors as
// a confidence input, clamped to [0,1] by the callers.
func (a *Aggregator) Volatility() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot.Volatility
}

// Snapshot returns the current market snapshot.
func (a *Aggregator) Snapshot() domain.MarketSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}

// Rollups returns a copy of the current rollup series, oldest first.
func (a *Aggregator) Rollups() []*domain.RevenueRollup {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*domain.RevenueRollup, len(a.rollups))
	copy(out, a.rollups)
	return out
}

// RollupsSince returns rollup samples computed at or after cutoffMs.
func (a *Aggregator) RollupsSince(cutoffMs int64) []*domain.RevenueRollup {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []*domain.RevenueRollup
	for _, r := range a.rollups {
		if r.ComputedAt >= cutoffMs {
			out = append(out, r)
		}
	}
	return out
}

func coefficientOfVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0
	}

	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	stddev := math.Sqrt(sqDiff / float64(len(values)))

	return stddev / mean
}
