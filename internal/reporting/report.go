// Package reporting builds the periodic opportunity summary from detector
// histories and the profitability aggregator.
package reporting

import (
	"sort"
	"time"

	"solana-mev-engine/internal/analytics"
	"solana-mev-engine/internal/detector"
	"solana-mev-engine/internal/domain"
)

// TopOpportunityCount bounds the top-by-profit table.
const TopOpportunityCount = 10

// Report is the periodic summary of engine activity.
type Report struct {
	GeneratedAt time.Time

	// Cumulative per-kind totals, including trimmed history entries.
	Strategies []StrategySummary

	// TotalOpportunities and TotalPotentialProfit sum across strategies.
	TotalOpportunities   int64
	TotalPotentialProfit float64

	// TopOpportunities are the currently retained opportunities with the
	// highest estimated profit, across kinds.
	TopOpportunities []domain.Opportunity

	// Market structure at generation time.
	Market domain.MarketSnapshot

	// TrailingHour is the most recent revenue rollup, nil before the first
	// aggregation tick.
	TrailingHour *domain.RevenueRollup
}

// StrategySummary is the revenue-by-strategy breakdown line for one kind.
type StrategySummary struct {
	Kind            domain.OpportunityKind
	Count           int64
	PotentialProfit float64
	Retained        int
}

// Generator assembles reports from the live collections.
type Generator struct {
	histories  map[domain.OpportunityKind]*detector.History
	aggregator *analytics.Aggregator
}

// NewGenerator creates a report generator.
func NewGenerator(histories map[domain.OpportunityKind]*detector.History, aggregator *analytics.Aggregator) *Generator {
	return &Generator{histories: histories, aggregator: aggregator}
}

// Generate builds a report at the given time.
func (g *Generator) Generate(now time.Time) *Report {
	r := &Report{GeneratedAt: now}

	var all []domain.Opportunity
	for _, kind := range domain.Kinds() {
		h := g.histories[kind]
		if h == nil {
			continue
		}

		count, profit := h.Totals()
		r.Strategies = append(r.Strategies, StrategySummary{
			Kind:            kind,
			Count:           count,
			PotentialProfit: profit,
			Retained:        h.Len(),
		})
		r.TotalOpportunities += count
		r.TotalPotentialProfit += profit

		all = append(all, h.All()...)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Meta().EstimatedProfit > all[j].Meta().EstimatedProfit
	})
	if len(all) > TopOpportunityCount {
		all = all[:TopOpportunityCount]
	}
	r.TopOpportunities = all

	if g.aggregator != nil {
		r.Market = g.aggregator.Snapshot()
		rollups := g.aggregator.Rollups()
		if len(rollups) > 0 {
			r.TrailingHour = rollups[len(rollups)-1]
		}
	}

	return r
}
