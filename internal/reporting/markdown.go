package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"solana-mev-engine/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Opportunity Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Opportunities: %d | Potential Profit: $%.2f\n\n",
		r.TotalOpportunities, r.TotalPotentialProfit))

	// Revenue by Strategy
	sb.WriteString("## Revenue by Strategy\n\n")
	if len(r.Strategies) > 0 {
		sb.WriteString("| Strategy | Opportunities | Potential Profit | Retained |\n")
		sb.WriteString("|----------|---------------|------------------|----------|\n")
		for _, s := range r.Strategies {
			sb.WriteString(fmt.Sprintf("| %s | %d | $%.2f | %d |\n",
				s.Kind, s.Count, s.PotentialProfit, s.Retained))
		}
	} else {
		sb.WriteString("No strategy activity recorded.\n")
	}
	sb.WriteString("\n")

	// Top Opportunities
	sb.WriteString("## Top Opportunities\n\n")
	if len(r.TopOpportunities) > 0 {
		sb.WriteString("| ID | Kind | Est. Profit | Confidence | Detected |\n")
		sb.WriteString("|----|------|-------------|------------|----------|\n")
		for _, op := range r.TopOpportunities {
			meta := op.Meta()
			sb.WriteString(fmt.Sprintf("| %s | %s | $%.2f | %.4f | %s |\n",
				meta.ID, meta.Kind, meta.EstimatedProfit, meta.Confidence,
				time.UnixMilli(meta.DetectedAt).UTC().Format(time.RFC3339)))
		}
	} else {
		sb.WriteString("No opportunities retained.\n")
	}
	sb.WriteString("\n")

	// Market Structure
	sb.WriteString("## Market Structure\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Volatility | %.6f |\n", r.Market.Volatility))
	sb.WriteString(fmt.Sprintf("| 24h Volume | $%.2f |\n", r.Market.TotalVolume24h))
	sb.WriteString(fmt.Sprintf("| Quote Count | %d |\n", r.Market.QuoteCount))
	if len(r.Market.LiquidityByExchange) > 0 {
		sb.WriteString("\n### Liquidity by Exchange\n\n")
		sb.WriteString("| Exchange | Liquidity |\n")
		sb.WriteString("|----------|-----------|\n")
		for _, e := range sortedKeys(r.Market.LiquidityByExchange) {
			sb.WriteString(fmt.Sprintf("| %s | $%.2f |\n", e, r.Market.LiquidityByExchange[e]))
		}
	}
	sb.WriteString("\n")

	// Trailing Hour
	sb.WriteString("## Trailing Hour\n\n")
	if r.TrailingHour != nil {
		sb.WriteString(fmt.Sprintf("Window start: %s | Potential profit: $%.2f\n\n",
			time.UnixMilli(r.TrailingHour.WindowStart).UTC().Format(time.RFC3339),
			r.TrailingHour.PotentialProfit))
		sb.WriteString("| Strategy | Count | Profit |\n")
		sb.WriteString("|----------|-------|--------|\n")
		for _, kind := range sortedRollupKinds(r.TrailingHour.Counts) {
			sb.WriteString(fmt.Sprintf("| %s | %d | $%.2f |\n",
				kind, r.TrailingHour.Counts[kind], r.TrailingHour.ProfitByKind[kind]))
		}
	} else {
		sb.WriteString("No aggregation sample available yet.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedRollupKinds(m map[domain.OpportunityKind]int) []domain.OpportunityKind {
	kinds := make([]domain.OpportunityKind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
