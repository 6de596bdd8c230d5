package domain

// RevenueRollup is one aggregation sample: trailing-window opportunity counts
// and potential profit per kind, appended by the profitability aggregator.
type RevenueRollup struct {
	WindowStart     int64                     // Unix ms, start of the trailing window
	ComputedAt      int64                     // Unix ms
	Counts          map[OpportunityKind]int   // opportunities per kind in the window
	ProfitByKind    map[OpportunityKind]float64
	PotentialProfit float64 // sum across kinds, USD
}

// MarketSnapshot is the single current-value market-structure record,
// overwritten on each market-structure scan.
type MarketSnapshot struct {
	Volatility          float64            // coefficient of variation of fresh quotes
	TotalVolume24h      float64            // sum of volume24h across registry entries
	LiquidityByExchange map[string]float64 // sum of liquidityDepth grouped by exchange
	QuoteCount          int
	ComputedAt          int64 // Unix ms
}

// WalletActivityWindow is per-wallet recent activity, rebuilt on every
// copy-trading scan from the current mempool buffer. It is never persisted
// across scans.
type WalletActivityWindow struct {
	Wallet          string
	Transactions    []*MempoolEntry
	AggregateVolume float64 // estimated USD notional across transactions
}
