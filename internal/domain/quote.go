package domain

// Quote is one exchange's freshest price/liquidity/volume data point for a
// trading pair. One logical quote exists per (exchange, pair); a newer capture
// overwrites the older one in the registry.
type Quote struct {
	Exchange       string  // exchange name, e.g. "raydium"
	Pair           string  // trading pair, e.g. "SOL/USDC"
	Price          float64 // last trade or mid price
	Bid            float64 // best bid
	Ask            float64 // best ask
	LiquidityDepth float64 // pool liquidity in quote-currency units
	Volume24h      float64 // trailing 24h volume in quote-currency units
	PoolAddress    string  // on-chain pool account, if known
	CapturedAt     int64   // Unix timestamp in milliseconds
}

// AgeMs returns the quote age relative to nowMs.
func (q *Quote) AgeMs(nowMs int64) int64 {
	return nowMs - q.CapturedAt
}

// FreshAt reports whether the quote is usable at nowMs given a staleness
// threshold. A quote exactly at the threshold is still fresh; anything older
// is not.
func (q *Quote) FreshAt(nowMs int64, maxAgeMs int64) bool {
	return q.AgeMs(nowMs) <= maxAgeMs
}
