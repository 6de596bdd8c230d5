package detector

import (
	"log"
	"time"

	"github.com/google/uuid"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/events"
	"solana-mev-engine/internal/market"
)

// Confidence normalization references for arbitrage scoring.
const (
	arbLiquidityRef = 1_000_000 // liquidity considered fully confident
	arbVolumeRef    = 2_000_000 // 24h volume considered fully confident
)

// RecordGate reports whether new opportunities may still be recorded.
// The engine clears it when the Stopping transition begins.
type RecordGate func() bool

// ArbitrageDetector scans the quote registry for cross-exchange spreads on
// the configured pairs.
type ArbitrageDetector struct {
	registry  *market.Registry
	history   *History
	bus       *events.Bus
	pairs     []string
	threshold float64 // minimum profit percent, e.g. 0.5 means 0.5%
	staleness time.Duration
	gate      RecordGate
	logger    *log.Logger
}

// ArbitrageOptions configures an ArbitrageDetector.
type ArbitrageOptions struct {
	Registry         *market.Registry
	History          *History
	Bus              *events.Bus
	Pairs            []string
	ThresholdPercent float64       // default 0.5
	Staleness        time.Duration // default market.DefaultStaleness
	Gate             RecordGate
	Logger           *log.Logger
}

// NewArbitrageDetector creates a detector.
func NewArbitrageDetector(opts ArbitrageOptions) *ArbitrageDetector {
	threshold := opts.ThresholdPercent
	if threshold <= 0 {
		threshold = 0.5
	}
	staleness := opts.Staleness
	if staleness <= 0 {
		staleness = market.DefaultStaleness
	}
	gate := opts.Gate
	if gate == nil {
		gate = func() bool { return true }
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &ArbitrageDetector{
		registry:  opts.Registry,
		history:   opts.History,
		bus:       opts.Bus,
		pairs:     opts.Pairs,
		threshold: threshold,
		staleness: staleness,
		gate:      gate,
		logger:    logger,
	}
}

// Tick runs one scan at now. Returns the opportunities recorded this tick.
func (d *ArbitrageDetector) Tick(now time.Time) []*domain.ArbitrageOpportunity {
	nowMs := now.UnixMilli()
	var recorded []*domain.ArbitrageOpportunity

	for _, pair := range d.pairs {
		quotes := d.registry.FreshQuotesFor(pair, d.staleness, nowMs)
		if len(quotes) < 2 {
			// StaleDataSkip: not an error.
			continue
		}

		for i := 0; i < len(quotes); i++ {
			for j := i + 1; j < len(quotes); j++ {
				// Evaluate both directions of the unordered exchange pair.
				if op := d.evaluate(quotes[i], quotes[j], nowMs); op != nil {
					recorded = append(recorded, op)
				}
				if op := d.evaluate(quotes[j], quotes[i], nowMs); op != nil {
					recorded = append(recorded, op)
				}
			}
		}
	}
	return recorded
}

// evaluate checks the buy-on-buy / sell-on-sell direction and records an
// opportunity when the spread clears the threshold.
func (d *ArbitrageDetector) evaluate(buy, sell domain.Quote, nowMs int64) *domain.ArbitrageOpportunity {
	if buy.Ask <= 0 || sell.Bid <= 0 {
		return nil
	}

	priceDiff := sell.Bid - buy.Ask
	profitPercent := priceDiff / buy.Ask * 100
	if profitPercent <= d.threshold {
		return nil
	}

	minLiquidity := buy.LiquidityDepth
	if sell.LiquidityDepth < minLiquidity {
		minLiquidity = sell.LiquidityDepth
	}
	tradeSize := minLiquidity * 0.01

	profit := priceDiff * tradeSize
	if profit < 0 {
		profit = 0
	}

	op := &domain.ArbitrageOpportunity{
		OpportunityMeta: domain.OpportunityMeta{
			ID:              uuid.NewString(),
			Kind:            domain.KindArbitrage,
			EstimatedProfit: profit,
			Confidence:      d.confidence(buy, sell, nowMs),
			DetectedAt:      nowMs,
		},
		Pair:          buy.Pair,
		BuyExchange:   buy.Exchange,
		SellExchange:  sell.Exchange,
		BuyPrice:      buy.Ask,
		SellPrice:     sell.Bid,
		SpreadPercent: profitPercent,
		MaxTradeSize:  tradeSize,
	}

	if !d.record(op) {
		return nil
	}
	return op
}

func (d *ArbitrageDetector) record(op *domain.ArbitrageOpportunity) bool {
	if !d.gate() {
		return false
	}
	d.history.Append(op)
	d.bus.Publish(op)
	d.logger.Printf("[arb] %s buy %s @%.4f sell %s @%.4f spread=%.2f%% profit=$%.2f conf=%.2f",
		op.Pair, op.BuyExchange, op.BuyPrice, op.SellExchange, op.SellPrice,
		op.SpreadPercent, op.EstimatedProfit, op.Confidence)
	return true
}

// confidence is the mean of three clamped scores: liquidity relative to 1M,
// 24h volume relative to 2M, and freshness decaying linearly to 0 over the
// staleness window from the older of the two quotes.
func (d *ArbitrageDetector) confidence(buy, sell domain.Quote, nowMs int64) float64 {
	minLiquidity := buy.LiquidityDepth
	if sell.LiquidityDepth < minLiquidity {
		minLiquidity = sell.LiquidityDepth
	}
	minVolume := buy.Volume24h
	if sell.Volume24h < minVolume {
		minVolume = sell.Volume24h
	}

	oldest := buy.CapturedAt
	if sell.CapturedAt < oldest {
		oldest = sell.CapturedAt
	}
	ageMs := float64(nowMs - oldest)

	liquidityScore := clamp01(minLiquidity / arbLiquidityRef)
	volumeScore := clamp01(minVolume / arbVolumeRef)
	freshnessScore := clamp01(1 - ageMs/float64(d.staleness.Milliseconds()))

	return (liquidityScore + volumeScore + freshnessScore) / 3
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
