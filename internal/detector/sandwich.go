package detector

import (
	"log"
	"time"

	"github.com/google/uuid"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/events"
	"solana-mev-engine/internal/market"
	"solana-mev-engine/internal/mempool"
)

// Sandwich scoring constants.
const (
	sandwichScanWindow   = 5 * time.Second
	sandwichFrontRunCut  = 0.5 // fraction of notional*impact captured front-running
	sandwichBackRunCut   = 0.3 // fraction captured backing out
	sandwichMinNetProfit = 100 // USD
	sandwichGasLamports  = 50_000_000
	defaultSOLPriceUSD   = 100
	sandwichNotionalRef  = 100_000 // notional considered fully confident
	sandwichImpactRef    = 0.05    // impact considered fully confident
)

// VolatilityFunc supplies the current market volatility estimate in [0,1].
type VolatilityFunc func() float64

// SandwichDetector scans the recent mempool buffer for large trades with
// estimable price impact.
type SandwichDetector struct {
	classifier *mempool.Classifier
	registry   *market.Registry
	history    *History
	bus        *events.Bus
	threshold  float64 // minimum price impact fraction
	volatility VolatilityFunc
	gate       RecordGate
	logger     *log.Logger

	// seen deduplicates target signatures across overlapping scan windows.
	seen map[string]int64
}

// SandwichOptions configures a SandwichDetector.
type SandwichOptions struct {
	Classifier      *mempool.Classifier
	Registry        *market.Registry
	History         *History
	Bus             *events.Bus
	ImpactThreshold float64 // default 0.005 (0.5%)
	Volatility      VolatilityFunc
	Gate            RecordGate
	Logger          *log.Logger
}

// NewSandwichDetector creates a detector.
func NewSandwichDetector(opts SandwichOptions) *SandwichDetector {
	threshold := opts.ImpactThreshold
	if threshold <= 0 {
		threshold = 0.005
	}
	volatility := opts.Volatility
	if volatility == nil {
		volatility = func() float64 { return 0 }
	}
	gate := opts.Gate
	if gate == nil {
		gate = func() bool { return true }
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &SandwichDetector{
		classifier: opts.Classifier,
		registry:   opts.Registry,
		history:    opts.History,
		bus:        opts.Bus,
		threshold:  threshold,
		volatility: volatility,
		gate:       gate,
		logger:     logger,
		seen:       make(map[string]int64),
	}
}

// Tick runs one scan at now. Returns the opportunities recorded this tick.
func (d *SandwichDetector) Tick(now time.Time) []*domain.SandwichOpportunity {
	nowMs := now.UnixMilli()
	d.pruneSeen(nowMs)

	var recorded []*domain.SandwichOpportunity
	for _, entry := range d.classifier.Recent(sandwichScanWindow, now) {
		if !entry.LargeTrade() {
			continue
		}
		if _, dup := d.seen[entry.Signature]; dup {
			continue
		}

		impact := mempool.EstimatePriceImpact(entry)
		if impact <= d.threshold {
			continue
		}

		notional := mempool.EstimateNotional(entry)
		gasUSD := float64(sandwichGasLamports) / 1e9 * d.registry.SOLPriceUSD(defaultSOLPriceUSD)

		profit := sandwichFrontRunCut*notional*impact + sandwichBackRunCut*notional*impact - gasUSD
		if profit <= sandwichMinNetProfit {
			continue
		}

		op := &domain.SandwichOpportunity{
			OpportunityMeta: domain.OpportunityMeta{
				ID:              uuid.NewString(),
				Kind:            domain.KindSandwich,
				EstimatedProfit: profit,
				Confidence:      d.confidence(notional, impact),
				DetectedAt:      nowMs,
			},
			TargetSignature: entry.Signature,
			NotionalVolume:  notional,
			PriceImpact:     impact,
			GasCostUSD:      gasUSD,
		}

		if !d.gate() {
			return recorded
		}
		d.seen[entry.Signature] = nowMs
		d.history.Append(op)
		d.bus.Publish(op)
		d.logger.Printf("[sandwich] target=%s notional=$%.0f impact=%.2f%% profit=$%.2f conf=%.2f",
			op.TargetSignature, op.NotionalVolume, op.PriceImpact*100, op.EstimatedProfit, op.Confidence)
		recorded = append(recorded, op)
	}
	return recorded
}

// confidence is the mean of size, impact, and volatility scores.
func (d *SandwichDetector) confidence(notional, impact float64) float64 {
	sizeScore := clamp01(notional / sandwichNotionalRef)
	impactScore := clamp01(impact / sandwichImpactRef)
	volScore := clamp01(d.volatility())
	return (sizeScore + impactScore + volScore) / 3
}

// pruneSeen drops dedupe entries older than the scan window.
func (d *SandwichDetector) pruneSeen(nowMs int64) {
	cutoff := nowMs - sandwichScanWindow.Milliseconds()
	for sig, ts := range d.seen {
		if ts < cutoff {
			delete(d.seen, sig)
		}
	}
}
