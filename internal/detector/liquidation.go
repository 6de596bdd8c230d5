package detector

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/events"
)

// Liquidation scoring constants.
const (
	liquidationHealthTrigger = 1.1
	liquidationSizeRiskRef   = 100_000 // debt at which size risk saturates
	liquidationSizeRiskCap   = 0.5
	liquidationProtocolRisk  = 0.3
)

// PositionSource supplies lending positions. Real protocol integration is
// out of scope; the default source simulates positions.
type PositionSource interface {
	Positions(ctx context.Context) ([]*domain.LendingPosition, error)
}

// LiquidationMonitor scans lending positions for under-collateralization.
type LiquidationMonitor struct {
	source     PositionSource
	history    *History
	bus        *events.Bus
	volatility VolatilityFunc
	gate       RecordGate
	logger     *log.Logger

	// flagged tracks positions already recorded while they stay unhealthy,
	// so a position is not re-emitted every 30s.
	flagged map[string]struct{}
}

// LiquidationOptions configures a LiquidationMonitor.
type LiquidationOptions struct {
	Source     PositionSource
	History    *History
	Bus        *events.Bus
	Volatility VolatilityFunc
	Gate       RecordGate
	Logger     *log.Logger
}

// NewLiquidationMonitor creates a monitor.
func NewLiquidationMonitor(opts LiquidationOptions) *LiquidationMonitor {
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

	return &LiquidationMonitor{
		source:     opts.Source,
		history:    opts.History,
		bus:        opts.Bus,
		volatility: volatility,
		gate:       gate,
		logger:     logger,
		flagged:    make(map[string]struct{}),
	}
}

// Tick fetches positions and records an opportunity per newly unhealthy one.
// A fetch failure is logged and the cycle skipped; it is never fatal.
func (m *LiquidationMonitor) Tick(ctx context.Context, now time.Time) []*domain.LiquidationOpportunity {
	positions, err := m.source.Positions(ctx)
	if err != nil {
		m.logger.Printf("[liquidation] Fetch positions: %v", err)
		return nil
	}

	nowMs := now.UnixMilli()
	healthy := make(map[string]struct{}, len(positions))
	var recorded []*domain.LiquidationOpportunity

	for _, p := range positions {
		hf := p.HealthFactor()
		if hf >= liquidationHealthTrigger {
			healthy[p.PositionID] = struct{}{}
			continue
		}
		if _, already := m.flagged[p.PositionID]; already {
			continue
		}

		profit := p.DebtValue * p.LiquidationBonus
		if profit < 0 {
			profit = 0
		}

		op := &domain.LiquidationOpportunity{
			OpportunityMeta: domain.OpportunityMeta{
				ID:              uuid.NewString(),
				Kind:            domain.KindLiquidation,
				EstimatedProfit: profit,
				Confidence:      m.confidence(p),
				DetectedAt:      nowMs,
			},
			Protocol:        p.Protocol,
			PositionID:      p.PositionID,
			Owner:           p.Owner,
			CollateralValue: p.CollateralValue,
			DebtValue:       p.DebtValue,
			HealthFactor:    hf,
			Bonus:           p.LiquidationBonus,
		}

		if !m.gate() {
			return recorded
		}
		m.flagged[p.PositionID] = struct{}{}
		m.history.Append(op)
		m.bus.Publish(op)
		m.logger.Printf("[liquidation] %s position=%s hf=%.3f debt=$%.0f profit=$%.2f",
			op.Protocol, op.PositionID, op.HealthFactor, op.DebtValue, op.EstimatedProfit)
		recorded = append(recorded, op)
	}

	// Positions that recovered become eligible again.
	for id := range m.flagged {
		if _, ok := healthy[id]; ok {
			delete(m.flagged, id)
		}
	}
	return recorded
}

// confidence inverts the mean risk of protocol, size, and volatility.
func (m *LiquidationMonitor) confidence(p *domain.LendingPosition) float64 {
	sizeRisk := p.DebtValue / liquidationSizeRiskRef
	if sizeRisk > liquidationSizeRiskCap {
		sizeRisk = liquidationSizeRiskCap
	}
	risk := (liquidationProtocolRisk + sizeRisk + clamp01(m.volatility())) / 3
	return clamp01(1 - risk)
}
