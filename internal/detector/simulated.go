package detector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"

	"solana-mev-engine/internal/domain"
)

// Simulated strategy inputs. Lending positions and wallet settlement data
// are not available to this subsystem, so the default sources fabricate
// plausible values from a seeded generator. Swap these for real
// implementations without touching detection logic.

// SimulatedPositionSource fabricates lending positions across a fixed set
// of protocols. Positions drift between fetches so health factors move.
type SimulatedPositionSource struct {
	mu        sync.Mutex
	rng       *rand.Rand
	protocols []string
	count     int
}

// NewSimulatedPositionSource creates a source with the given seed and
// position count per fetch.
func NewSimulatedPositionSource(seed int64, count int) *SimulatedPositionSource {
	if count <= 0 {
		count = 20
	}
	return &SimulatedPositionSource{
		rng:       rand.New(rand.NewSource(seed)),
		protocols: []string{"solend", "marginfi", "kamino"},
		count:     count,
	}
}

// Positions returns a fresh batch of simulated positions.
func (s *SimulatedPositionSource) Positions(_ context.Context) ([]*domain.LendingPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions := make([]*domain.LendingPosition, 0, s.count)
	for i := 0; i < s.count; i++ {
		collateral := 10_000 + s.rng.Float64()*490_000
		// Debt between 50% and 95% of collateral keeps a spread of health factors.
		debt := collateral * (0.5 + s.rng.Float64()*0.45)
		positions = append(positions, &domain.LendingPosition{
			PositionID:           fmt.Sprintf("pos-%d", i),
			Protocol:             s.protocols[i%len(s.protocols)],
			Owner:                fmt.Sprintf("owner-%d", i),
			CollateralValue:      collateral,
			DebtValue:            debt,
			LiquidationThreshold: 0.8,
			LiquidationBonus:     0.05,
		})
	}
	return positions, nil
}

// SimulatedWalletProfiler derives a stable pseudo profile from the wallet
// address, so a given wallet looks consistent across scans.
type SimulatedWalletProfiler struct{}

// NewSimulatedWalletProfiler creates a profiler.
func NewSimulatedWalletProfiler() *SimulatedWalletProfiler {
	return &SimulatedWalletProfiler{}
}

// Profile returns deterministic profit and win-rate estimates for a wallet.
// Profit scales with observed aggregate volume; win rate is hash-derived in
// [0.40, 0.95).
func (p *SimulatedWalletProfiler) Profile(wallet string, window *domain.WalletActivityWindow) (float64, float64) {
	h := fnv.New64a()
	h.Write([]byte(wallet))
	sum := h.Sum64()

	winRate := 0.40 + float64(sum%5500)/10_000 // [0.40, 0.95)
	profit := window.AggregateVolume * 0.02 * winRate
	return profit, winRate
}
