package domain

// LendingPosition is a borrower position on a lending protocol. Positions
// are produced by a pluggable source; the default implementation simulates
// them since real protocol integration is out of scope.
type LendingPosition struct {
	PositionID           string
	Protocol             string // e.g. "solend", "marginfi", "kamino"
	Owner                string
	CollateralValue      float64 // USD
	DebtValue            float64 // USD
	LiquidationThreshold float64 // fraction of collateral counted toward health
	LiquidationBonus     float64 // fraction of debt paid to the liquidator
}

// HealthFactor returns (collateral * liquidationThreshold) / debt.
// Positions with no debt are reported as maximally healthy.
func (p *LendingPosition) HealthFactor() float64 {
	if p.DebtValue <= 0 {
		return 1e9
	}
	return p.CollateralValue * p.LiquidationThreshold / p.DebtValue
}
