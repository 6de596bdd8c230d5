package domain

// OpportunityKind identifies one of the four detection strategies.
type OpportunityKind string

// Opportunity kinds.
const (
	KindArbitrage   OpportunityKind = "arbitrage"
	KindSandwich    OpportunityKind = "sandwich"
	KindLiquidation OpportunityKind = "liquidation"
	KindCopyTrading OpportunityKind = "copy_trading"
)

// Kinds lists all opportunity kinds in a stable order.
func Kinds() []OpportunityKind {
	return []OpportunityKind{KindArbitrage, KindSandwich, KindLiquidation, KindCopyTrading}
}

// OpportunityMeta holds the fields common to every opportunity kind.
// Profit and confidence are derived by the detector that created the
// opportunity and are never externally settable.
type OpportunityMeta struct {
	ID              string          // unique opportunity ID
	Kind            OpportunityKind // discriminator
	EstimatedProfit float64         // USD, never negative
	Confidence      float64         // [0,1]
	DetectedAt      int64           // Unix timestamp in milliseconds
}

// Opportunity is the closed set of detection results. Each kind carries its
// own strongly typed payload; consumers switch on the concrete type or on
// Meta().Kind.
type Opportunity interface {
	Meta() *OpportunityMeta

	// sealed restricts implementations to this package.
	sealed()
}

// ArbitrageOpportunity is a cross-exchange price spread exceeding the
// configured profitability threshold.
type ArbitrageOpportunity struct {
	OpportunityMeta

	Pair          string
	BuyExchange   string
	SellExchange  string
	BuyPrice      float64 // ask on the buy side
	SellPrice     float64 // bid on the sell side
	SpreadPercent float64
	MaxTradeSize  float64 // base units, 1% of the thinner side's liquidity
}

// SandwichOpportunity is a large pending trade whose estimated price impact
// can be profitably front-run and back-run.
type SandwichOpportunity struct {
	OpportunityMeta

	TargetSignature string
	NotionalVolume  float64 // estimated USD notional of the target trade
	PriceImpact     float64 // fraction, capped at 0.10
	GasCostUSD      float64
}

// LiquidationOpportunity is an under-collateralized lending position.
type LiquidationOpportunity struct {
	OpportunityMeta

	Protocol        string
	PositionID      string
	Owner           string
	CollateralValue float64
	DebtValue       float64
	HealthFactor    float64
	Bonus           float64 // liquidation bonus fraction applied to debt
}

// CopyTradingSignal flags a wallet with high-frequency, high-win-rate
// activity in the recent mempool window.
type CopyTradingSignal struct {
	OpportunityMeta

	Wallet          string
	TradeCount      int
	WinRate         float64
	AggregateVolume float64
}

func (o *ArbitrageOpportunity) Meta() *OpportunityMeta   { return &o.OpportunityMeta }
func (o *SandwichOpportunity) Meta() *OpportunityMeta    { return &o.OpportunityMeta }
func (o *LiquidationOpportunity) Meta() *OpportunityMeta { return &o.OpportunityMeta }
func (o *CopyTradingSignal) Meta() *OpportunityMeta      { return &o.OpportunityMeta }

func (*ArbitrageOpportunity) sealed()   {}
func (*SandwichOpportunity) sealed()    {}
func (*LiquidationOpportunity) sealed() {}
func (*CopyTradingSignal) sealed()      {}
