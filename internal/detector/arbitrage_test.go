package detector

import (
	"math"
	"testing"
	"time"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/events"
	"solana-mev-engine/internal/market"
)

func newArbFixture(t *testing.T) (*market.Registry, *History, *ArbitrageDetector) {
	t.Helper()
	registry := market.NewRegistry()
	history := NewHistory(0, 0)
	d := NewArbitrageDetector(ArbitrageOptions{
		Registry:         registry,
		History:          history,
		Bus:              events.NewBus(),
		Pairs:            []string{"SOL/USDC"},
		ThresholdPercent: 0.5,
	})
	return registry, history, d
}

func TestArbitrage_CrossExchangeSpread(t *testing.T) {
	registry, history, d := newArbFixture(t)
	now := time.UnixMilli(1_000_000)

	registry.Upsert(domain.Quote{
		Exchange: "exchange-a", Pair: "SOL/USDC",
		Ask: 100.00, Bid: 99.90,
		LiquidityDepth: 1_000_000, Volume24h: 2_000_000,
		CapturedAt: now.UnixMilli(),
	})
	registry.Upsert(domain.Quote{
		Exchange: "exchange-b", Pair: "SOL/USDC",
		Ask: 101.60, Bid: 101.50,
		LiquidityDepth: 1_000_000, Volume24h: 2_000_000,
		CapturedAt: now.UnixMilli(),
	})

	ops := d.Tick(now)
	if len(ops) != 1 {
		t.Fatalf("expected exactly 1 opportunity, got %d", len(ops))
	}

	op := ops[0]
	if op.BuyExchange != "exchange-a" || op.SellExchange != "exchange-b" {
		t.Errorf("expected buy A sell B, got buy %s sell %s", op.BuyExchange, op.SellExchange)
	}
	if math.Abs(op.SpreadPercent-1.5) > 0.001 {
		t.Errorf("expected spread ~1.5%%, got %f", op.SpreadPercent)
	}
	if op.MaxTradeSize != 10_000 {
		t.Errorf("expected trade size 10000 (1%% of min liquidity), got %f", op.MaxTradeSize)
	}
	if math.Abs(op.EstimatedProfit-15_000) > 0.01 {
		t.Errorf("expected profit 15000, got %f", op.EstimatedProfit)
	}
	if op.Confidence < 0 || op.Confidence > 1 {
		t.Errorf("confidence out of [0,1]: %f", op.Confidence)
	}
	if history.Len() != 1 {
		t.Errorf("expected 1 history entry, got %d", history.Len())
	}
}

func TestArbitrage_SingleExchangeSkipped(t *testing.T) {
	registry, history, d := newArbFixture(t)
	now := time.UnixMilli(1_000_000)

	registry.Upsert(domain.Quote{
		Exchange: "exchange-a", Pair: "SOL/USDC",
		Ask: 100, Bid: 99,
		CapturedAt: now.UnixMilli(),
	})

	if ops := d.Tick(now); len(ops) != 0 {
		t.Fatalf("single exchange must yield no opportunities, got %d", len(ops))
	}
	if history.Len() != 0 {
		t.Errorf("history must stay empty")
	}
}

func TestArbitrage_StaleQuoteExcluded(t *testing.T) {
	registry, _, d := newArbFixture(t)
	now := time.UnixMilli(1_000_000)

	registry.Upsert(domain.Quote{
		Exchange: "exchange-a", Pair: "SOL/USDC",
		Ask: 100, Bid: 99.9, LiquidityDepth: 1_000_000,
		CapturedAt: now.UnixMilli(),
	})
	// 10.001s old: outside the staleness window.
	registry.Upsert(domain.Quote{
		Exchange: "exchange-b", Pair: "SOL/USDC",
		Ask: 101.6, Bid: 101.5, LiquidityDepth: 1_000_000,
		CapturedAt: now.UnixMilli() - 10_001,
	})

	if ops := d.Tick(now); len(ops) != 0 {
		t.Fatalf("stale quote must not participate, got %d opportunities", len(ops))
	}
}

func TestArbitrage_ThresholdBoundary(t *testing.T) {
	registry, _, d := newArbFixture(t)
	now := time.UnixMilli(1_000_000)

	// Spread of exactly 0.5% must not trigger (threshold is strict).
	registry.Upsert(domain.Quote{
		Exchange: "exchange-a", Pair: "SOL/USDC",
		Ask: 100, Bid: 99.9, LiquidityDepth: 1_000_000,
		CapturedAt: now.UnixMilli(),
	})
	registry.Upsert(domain.Quote{
		Exchange: "exchange-b", Pair: "SOL/USDC",
		Ask: 100.6, Bid: 100.5, LiquidityDepth: 1_000_000,
		CapturedAt: now.UnixMilli(),
	})

	if ops := d.Tick(now); len(ops) != 0 {
		t.Fatalf("spread equal to threshold must not trigger, got %d", len(ops))
	}
}

func TestArbitrage_BothDirectionsEvaluated(t *testing.T) {
	registry, _, d := newArbFixture(t)
	now := time.UnixMilli(1_000_000)

	// B is cheaper than A here, so the profitable direction is buy B, sell A.
	registry.Upsert(domain.Quote{
		Exchange: "exchange-a", Pair: "SOL/USDC",
		Ask: 102.0, Bid: 101.9, LiquidityDepth: 500_000,
		CapturedAt: now.UnixMilli(),
	})
	registry.Upsert(domain.Quote{
		Exchange: "exchange-b", Pair: "SOL/USDC",
		Ask: 100.0, Bid: 99.9, LiquidityDepth: 500_000,
		CapturedAt: now.UnixMilli(),
	})

	ops := d.Tick(now)
	if len(ops) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(ops))
	}
	if ops[0].BuyExchange != "exchange-b" || ops[0].SellExchange != "exchange-a" {
		t.Errorf("expected buy B sell A, got buy %s sell %s", ops[0].BuyExchange, ops[0].SellExchange)
	}
}

func TestArbitrage_ConfidenceFreshnessDecay(t *testing.T) {
	registry, _, d := newArbFixture(t)
	now := time.UnixMilli(1_000_000)

	registry.Upsert(domain.Quote{
		Exchange: "exchange-a", Pair: "SOL/USDC",
		Ask: 100, Bid: 99.9, LiquidityDepth: 1_000_000, Volume24h: 2_000_000,
		CapturedAt: now.UnixMilli() - 9_000, // 9s old, nearly stale
	})
	registry.Upsert(domain.Quote{
		Exchange: "exchange-b", Pair: "SOL/USDC",
		Ask: 101.6, Bid: 101.5, LiquidityDepth: 1_000_000, Volume24h: 2_000_000,
		CapturedAt: now.UnixMilli(),
	})

	ops := d.Tick(now)
	if len(ops) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(ops))
	}
	// Liquidity and volume score 1.0 each; freshness is 0.1 for the 9s-old
	// quote, so confidence = (1 + 1 + 0.1) / 3.
	want := (1.0 + 1.0 + 0.1) / 3
	if math.Abs(ops[0].Confidence-want) > 0.001 {
		t.Errorf("expected confidence %.3f, got %.3f", want, ops[0].Confidence)
	}
}

func TestArbitrage_GateBlocksRecording(t *testing.T) {
	registry := market.NewRegistry()
	history := NewHistory(0, 0)
	d := NewArbitrageDetector(ArbitrageOptions{
		Registry: registry,
		History:  history,
		Bus:      events.NewBus(),
		Pairs:    []string{"SOL/USDC"},
		Gate:     func() bool { return false },
	})

	now := time.UnixMilli(1_000_000)
	registry.Upsert(domain.Quote{
		Exchange: "exchange-a", Pair: "SOL/USDC",
		Ask: 100, Bid: 99.9, LiquidityDepth: 1_000_000,
		CapturedAt: now.UnixMilli(),
	})
	registry.Upsert(domain.Quote{
		Exchange: "exchange-b", Pair: "SOL/USDC",
		Ask: 101.6, Bid: 101.5, LiquidityDepth: 1_000_000,
		CapturedAt: now.UnixMilli(),
	})

	if ops := d.Tick(now); len(ops) != 0 {
		t.Fatalf("closed gate must suppress recording, got %d", len(ops))
	}
	if history.Len() != 0 {
		t.Errorf("history must stay empty when gate is closed")
	}
}
