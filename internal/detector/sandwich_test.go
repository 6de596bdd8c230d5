package detector

import (
	"fmt"
	"testing"
	"time"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/events"
	"solana-mev-engine/internal/market"
	"solana-mev-engine/internal/mempool"
)

func sandwichFixture(t *testing.T, impactThreshold float64) (*mempool.Classifier, *market.Registry, *History, *SandwichDetector) {
	t.Helper()
	classifier := mempool.NewClassifier(mempool.Options{})
	registry := market.NewRegistry()
	history := NewHistory(0, 0)
	d := NewSandwichDetector(SandwichOptions{
		Classifier:      classifier,
		Registry:        registry,
		History:         history,
		Bus:             events.NewBus(),
		ImpactThreshold: impactThreshold,
	})
	return classifier, registry, history, d
}

func largeTradeLogs(calls int) []string {
	logs := make([]string, 0, calls)
	for i := 0; i < calls; i++ {
		logs = append(logs, fmt.Sprintf("Program %s invoke [1]", mempool.RaydiumAMMV4))
	}
	return logs
}

func TestSandwich_LargeTradeDetected(t *testing.T) {
	classifier, _, history, d := sandwichFixture(t, 0.005)
	now := time.UnixMilli(1_000_000)

	// 4 program calls: large trade, estimated notional 100k, impact 1%.
	classifier.Classify("target-sig", largeTradeLogs(4), 100, "", now.Add(-time.Second))

	ops := d.Tick(now)
	if len(ops) != 1 {
		t.Fatalf("expected exactly 1 sandwich opportunity, got %d", len(ops))
	}

	op := ops[0]
	if op.TargetSignature != "target-sig" {
		t.Errorf("wrong target: %s", op.TargetSignature)
	}
	if op.EstimatedProfit < 0 {
		t.Errorf("profit must be non-negative, got %f", op.EstimatedProfit)
	}
	if op.Confidence < 0 || op.Confidence > 1 {
		t.Errorf("confidence out of [0,1]: %f", op.Confidence)
	}
	// 0.8 * 100_000 * 0.01 = 800 gross, minus gas at the default SOL price.
	if op.EstimatedProfit > 800 {
		t.Errorf("profit must be net of gas, got %f", op.EstimatedProfit)
	}
	if history.Len() != 1 {
		t.Errorf("expected 1 history entry, got %d", history.Len())
	}
}

func TestSandwich_SmallTradeIgnored(t *testing.T) {
	classifier, _, _, d := sandwichFixture(t, 0.005)
	now := time.UnixMilli(1_000_000)

	classifier.Classify("small-sig", largeTradeLogs(2), 100, "", now.Add(-time.Second))

	if ops := d.Tick(now); len(ops) != 0 {
		t.Fatalf("2 program calls must not qualify, got %d", len(ops))
	}
}

func TestSandwich_OutsideWindowIgnored(t *testing.T) {
	classifier, _, _, d := sandwichFixture(t, 0.005)
	now := time.UnixMilli(1_000_000)

	classifier.Classify("old-sig", largeTradeLogs(4), 100, "", now.Add(-6*time.Second))

	if ops := d.Tick(now); len(ops) != 0 {
		t.Fatalf("entry outside the 5s window must be ignored, got %d", len(ops))
	}
}

func TestSandwich_DedupeAcrossTicks(t *testing.T) {
	classifier, _, _, d := sandwichFixture(t, 0.005)
	now := time.UnixMilli(1_000_000)

	classifier.Classify("target-sig", largeTradeLogs(4), 100, "", now.Add(-time.Second))

	if ops := d.Tick(now); len(ops) != 1 {
		t.Fatalf("first tick must record, got %d", len(ops))
	}
	// Same entry is still inside the 5s window on the next tick.
	if ops := d.Tick(now.Add(500 * time.Millisecond)); len(ops) != 0 {
		t.Fatalf("second tick must not re-record the same target, got %d", len(ops))
	}
}

func TestSandwich_GasUsesSOLQuote(t *testing.T) {
	classifier, registry, _, d := sandwichFixture(t, 0.005)
	now := time.UnixMilli(1_000_000)

	// With SOL at $200 the gas cost doubles versus the $100 default.
	registry.Upsert(domain.Quote{
		Exchange: "raydium", Pair: "SOL/USDC", Price: 200,
		CapturedAt: now.UnixMilli(),
	})

	classifier.Classify("target-sig", largeTradeLogs(4), 100, "", now.Add(-time.Second))

	ops := d.Tick(now)
	if len(ops) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(ops))
	}
	wantGas := float64(50_000_000) / 1e9 * 200
	if ops[0].GasCostUSD != wantGas {
		t.Errorf("expected gas %.2f from SOL quote, got %.2f", wantGas, ops[0].GasCostUSD)
	}
}

func TestSandwich_ImpactBelowThresholdSkipped(t *testing.T) {
	classifier, _, _, d := sandwichFixture(t, 0.05)
	now := time.UnixMilli(1_000_000)

	// 4 calls estimate 1% impact, below the 5% threshold configured here.
	classifier.Classify("target-sig", largeTradeLogs(4), 100, "", now.Add(-time.Second))

	if ops := d.Tick(now); len(ops) != 0 {
		t.Fatalf("impact below threshold must not record, got %d", len(ops))
	}
}
