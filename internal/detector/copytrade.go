package detector

import (
	"log"
	"time"

	"filippo.io/edwards25519"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/events"
	"solana-mev-engine/internal/mempool"
)

// Copy-trading thresholds.
const (
	copyTradeWindow     = 60 * time.Second
	copyTradeMinTxCount = 5 // strictly more than this many transactions
	copyTradeMinProfit  = 1_000
	copyTradeMinWinRate = 0.7
)

// WalletProfiler estimates profitability and win rate for a wallet's recent
// activity window. Real settlement data is unavailable, so the default
// implementation simulates a profile; treat it as a placeholder strategy.
type WalletProfiler interface {
	Profile(wallet string, window *domain.WalletActivityWindow) (estimatedProfit, winRate float64)
}

// CopyTradingDetector aggregates recent mempool activity per wallet and
// flags high-frequency, high-win-rate traders.
type CopyTradingDetector struct {
	classifier *mempool.Classifier
	profiler   WalletProfiler
	history    *History
	bus        *events.Bus
	gate       RecordGate
	logger     *log.Logger

	// signalled tracks wallets flagged within the current window.
	signalled map[string]int64
}

// CopyTradingOptions configures a CopyTradingDetector.
type CopyTradingOptions struct {
	Classifier *mempool.Classifier
	Profiler   WalletProfiler
	History    *History
	Bus        *events.Bus
	Gate       RecordGate
	Logger     *log.Logger
}

// NewCopyTradingDetector creates a detector.
func NewCopyTradingDetector(opts CopyTradingOptions) *CopyTradingDetector {
	gate := opts.Gate
	if gate == nil {
		gate = func() bool { return true }
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &CopyTradingDetector{
		classifier: opts.Classifier,
		profiler:   opts.Profiler,
		history:    opts.History,
		bus:        opts.Bus,
		gate:       gate,
		logger:     logger,
		signalled:  make(map[string]int64),
	}
}

// Tick rebuilds per-wallet activity windows from the current mempool buffer
// and emits signals for qualifying wallets.
func (d *CopyTradingDetector) Tick(now time.Time) []*domain.CopyTradingSignal {
	nowMs := now.UnixMilli()
	d.pruneSignalled(nowMs)

	windows := d.buildWindows(now)

	var recorded []*domain.CopyTradingSignal
	for wallet, window := range windows {
		if len(window.Transactions) <= copyTradeMinTxCount {
			continue
		}
		if _, dup := d.signalled[wallet]; dup {
			continue
		}

		profit, winRate := d.profiler.Profile(wallet, window)
		if profit <= copyTradeMinProfit || winRate <= copyTradeMinWinRate {
			continue
		}

		op := &domain.CopyTradingSignal{
			OpportunityMeta: domain.OpportunityMeta{
				ID:              uuid.NewString(),
				Kind:            domain.KindCopyTrading,
				EstimatedProfit: profit,
				Confidence:      clamp01(winRate),
				DetectedAt:      nowMs,
			},
			Wallet:          wallet,
			TradeCount:      len(window.Transactions),
			WinRate:         winRate,
			AggregateVolume: window.AggregateVolume,
		}

		if !d.gate() {
			return recorded
		}
		d.signalled[wallet] = nowMs
		d.history.Append(op)
		d.bus.Publish(op)
		d.logger.Printf("[copytrade] wallet=%s trades=%d winrate=%.2f profit=$%.2f",
			op.Wallet, op.TradeCount, op.WinRate, op.EstimatedProfit)
		recorded = append(recorded, op)
	}
	return recorded
}

// buildWindows groups recent mempool entries by originating wallet.
// Windows are ephemeral; they are not kept across ticks.
func (d *CopyTradingDetector) buildWindows(now time.Time) map[string]*domain.WalletActivityWindow {
	windows := make(map[string]*domain.WalletActivityWindow)
	for _, entry := range d.classifier.Recent(copyTradeWindow, now) {
		if !validWallet(entry.Wallet) {
			continue
		}
		w := windows[entry.Wallet]
		if w == nil {
			w = &domain.WalletActivityWindow{Wallet: entry.Wallet}
			windows[entry.Wallet] = w
		}
		w.Transactions = append(w.Transactions, entry)
		w.AggregateVolume += mempool.EstimateNotional(entry)
	}
	return windows
}

// validWallet reports whether the wallet string is a 32-byte base58 value on
// the ed25519 curve. Stream payloads occasionally carry garbage here.
func validWallet(wallet string) bool {
	if wallet == "" {
		return false
	}
	decoded, err := base58.Decode(wallet)
	if err != nil || len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}

func (d *CopyTradingDetector) pruneSignalled(nowMs int64) {
	cutoff := nowMs - copyTradeWindow.Milliseconds()
	for wallet, ts := range d.signalled {
		if ts < cutoff {
			delete(d.signalled, wallet)
		}
	}
}
