package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"solana-mev-engine/internal/analytics"
	"solana-mev-engine/internal/detector"
	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/events"
	"solana-mev-engine/internal/ingestion"
	"solana-mev-engine/internal/market"
	"solana-mev-engine/internal/mempool"
	"solana-mev-engine/internal/observability"
	"solana-mev-engine/internal/reporting"
	"solana-mev-engine/internal/retention"
	"solana-mev-engine/internal/solana"
	"solana-mev-engine/internal/storage"
)

// State is the engine lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ErrNotStopped is returned by Start when the engine is already running.
var ErrNotStopped = errors.New("engine is not stopped")

// ReportFileName is the markdown report written to the output directory.
const ReportFileName = "OPPORTUNITY_REPORT.md"

// housekeepingInterval paces gauge refreshes and the uptime counter.
const housekeepingInterval = 15 * time.Second

// Engine owns every component of the detection pipeline and drives them
// on independent schedules. One long-lived process, many periodic tasks;
// no task blocks another.
type Engine struct {
	cfg *Config

	registry   *market.Registry
	classifier *mempool.Classifier
	bus        *events.Bus
	histories  map[domain.OpportunityKind]*detector.History
	aggregator *analytics.Aggregator
	reporter   *reporting.Generator
	retention  *retention.Manager

	arbitrage   *detector.ArbitrageDetector
	sandwich    *detector.SandwichDetector
	liquidation *detector.LiquidationMonitor
	copytrade   *detector.CopyTradingDetector

	// Injected stream; when nil and a WS endpoint is configured the engine
	// dials its own client at start.
	streamer    solana.LogStreamer
	ownStreamer bool

	archive storage.OpportunityStore
	rollups storage.RollupStore

	ingestion   *ingestion.Runner
	archiveSink *events.ArchiveSink
	kafkaSink   *events.KafkaSink

	logger *log.Logger

	state   atomic.Int32
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started time.Time
}

// Options configures an Engine. Config is required; everything else has a
// working default or is optional.
type Options struct {
	Config *Config

	// Positions supplies lending positions to the liquidation monitor.
	// Nil uses a deterministic simulated source.
	Positions detector.PositionSource
	// Profiler scores wallets for the copy-trading detector. Nil uses a
	// simulated profiler.
	Profiler detector.WalletProfiler
	// Streamer is the transaction-log stream. When nil, the engine dials
	// Config.Solana.WSEndpoint itself (and skips the stream when that is
	// empty too).
	Streamer solana.LogStreamer

	// Archive persists detected opportunities off the event bus. Optional.
	Archive storage.OpportunityStore
	// Rollups persists hourly revenue rollups. Optional.
	Rollups storage.RollupStore

	Logger *log.Logger
}

// New wires the engine's components from config. The engine starts in
// StateStopped; call Start to run it.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		cfg, err = DefaultConfig()
		if err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	positions := opts.Positions
	if positions == nil {
		positions = detector.NewSimulatedPositionSource(time.Now().UnixNano(), 25)
	}
	profiler := opts.Profiler
	if profiler == nil {
		profiler = detector.NewSimulatedWalletProfiler()
	}

	e := &Engine{
		cfg:      cfg,
		registry: market.NewRegistry(),
		bus:      events.NewBus(),
		streamer: opts.Streamer,
		archive:  opts.Archive,
		rollups:  opts.Rollups,
		logger:   logger,
	}

	e.classifier = mempool.NewClassifier(mempool.Options{
		Programs: cfg.Solana.Programs,
		Logger:   logger,
	})

	e.histories = make(map[domain.OpportunityKind]*detector.History, len(domain.Kinds()))
	for _, kind := range domain.Kinds() {
		e.histories[kind] = detector.NewHistory(detector.DefaultHistoryMax, detector.DefaultHistoryTrimTo)
	}

	e.aggregator = analytics.NewAggregator(e.registry, e.histories, logger)
	e.reporter = reporting.NewGenerator(e.histories, e.aggregator)

	gate := detector.RecordGate(e.Recording)

	e.arbitrage = detector.NewArbitrageDetector(detector.ArbitrageOptions{
		Registry:         e.registry,
		History:          e.histories[domain.KindArbitrage],
		Bus:              e.bus,
		Pairs:            cfg.Pairs,
		ThresholdPercent: cfg.Thresholds.ArbitragePercent,
		Gate:             gate,
		Logger:           logger,
	})
	e.sandwich = detector.NewSandwichDetector(detector.SandwichOptions{
		Classifier:      e.classifier,
		Registry:        e.registry,
		History:         e.histories[domain.KindSandwich],
		Bus:             e.bus,
		ImpactThreshold: cfg.Thresholds.SandwichImpact,
		Volatility:      e.aggregator.Volatility,
		Gate:            gate,
		Logger:          logger,
	})
	e.liquidation = detector.NewLiquidationMonitor(detector.LiquidationOptions{
		Source:     positions,
		History:    e.histories[domain.KindLiquidation],
		Bus:        e.bus,
		Volatility: e.aggregator.Volatility,
		Gate:       gate,
		Logger:     logger,
	})
	e.copytrade = detector.NewCopyTradingDetector(detector.CopyTradingOptions{
		Classifier: e.classifier,
		Profiler:   profiler,
		History:    e.histories[domain.KindCopyTrading],
		Bus:        e.bus,
		Gate:       gate,
		Logger:     logger,
	})

	targets := make([]retention.Target, 0, len(e.histories)+1)
	for _, kind := range domain.Kinds() {
		targets = append(targets, retention.Target{Name: string(kind), Purgeable: e.histories[kind]})
	}
	targets = append(targets, retention.Target{Name: "mempool", Purgeable: e.classifier})

	var archives []storage.Purger
	if e.archive != nil {
		archives = append(archives, e.archive)
	}
	if e.rollups != nil {
		archives = append(archives, e.rollups)
	}
	e.retention = retention.NewManager(retention.Options{
		Targets:  targets,
		Archives: archives,
		MaxAge:   cfg.Retention.MaxAge,
		Logger:   logger,
	})

	return e, nil
}

// State reports the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Recording reports whether opportunities may still be recorded. It is the
// detectors' record gate: false from the instant the Stopping transition
// begins.
func (e *Engine) Recording() bool {
	return e.State() == StateRunning
}

// Registry exposes the quote registry.
func (e *Engine) Registry() *market.Registry { return e.registry }

// Classifier exposes the mempool classifier.
func (e *Engine) Classifier() *mempool.Classifier { return e.classifier }

// Bus exposes the opportunity event bus.
func (e *Engine) Bus() *events.Bus { return e.bus }

// Histories exposes the per-kind opportunity histories.
func (e *Engine) Histories() map[domain.OpportunityKind]*detector.History {
	return e.histories
}

// Uptime reports how long the engine has been running. Zero when stopped.
func (e *Engine) Uptime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started.IsZero() {
		return 0
	}
	return time.Since(e.started)
}

// Start moves the engine Stopped -> Starting -> Running: it opens every
// stream subscription, starts the REST pollers and activates all periodic
// tasks. It returns once the engine is running.
func (e *Engine) Start(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrNotStopped
	}
	observability.SetEngineState(float64(StateStarting))
	e.logger.Println("[engine] Starting")

	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.started = time.Now()
	e.mu.Unlock()

	if err := e.startIngestion(ctx); err != nil {
		cancel()
		e.state.Store(int32(StateStopped))
		observability.SetEngineState(float64(StateStopped))
		return err
	}
	e.startSinks()
	e.startTasks(ctx)

	e.state.Store(int32(StateRunning))
	observability.SetEngineState(float64(StateRunning))
	e.logger.Println("[engine] Running")
	return nil
}

// startIngestion opens stream subscriptions and starts the pollers.
func (e *Engine) startIngestion(ctx context.Context) error {
	var pollers []*ingestion.Poller
	for _, ex := range e.cfg.Exchanges {
		pollers = append(pollers, ingestion.NewPoller(ingestion.ExchangeEndpoint{
			Exchange:  ex.Name,
			URL:       ex.URL,
			Interval:  ex.Interval,
			RateLimit: ex.RateLimit,
		}, e.registry, e.logger))
	}

	if e.streamer == nil && e.cfg.Solana.WSEndpoint != "" {
		ws, err := solana.NewWSClient(ctx, e.cfg.Solana.WSEndpoint, nil, e.logger)
		if err != nil {
			return fmt.Errorf("connect log stream: %w", err)
		}
		e.streamer = ws
		e.ownStreamer = true
	}

	var logStream *ingestion.LogStream
	if e.streamer != nil {
		logStream = ingestion.NewLogStream(e.streamer, e.classifier, e.cfg.Solana.Programs, e.logger)
	}

	var priceStream *ingestion.PriceStream
	if e.cfg.PriceStream.URL != "" {
		priceStream = ingestion.NewPriceStream(e.cfg.PriceStream.URL, e.registry, e.logger)
	}

	e.ingestion = ingestion.NewRunner(ingestion.RunnerOptions{
		Pollers:     pollers,
		PriceStream: priceStream,
		LogStream:   logStream,
		Logger:      e.logger,
	})
	e.ingestion.Start(ctx)
	return nil
}

// startSinks attaches the configured event-bus consumers.
func (e *Engine) startSinks() {
	if e.archive != nil {
		e.archiveSink = events.NewArchiveSink(e.bus, e.archive, e.logger)
	}
	if len(e.cfg.Kafka.Brokers) > 0 {
		e.kafkaSink = events.NewKafkaSink(e.bus, events.KafkaSinkOptions{
			Brokers: e.cfg.Kafka.Brokers,
			Topic:   e.cfg.Kafka.Topic,
			Logger:  e.logger,
		})
	}
}

// startTasks launches every periodic task on its own ticker.
func (e *Engine) startTasks(ctx context.Context) {
	iv := e.cfg.Intervals

	e.every(ctx, iv.Arbitrage, func(ctx context.Context, now time.Time) {
		start := time.Now()
		for _, op := range e.arbitrage.Tick(now) {
			observability.RecordOpportunity(string(domain.KindArbitrage), op.EstimatedProfit)
		}
		observability.ObserveTickDuration("arbitrage", time.Since(start).Seconds())
	})

	e.every(ctx, iv.Sandwich, func(ctx context.Context, now time.Time) {
		start := time.Now()
		for _, op := range e.sandwich.Tick(now) {
			observability.RecordOpportunity(string(domain.KindSandwich), op.EstimatedProfit)
		}
		observability.ObserveTickDuration("sandwich", time.Since(start).Seconds())
	})

	e.every(ctx, iv.Liquidation, func(ctx context.Context, now time.Time) {
		start := time.Now()
		for _, op := range e.liquidation.Tick(ctx, now) {
			observability.RecordOpportunity(string(domain.KindLiquidation), op.EstimatedProfit)
		}
		observability.ObserveTickDuration("liquidation", time.Since(start).Seconds())
	})

	e.every(ctx, iv.CopyTrading, func(ctx context.Context, now time.Time) {
		start := time.Now()
		for _, op := range e.copytrade.Tick(now) {
			observability.RecordOpportunity(string(domain.KindCopyTrading), op.EstimatedProfit)
		}
		observability.ObserveTickDuration("copy_trading", time.Since(start).Seconds())
	})

	e.every(ctx, iv.Revenue, func(ctx context.Context, now time.Time) {
		rollup := e.aggregator.TickRevenue(now)
		if rollup != nil && e.rollups != nil {
			if err := e.rollups.InsertBulk(ctx, []*domain.RevenueRollup{rollup}); err != nil &&
				!errors.Is(err, storage.ErrDuplicateKey) {
				e.logger.Printf("[engine] Archive rollup: %v", err)
			}
		}
	})

	e.every(ctx, iv.MarketStructure, func(ctx context.Context, now time.Time) {
		e.aggregator.TickMarketStructure(now)
	})

	e.every(ctx, iv.Retention, func(ctx context.Context, now time.Time) {
		removed := e.retention.Tick(ctx, now)
		observability.RecordPurged(removed)
	})

	e.every(ctx, iv.Report, func(ctx context.Context, now time.Time) {
		e.writeReport(now)
	})

	e.every(ctx, housekeepingInterval, func(ctx context.Context, now time.Time) {
		observability.SetRegistrySize(e.registry.Len())
		observability.SetMempoolSize(e.classifier.Len())
		for kind, h := range e.histories {
			observability.SetHistorySize(string(kind), h.Len())
		}
		observability.DefaultMetrics.UptimeSeconds.Add(housekeepingInterval.Seconds())
	})
}

// every runs task on its own ticker until ctx is cancelled. A slow task
// only delays its own next tick.
func (e *Engine) every(ctx context.Context, interval time.Duration, task func(context.Context, time.Time)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				task(ctx, now)
			}
		}
	}()
}

// Stop moves the engine Running -> Stopping -> Stopped: it closes every
// stream, cancels every timer, lets in-flight ticks finish, then emits a
// final report. Safe to call once per Start.
func (e *Engine) Stop() {
	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) &&
		!e.state.CompareAndSwap(int32(StateStarting), int32(StateStopping)) {
		return
	}
	observability.SetEngineState(float64(StateStopping))
	e.logger.Println("[engine] Stopping")

	// Streams first: no registry writes or classifications after this.
	if e.ingestion != nil {
		e.ingestion.Stop()
	}
	if e.ownStreamer && e.streamer != nil {
		if err := e.streamer.Close(); err != nil {
			e.logger.Printf("[engine] Close log stream: %v", err)
		}
		e.streamer = nil
		e.ownStreamer = false
	}

	// Cancel every timer and let in-flight ticks finish.
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.started = time.Time{}
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()

	if e.archiveSink != nil {
		e.archiveSink.Close()
		e.archiveSink = nil
	}
	if e.kafkaSink != nil {
		if err := e.kafkaSink.Close(); err != nil {
			e.logger.Printf("[engine] Close kafka sink: %v", err)
		}
		e.kafkaSink = nil
	}
	// The bus stays open so the engine can be started again; sinks have
	// already unsubscribed.

	e.writeReport(time.Now())

	e.state.Store(int32(StateStopped))
	observability.SetEngineState(float64(StateStopped))
	e.logger.Println("[engine] Stopped")
}

// writeReport renders the markdown report into the output directory.
func (e *Engine) writeReport(now time.Time) {
	dir := e.cfg.Report.OutputDir
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		e.logger.Printf("[engine] Create report dir: %v", err)
		return
	}

	report := e.reporter.Generate(now)
	path := filepath.Join(dir, ReportFileName)
	if err := os.WriteFile(path, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		e.logger.Printf("[engine] Write report: %v", err)
		return
	}
	e.logger.Printf("[engine] Report written to %s", path)
}
