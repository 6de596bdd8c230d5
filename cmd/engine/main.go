// Package main runs the opportunity detection engine: ingestion (REST
// pollers + price and transaction-log streams), the four detectors on their
// schedules, aggregation, retention and reporting, with optional Postgres/
// ClickHouse archives and a Kafka sink.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"solana-mev-engine/internal/engine"
	"solana-mev-engine/internal/observability"
	"solana-mev-engine/internal/storage"
	chstore "solana-mev-engine/internal/storage/clickhouse"
	"solana-mev-engine/internal/storage/memory"
	"solana-mev-engine/internal/storage/migrations"
	pgstore "solana-mev-engine/internal/storage/postgres"
)

func main() {
	// Load .env file if present; system env vars win.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to YAML config file")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint")
	priceStreamURL := flag.String("price-stream", os.Getenv("PRICE_STREAM_URL"), "Aggregated price stream WebSocket URL")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for the opportunity archive")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the rollup archive")
	useMemory := flag.Bool("use-memory", false, "Use in-memory archives instead of PostgreSQL/ClickHouse")
	pairs := flag.String("pairs", "", "Comma-separated trading pairs to monitor (overrides config)")
	outputDir := flag.String("output-dir", "", "Output directory for reports (overrides config)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	logFile := flag.String("log-file", "", "Rotated log file path (default stdout)")

	flag.Parse()

	logger := log.New(logWriter(*logFile), "[engine] ", log.LstdFlags|log.Lshortfile)

	cfg, err := engine.LoadConfigWithEnv(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}
	if *wsEndpoint != "" {
		cfg.Solana.WSEndpoint = *wsEndpoint
	}
	if *priceStreamURL != "" {
		cfg.PriceStream.URL = *priceStreamURL
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickHouseDSN = *clickhouseDSN
	}
	if *pairs != "" {
		cfg.Pairs = strings.Split(*pairs, ",")
	}
	if *outputDir != "" {
		cfg.Report.OutputDir = *outputDir
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	archive, rollups, cleanup, err := createArchives(ctx, cfg, *useMemory)
	if err != nil {
		logger.Fatalf("Create archives: %v", err)
	}
	defer cleanup()

	eng, err := engine.New(engine.Options{
		Config:  cfg,
		Archive: archive,
		Rollups: rollups,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatalf("Create engine: %v", err)
	}

	go startHTTPServer(*metricsAddr, eng, logger)

	if err := eng.Start(ctx); err != nil {
		logger.Fatalf("Start engine: %v", err)
	}

	// Handle shutdown signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("Received signal %v, initiating graceful shutdown...", sig)

	done := make(chan struct{})
	go func() {
		eng.Stop()
		close(done)
	}()

	select {
	case <-done:
	case sig := <-sigCh:
		logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
		os.Exit(1)
	case <-time.After(30 * time.Second):
		logger.Println("Graceful shutdown timed out after 30s, forcing exit")
		os.Exit(1)
	}

	logger.Println("Shutdown complete")
}

// logWriter selects stdout or a rotated file for process logs.
func logWriter(path string) io.Writer {
	if path == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
}

// createArchives creates the opportunity and rollup archives. Both are
// optional: a missing DSN disables that archive unless -use-memory is set.
func createArchives(ctx context.Context, cfg *engine.Config, useMemory bool) (storage.OpportunityStore, storage.RollupStore, func(), error) {
	if useMemory {
		return memory.NewOpportunityStore(), memory.NewRollupStore(), func() {}, nil
	}

	var archive storage.OpportunityStore
	var rollups storage.RollupStore
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		archive = pgstore.NewOpportunityStore(pool)
	}

	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		rollups = chstore.NewRollupStore(conn)
	}

	return archive, rollups, cleanup, nil
}

// startHTTPServer serves health, metrics and status endpoints.
func startHTTPServer(addr string, eng *engine.Engine, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		classified, tagged, malformed := eng.Classifier().Stats()
		published, dropped := eng.Bus().Stats()

		resp := map[string]any{
			"state":           eng.State().String(),
			"uptime":          eng.Uptime().String(),
			"quotes":          eng.Registry().Len(),
			"mempool_entries": eng.Classifier().Len(),
			"logs_classified": classified,
			"logs_tagged":     tagged,
			"logs_malformed":  malformed,
			"published":       published,
			"dropped":         dropped,
		}
		for kind, h := range eng.Histories() {
			count, profit := h.Totals()
			resp["opportunities_"+string(kind)] = count
			resp["profit_"+string(kind)] = profit
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}
