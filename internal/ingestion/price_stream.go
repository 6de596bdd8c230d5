package ingestion

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/market"
	"solana-mev-engine/internal/observability"
)

// StreamReconnectDelay is the fixed backoff before redialing a closed stream.
const StreamReconnectDelay = 5 * time.Second

// priceUpdate is one message on the exchange price stream.
type priceUpdate struct {
	Exchange  string  `json:"exchange"`
	Pair      string  `json:"pair"`
	Price     float64 `json:"price"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Liquidity float64 `json:"liquidity"`
	Volume24h float64 `json:"volume24h"`
	Pool      string  `json:"pool"`
}

// PriceStream maintains a long-lived WebSocket subscription to an exchange
// price feed and upserts each update into the quote registry. Malformed
// messages are dropped silently and counted.
type PriceStream struct {
	url      string
	registry *market.Registry
	logger   *log.Logger

	updates   atomic.Int64
	malformed atomic.Int64
}

// NewPriceStream creates a price stream source.
func NewPriceStream(url string, registry *market.Registry, logger *log.Logger) *PriceStream {
	if logger == nil {
		logger = log.Default()
	}
	return &PriceStream{
		url:      url,
		registry: registry,
		logger:   logger,
	}
}

// Run connects and consumes updates until the context is cancelled. On any
// closure it reconnects after the fixed delay as long as the engine runs.
func (s *PriceStream) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.consume(ctx); err != nil && ctx.Err() == nil {
			s.logger.Printf("[ingest] Price stream: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(StreamReconnectDelay):
			observability.RecordStreamReconnect("price")
		}
	}
}

// consume dials the stream and reads until it fails or the context ends.
func (s *PriceStream) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock the read when the engine stops
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	s.logger.Printf("[ingest] Price stream connected to %s", s.url)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var update priceUpdate
		if err := json.Unmarshal(message, &update); err != nil || update.Pair == "" || update.Price <= 0 {
			s.malformed.Add(1)
			observability.RecordMalformed("price-stream")
			continue
		}

		s.registry.Upsert(domain.Quote{
			Exchange:       update.Exchange,
			Pair:           update.Pair,
			Price:          update.Price,
			Bid:            orSpread(update.Bid, update.Price, -1),
			Ask:            orSpread(update.Ask, update.Price, +1),
			LiquidityDepth: update.Liquidity,
			Volume24h:      update.Volume24h,
			PoolAddress:    update.Pool,
			CapturedAt:     time.Now().UnixMilli(),
		})
		s.updates.Add(1)
		observability.RecordQuoteUpsert(update.Exchange)
	}
}

// Stats returns processed and malformed message counts.
func (s *PriceStream) Stats() (updates, malformed int64) {
	return s.updates.Load(), s.malformed.Load()
}
