package ingestion

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/market"
	"solana-mev-engine/internal/observability"
)

// FetchTimeout bounds each REST fetch.
const FetchTimeout = 10 * time.Second

// DefaultPollInterval is the per-exchange REST poll cadence.
const DefaultPollInterval = 30 * time.Second

// ExchangeEndpoint describes one REST price-snapshot source.
type ExchangeEndpoint struct {
	Exchange string
	URL      string
	// Interval between polls. Defaults to DefaultPollInterval.
	Interval time.Duration
	// RateLimit is the maximum requests per second to this host. Zero means
	// one request per poll interval, uncapped otherwise.
	RateLimit float64
}

// Poller polls one exchange's REST endpoint and upserts normalized quotes.
type Poller struct {
	endpoint  ExchangeEndpoint
	registry  *market.Registry
	normalize NormalizeFunc
	client    *http.Client
	limiter   *rate.Limiter
	logger    *log.Logger

	fetches   atomic.Int64
	failures  atomic.Int64
	malformed atomic.Int64
}

// NewPoller creates a poller for one exchange endpoint.
func NewPoller(endpoint ExchangeEndpoint, registry *market.Registry, logger *log.Logger) *Poller {
	if endpoint.Interval <= 0 {
		endpoint.Interval = DefaultPollInterval
	}
	if logger == nil {
		logger = log.Default()
	}

	limit := rate.Inf
	if endpoint.RateLimit > 0 {
		limit = rate.Limit(endpoint.RateLimit)
	}

	return &Poller{
		endpoint:  endpoint,
		registry:  registry,
		normalize: NormalizerFor(endpoint.Exchange),
		client:    &http.Client{Timeout: FetchTimeout},
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// Run polls on the configured interval until the context is cancelled. A
// failed fetch is logged and the cycle skipped; polling never halts on a
// single exchange's failure.
func (p *Poller) Run(ctx context.Context) {
	// Immediate first poll so the registry warms up before the first tick
	p.poll(ctx)

	ticker := time.NewTicker(p.endpoint.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}

	p.fetches.Add(1)

	quotes, err := p.fetch(ctx)
	if err != nil {
		p.failures.Add(1)
		observability.RecordFetchFailure(p.endpoint.Exchange)
		if ctx.Err() == nil {
			p.logger.Printf("[ingest] %s fetch: %v", p.endpoint.Exchange, err)
		}
		return
	}

	for _, q := range quotes {
		p.registry.Upsert(q)
		observability.RecordQuoteUpsert(p.endpoint.Exchange)
	}
}

func (p *Poller) fetch(ctx context.Context) ([]domain.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch quotes: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	quotes, err := p.normalize(p.endpoint.Exchange, body, time.Now().UnixMilli())
	if err != nil {
		p.malformed.Add(1)
		observability.RecordMalformed(p.endpoint.Exchange)
		return nil, err
	}
	return quotes, nil
}

// Stats returns fetch, failure, and malformed-payload counts.
func (p *Poller) Stats() (fetches, failures, malformed int64) {
	return p.fetches.Load(), p.failures.Load(), p.malformed.Load()
}
