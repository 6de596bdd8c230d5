// Package market provides the concurrency-safe quote registry shared by
// ingestion and every detector.
package market

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"solana-mev-engine/internal/domain"
)

const registryShards = 16

// DefaultStaleness is the maximum age a quote may have and still be usable
// for detection.
const DefaultStaleness = 10 * time.Second

// Registry stores the freshest quote per (exchange, pair). Writers upsert in
// place; readers get copies, so a reader never observes a half-written quote.
// Keys are sharded so concurrent writers on different entries do not contend
// on a single lock.
type Registry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].quotes = make(map[string]domain.Quote)
	}
	return r
}

func quoteKey(exchange, pair string) string {
	return exchange + "|" + pair
}

func (r *Registry) shardFor(key string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &r.shards[h.Sum32()%registryShards]
}

// Upsert replaces the prior quote for (quote.Exchange, quote.Pair).
func (r *Registry) Upsert(quote domain.Quote) {
	key := quoteKey(quote.Exchange, quote.Pair)
	s := r.shardFor(key)

	s.mu.Lock()
	s.quotes[key] = quote
	s.mu.Unlock()
}

// Get returns the current quote for (exchange, pair) and whether one exists.
func (r *Registry) Get(exchange, pair string) (domain.Quote, bool) {
	key := quoteKey(exchange, pair)
	s := r.shardFor(key)

	s.mu.RLock()
	q, ok := s.quotes[key]
	s.mu.RUnlock()
	return q, ok
}

// FreshQuotesFor returns all quotes for the pair, across exchanges, not older
// than maxAge at nowMs. A quote exactly maxAge old is included.
func (r *Registry) FreshQuotesFor(pair string, maxAge time.Duration, nowMs int64) []domain.Quote {
	maxAgeMs := maxAge.Milliseconds()

	var out []domain.Quote
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, q := range s.quotes {
			if q.Pair == pair && q.FreshAt(nowMs, maxAgeMs) {
				out = append(out, q)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// Snapshot returns a copy of every quote currently in the registry.
func (r *Registry) Snapshot() []domain.Quote {
	var out []domain.Quote
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, q := range s.quotes {
			out = append(out, q)
		}
		s.mu.RUnlock()
	}
	return out
}

// Len returns the number of (exchange, pair) entries.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.quotes)
		s.mu.RUnlock()
	}
	return n
}

// SOLPriceUSD returns the most recently captured SOL price across exchanges,
// or fallback when no SOL quote has been observed. Used for lamport-to-USD
// gas conversion.
func (r *Registry) SOLPriceUSD(fallback float64) float64 {
	var best domain.Quote
	found := false

	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, q := range s.quotes {
			if !strings.HasPrefix(q.Pair, "SOL/") || q.Price <= 0 {
				continue
			}
			if !found || q.CapturedAt > best.CapturedAt {
				best = q
				found = true
			}
		}
		s.mu.RUnlock()
	}

	if !found {
		return fallback
	}
	return best.Price
}
