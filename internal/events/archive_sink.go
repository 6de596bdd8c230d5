package events

import (
	"context"
	"errors"
	"log"
	"sync"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

// ArchiveSink writes every opportunity on the bus to the archive store.
// Like the Kafka sink it is best-effort: insert failures are logged and the
// sink keeps draining so a flaky database never backs up the bus.
type ArchiveSink struct {
	store  storage.OpportunityStore
	logger *log.Logger

	cancel func()
	wg     sync.WaitGroup
}

// NewArchiveSink creates a sink and subscribes it to all four opportunity
// events on the bus.
func NewArchiveSink(bus *Bus, store storage.OpportunityStore, logger *log.Logger) *ArchiveSink {
	if logger == nil {
		logger = log.Default()
	}

	s := &ArchiveSink{
		store:  store,
		logger: logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, event := range []string{EventArbitrage, EventSandwich, EventLiquidation, EventCopyTrading} {
		ch, unsub := bus.Subscribe(event, DefaultSubscriberBuffer)
		s.wg.Add(1)
		go s.drain(ctx, event, ch, unsub)
	}
	return s
}

func (s *ArchiveSink) drain(ctx context.Context, event string, ch <-chan domain.Opportunity, unsub func()) {
	defer s.wg.Done()
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case op, ok := <-ch:
			if !ok {
				return
			}
			s.archive(ctx, event, op)
		}
	}
}

func (s *ArchiveSink) archive(ctx context.Context, event string, op domain.Opportunity) {
	rec, err := domain.NewOpportunityRecord(op)
	if err != nil {
		s.logger.Printf("[archive] Flatten %s: %v", event, err)
		return
	}

	err = s.store.Insert(ctx, rec)
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) && ctx.Err() == nil {
		s.logger.Printf("[archive] Insert %s: %v", event, err)
	}
}

// Close stops the drain goroutines.
func (s *ArchiveSink) Close() {
	s.cancel()
	s.wg.Wait()
}
