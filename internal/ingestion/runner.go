package ingestion

import (
	"context"
	"log"
	"sync"
)

// Runner owns every ingestion task: one REST poller per exchange plus the
// price and transaction-log streams. Tasks run independently; one source
// failing never stalls the others.
type Runner struct {
	pollers     []*Poller
	priceStream *PriceStream
	logStream   *LogStream
	logger      *log.Logger

	cancel func()
	wg     sync.WaitGroup
}

// RunnerOptions contains configuration for creating a Runner. Nil stream
// sources are simply not started, which keeps tests and partial deployments
// simple.
type RunnerOptions struct {
	Pollers     []*Poller
	PriceStream *PriceStream
	LogStream   *LogStream
	Logger      *log.Logger
}

// NewRunner creates an ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		pollers:     opts.Pollers,
		priceStream: opts.PriceStream,
		logStream:   opts.LogStream,
		logger:      logger,
	}
}

// Start launches every ingestion task. It returns immediately; ingestion
// continues until Stop.
func (r *Runner) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for _, p := range r.pollers {
		p := p
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			p.Run(ctx)
		}()
	}

	if r.priceStream != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.priceStream.Run(ctx)
		}()
	}

	if r.logStream != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.logStream.Run(ctx); err != nil && ctx.Err() == nil {
				r.logger.Printf("[ingest] Log stream: %v", err)
			}
		}()
	}

	r.logger.Printf("[ingest] Started %d pollers, price stream: %t, log stream: %t",
		len(r.pollers), r.priceStream != nil, r.logStream != nil)
}

// Stop cancels every ingestion task and waits for them to exit.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Println("[ingest] Stopped")
}
