package ingestion

import (
	"context"
	"log"
	"time"

	"solana-mev-engine/internal/mempool"
	"solana-mev-engine/internal/solana"
)

// LogStream feeds the mempool classifier from a Solana transaction-log
// subscription. Failed transactions are skipped; the classifier decides
// whether a log touches a monitored DEX program.
type LogStream struct {
	streamer   solana.LogStreamer
	classifier *mempool.Classifier
	programs   []string
	logger     *log.Logger
}

// NewLogStream creates a log stream source. Programs defaults to the
// classifier's monitored DEX set.
func NewLogStream(streamer solana.LogStreamer, classifier *mempool.Classifier, programs []string, logger *log.Logger) *LogStream {
	if len(programs) == 0 {
		programs = mempool.DefaultPrograms()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LogStream{
		streamer:   streamer,
		classifier: classifier,
		programs:   programs,
		logger:     logger,
	}
}

// Run subscribes and consumes notifications until the context is cancelled
// or the subscription channel closes. The WS client reconnects underneath;
// a closed channel here means the client itself was shut down.
func (s *LogStream) Run(ctx context.Context) error {
	ch, err := s.streamer.SubscribeLogs(ctx, solana.LogsFilter{Mentions: s.programs})
	if err != nil {
		return err
	}

	s.logger.Printf("[ingest] Log stream subscribed to %d programs", len(s.programs))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-ch:
			if !ok {
				return nil
			}
			if notif.Err != nil {
				// Failed transaction, nothing to front-run
				continue
			}
			s.classifier.Classify(notif.Signature, notif.Logs, notif.Slot, walletFromLogs(notif.Logs), time.Now())
		}
	}
}

// walletFromLogs extracts the signing wallet when the log stream surfaces it.
// Solana log subscriptions do not carry account keys, so this looks for the
// conventional "Program log: signer: <address>" line emitted by some DEX
// frontends and returns empty otherwise.
func walletFromLogs(logs []string) string {
	const prefix = "Program log: signer: "
	for _, line := range logs {
		if len(line) > len(prefix) && line[:len(prefix)] == prefix {
			return line[len(prefix):]
		}
	}
	return ""
}
