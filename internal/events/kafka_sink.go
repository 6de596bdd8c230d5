package events

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"solana-mev-engine/internal/domain"
)

// KafkaSink publishes every opportunity on the bus to a Kafka topic as JSON.
// It is an optional consumer: wiring only creates one when brokers are
// configured. Delivery is best-effort; write failures are logged and the
// sink keeps draining.
type KafkaSink struct {
	writer *kafka.Writer
	logger *log.Logger

	cancel func()
	wg     sync.WaitGroup
}

// KafkaSinkOptions configures a KafkaSink.
type KafkaSinkOptions struct {
	Brokers []string
	Topic   string
	Logger  *log.Logger
}

// NewKafkaSink creates a sink and subscribes it to all four opportunity
// events on the bus.
func NewKafkaSink(bus *Bus, opts KafkaSinkOptions) *KafkaSink {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(opts.Brokers...),
			Topic:        opts.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
			Async:        true,
		},
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

func (s *KafkaSink) drain(ctx context.Context, event string, ch <-chan domain.Opportunity, unsub func()) {
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
			s.publish(ctx, event, op)
		}
	}
}

func (s *KafkaSink) publish(ctx context.Context, event string, op domain.Opportunity) {
	value, err := json.Marshal(op)
	if err != nil {
		s.logger.Printf("[kafka] Marshal %s: %v", event, err)
		return
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(op.Meta().ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event)},
		},
	})
	if err != nil && ctx.Err() == nil {
		s.logger.Printf("[kafka] Write %s: %v", event, err)
	}
}

// Close stops the drain goroutines and closes the writer.
func (s *KafkaSink) Close() error {
	s.cancel()
	s.wg.Wait()
	return s.writer.Close()
}
