package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/frankieli/raffle_engine/internal/config"
	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher publishes raffle events to Kafka as JSON. Publish runs on
// the engine's dispatcher, so every write is bounded by timeout.
type EventPublisher struct {
	writer  messageWriter
	timeout time.Duration
	Topic   string
}

var _ domain.EventPublisher = (*EventPublisher)(nil)

func NewEventPublisher(cfg config.KafkaConfig) *EventPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           cfg.PublishTimeout,
	}
	return &EventPublisher{writer: writer, timeout: cfg.PublishTimeout, Topic: cfg.Topic}
}

// Publish writes ev. Draw events are keyed by request id so one draw's
// messages land on one partition; entries are keyed by participant.
func (p *EventPublisher) Publish(ctx context.Context, ev domain.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal raffle event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(eventKey(ev)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func eventKey(ev domain.Event) string {
	if ev.RequestID != "" {
		return ev.RequestID
	}
	if entry, ok := ev.Data.(domain.EntryAccepted); ok {
		return entry.Participant
	}
	return string(ev.Type)
}

func (p *EventPublisher) Close() error {
	return p.writer.Close()
}
