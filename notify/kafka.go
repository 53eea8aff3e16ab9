package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events keyed by room so one room stays ordered.
type Kafka struct {
	writer messageWriter
	log    *slog.Logger
}

func NewKafka(brokers []string, topic string, log *slog.Logger) *Kafka {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error("event delivery failed", "count", len(msgs), "error", err)
			}
		},
	}
	return &Kafka{writer: w, log: log}
}

func (k *Kafka) Broadcast(ctx context.Context, room, eventType string, data any) {
	body, err := json.Marshal(newEvent(room, eventType, data))
	if err != nil {
		k.log.Error("marshal event", "type", eventType, "error", err)
		return
	}
	msg := kafka.Message{
		Key:     []byte(room),
		Value:   body,
		Headers: []kafka.Header{{Key: "event", Value: []byte(eventType)}},
		Time:    time.Now(),
	}
	if err := k.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		k.log.Error("publish event", "room", room, "type", eventType, "error", err)
	}
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
