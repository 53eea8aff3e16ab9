// Package logkafka ships one structured entry per HTTP request to a Kafka
// topic, from which the logshipper indexes them into Elasticsearch.
package logkafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Sink struct {
	writer messageWriter
	env    string
	log    *slog.Logger
}

func NewSink(brokers []string, topic, env string, log *slog.Logger) *Sink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		Async:        true,
		BatchTimeout: 100 * time.Millisecond,
	}
	return newSink(w, env, log)
}

func newSink(w messageWriter, env string, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{writer: w, env: env, log: log}
}

func (s *Sink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

func (s *Sink) write(ctx context.Context, msg []byte) error {
	return s.writer.WriteMessages(ctx, kafka.Message{
		Value: msg,
		Time:  time.Now(),
	})
}
