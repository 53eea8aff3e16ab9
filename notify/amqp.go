package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP publishes events on a topic exchange with routing key "<room>.<type>".
type AMQP struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	log      *slog.Logger
}

func NewAMQP(url, exchange string, log *slog.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &AMQP{conn: conn, channel: channel, exchange: exchange, log: log}, nil
}

func (a *AMQP) Broadcast(_ context.Context, room, eventType string, data any) {
	body, err := json.Marshal(newEvent(room, eventType, data))
	if err != nil {
		a.log.Error("marshal event", "type", eventType, "error", err)
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.channel.Publish(a.exchange, room+"."+eventType, false, false, amqp.Publishing{
		ContentType: "application/json",
		Type:        eventType,
		Body:        body,
	})
	if err != nil {
		a.log.Error("publish event", "room", room, "type", eventType, "error", err)
	}
}

func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.channel != nil {
		a.channel.Close()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
