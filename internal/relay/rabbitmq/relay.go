package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Config struct {
	Enabled    bool
	URL        string
	Exchange   string
	RoutingKey string
}

// Relay mirrors every broadcast fix to a RabbitMQ exchange. It implements
// fanout.Sink, so a publish failure detaches it from the hub the same way a
// dead WebSocket client is pruned.
type Relay struct {
	conn       *amqp091.Connection
	ch         *amqp091.Channel
	exchange   string
	routingKey string
}

func NewRelay(cfg Config) (*Relay, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("rabbitmq relay: url required")
	}
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq relay: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq relay: channel: %w", err)
	}
	if cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("rabbitmq relay: declare exchange: %w", err)
		}
	}
	return &Relay{conn: conn, ch: ch, exchange: cfg.Exchange, routingKey: cfg.RoutingKey}, nil
}

func (r *Relay) Send(msg []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := r.ch.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         msg,
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", r.exchange, r.routingKey, err)
	}
	return nil
}

func (r *Relay) Close() error {
	_ = r.ch.Close()
	return r.conn.Close()
}
