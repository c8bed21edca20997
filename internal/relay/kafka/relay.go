package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

type Config struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// Relay mirrors every broadcast fix to a Kafka topic. It implements
// fanout.Sink; a failed produce detaches the relay from the hub, which never
// affects WebSocket delivery or liveness.
type Relay struct {
	client *kgo.Client
	topic  string
}

func NewRelay(cfg Config) (*Relay, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka relay: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka relay: topic required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka relay: %w", err)
	}
	return &Relay{client: client, topic: cfg.Topic}, nil
}

func (r *Relay) Send(msg []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res := r.client.ProduceSync(ctx, &kgo.Record{Topic: r.topic, Value: msg})
	if err := res.FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", r.topic, err)
	}
	return nil
}

func (r *Relay) Close() error {
	r.client.Close()
	return nil
}
