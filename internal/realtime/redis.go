package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultChannel = "missioncontrol:deltas"

// RedisBroker publishes deltas over Redis Pub/Sub so every API process feeds
// its own Hub, whichever process committed the change.
type RedisBroker struct {
	client  *redis.Client
	channel string
	local   *Hub
	logger  *log.Logger
}

func NewRedisBroker(redisURL string, local *Hub, logger *log.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisBrokerWithClient(client, local, logger), nil
}

func NewRedisBrokerWithClient(client *redis.Client, local *Hub, logger *log.Logger) *RedisBroker {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisBroker{client: client, channel: defaultChannel, local: local, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, d Delta) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal delta: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish delta: %w", err)
	}
	return nil
}

// Start subscribes and returns once the subscription is confirmed; deltas are
// then forwarded to the local hub until ctx ends.
func (b *RedisBroker) Start(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var d Delta
				if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
					b.logger.Printf("realtime: discard malformed delta: %v", err)
					continue
				}
				_ = b.local.Publish(ctx, d)
			}
		}
	}()
	return nil
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
