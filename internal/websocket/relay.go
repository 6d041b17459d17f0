package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"buddyboard-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

const (
	RelayRedis   = "redis"
	RelayChannel = "channel"

	relayTopic  = "board_events"
	relayBuffer = 256
)

// Envelope carries a room frame between server instances.
type Envelope struct {
	Origin     string          `json:"origin"`
	DocumentID string          `json:"document_id"`
	Payload    json.RawMessage `json:"payload"`
}

// Relay fans room frames out to every instance. Delivery is at most once and
// unordered across instances.
type Relay interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context) (<-chan Envelope, error)
}

// RedisRelay shares frames through a Redis pub/sub channel that every
// instance subscribes to.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	logger  logger.ILogger
}

func NewRedisRelay(rdb *redis.Client, log logger.ILogger) *RedisRelay {
	return &RedisRelay{rdb: rdb, channel: relayTopic, logger: log}
}

func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.channel, err)
	}
	return nil
}

func (r *RedisRelay) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}

	out := make(chan Envelope, relayBuffer)
	go func() {
		defer close(out)
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
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					r.logger.Warn(logModule, "Redis relay message parse error", map[string]interface{}{
						"error": err.Error(),
					})
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ChannelRelay runs on an in-process Watermill GoChannel. It serves a single
// node, or several hubs sharing one process in tests.
type ChannelRelay struct {
	pubSub *gochannel.GoChannel
	topic  string
	logger logger.ILogger
}

func NewChannelRelay(pubSub *gochannel.GoChannel, log logger.ILogger) *ChannelRelay {
	return &ChannelRelay{pubSub: pubSub, topic: relayTopic, logger: log}
}

func (r *ChannelRelay) Publish(_ context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := r.pubSub.Publish(r.topic, message.NewMessage(watermill.NewUUID(), data)); err != nil {
		return fmt.Errorf("publish %s: %w", r.topic, err)
	}
	return nil
}

func (r *ChannelRelay) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	messages, err := r.pubSub.Subscribe(ctx, r.topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", r.topic, err)
	}

	out := make(chan Envelope, relayBuffer)
	go func() {
		defer close(out)
		for msg := range messages {
			var env Envelope
			err := json.Unmarshal(msg.Payload, &env)
			msg.Ack()
			if err != nil {
				r.logger.Warn(logModule, "Relay message parse error", map[string]interface{}{
					"message_id": msg.UUID,
					"error":      err.Error(),
				})
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
