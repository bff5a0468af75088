package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ChannelNotifications = "collabhub:notifications"
	ChannelAnalytics     = "collabhub:analytics"
)

// Publisher hands job payloads to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// LogPublisher is used when no redis is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.log.Info("job event", zap.String("channel", channel), zap.ByteString("payload", payload))
	return nil
}

// DefaultHandlers routes each job to its channel after checking the payload decodes.
func DefaultHandlers(pub Publisher) map[string]Handler {
	return map[string]Handler{
		JobNotificationSend: publishTo(pub, ChannelNotifications),
		JobAnalyticsCompute: publishTo(pub, ChannelAnalytics),
	}
}

func publishTo(pub Publisher, channel string) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if event.Entity == "" || event.EntityID == 0 {
			return fmt.Errorf("event without subject on %s", channel)
		}
		return pub.Publish(ctx, channel, payload)
	}
}
