package notify

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"golang.org/x/xerrors"
)

// Publisher is the subset of *redis.Client used by RedisNotifier.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes each event to a Redis pub/sub channel.
type RedisNotifier struct {
	publisher Publisher
	channel   string
}

func NewRedisNotifier(publisher Publisher, channel string) *RedisNotifier {
	return &RedisNotifier{
		publisher: publisher,
		channel:   channel,
	}
}

func (n *RedisNotifier) Send(ctx context.Context, event string, payload any) error {
	b, err := json.Marshal(Event{Name: event, Data: payload})
	if err != nil {
		return xerrors.Errorf("failed to marshal event %s: %w", event, err)
	}

	if err := n.publisher.Publish(ctx, n.channel, b).Err(); err != nil {
		return xerrors.Errorf("failed to publish to %s: %w", n.channel, err)
	}
	return nil
}
