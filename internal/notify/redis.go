package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes the notification as JSON on a channel for downstream
// consumers such as a mail or push worker.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisNotifier(client redis.UniversalClient, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
