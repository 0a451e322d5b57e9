package invalidation

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"dossier/pkg/requestcontext"
)

// RedisPublisher publishes signals on a pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, signal Signal) error {
	payload, err := encode(signal, requestcontext.RequestID(ctx), requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("encode invalidation message: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}
