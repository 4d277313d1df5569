package realtime

import (
	"context"
	"strings"

	"github.com/go-redis/redis/v8"
)

const channelPrefix = "campus-exchange:rt:"

// RedisBroker relays events between instances over Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBroker{client: redis.NewClient(opts)}, nil
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, channelPrefix+topic, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, deliver func(topic string, payload []byte)) error {
	ps := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			deliver(strings.TrimPrefix(msg.Channel, channelPrefix), []byte(msg.Payload))
		}
	}
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
