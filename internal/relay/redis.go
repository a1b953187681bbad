package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jaiguru/astro-remedy/internal/logger"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RedisRelay publishes on per-consultation channels and pattern-subscribes
// to all of them.
type RedisRelay struct {
	client *redis.Client
}

func NewRedisRelay(ctx context.Context, cfg RedisConfig) (*RedisRelay, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisRelay{client: client}, nil
}

func (r *RedisRelay) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, ChannelFor(event.ConsultationID), data).Err()
}

func (r *RedisRelay) Subscribe(ctx context.Context) (<-chan *Event, error) {
	ps := r.client.PSubscribe(ctx, channelPattern)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channelPattern, err)
	}

	out := make(chan *Event, 256)
	go func() {
		defer close(out)
		defer ps.Close()

		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					l := logger.L()
					l.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed relay event")
					continue
				}

				select {
				case out <- &event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}
