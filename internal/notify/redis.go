package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisNotifier carries events over redis Pub/Sub, one channel per
// topic, so multiple server instances share a change feed. Redis
// pub/sub is fire-and-forget, which matches the contract: no replay,
// at-most-once per connected subscriber.
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) Publish(ctx context.Context, topic string, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, topic, b).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, topic string, h Handler) (*Subscription, error) {
	ps := n.rdb.Subscribe(ctx, topic)
	// Receive the subscription confirmation before returning so a
	// publish right after Subscribe is not missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	go func() {
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Error().Err(err).Str("module", "notify").Str("topic", topic).Msg("bad event payload")
				continue
			}
			h(ev)
		}
	}()

	return &Subscription{
		topic: topic,
		// Close terminates ps.Channel(), which ends the delivery goroutine.
		stop: func() { _ = ps.Close() },
	}, nil
}
