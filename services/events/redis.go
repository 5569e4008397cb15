package eventsvc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/tutorhub/core"
)

type redisBroker struct {
	client *redis.Client
	prefix string
	logger core.Logger
}

var _ core.EventBroker = (*redisBroker)(nil)

// NewRedisBroker publishes on one channel per account, so every API instance can stream the events.
func NewRedisBroker(client *redis.Client, conf *core.Config, logger core.Logger) core.EventBroker {
	return &redisBroker{client: client, prefix: conf.AppName + ":auth:", logger: logger}
}

func (b *redisBroker) channel(userID string) string {
	return b.prefix + userID
}

func (b *redisBroker) Publish(ctx context.Context, evt core.AuthEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "encoding auth event")
	}
	return errors.Wrap(b.client.Publish(ctx, b.channel(evt.UserID), data).Err(), "publishing auth event")
}

func (b *redisBroker) Subscribe(ctx context.Context, userID string) (<-chan core.AuthEvent, error) {
	pubsub := b.client.Subscribe(ctx, b.channel(userID))
	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrap(err, "subscribing to auth events")
	}

	out := make(chan core.AuthEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt core.AuthEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					b.logger.Warn("decoding auth event", err)
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
