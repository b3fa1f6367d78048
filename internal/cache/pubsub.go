package cache

import (
	"context"
	"encoding/json"

	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// PubSubManager consumes the channels RedisCache publishes to.
type PubSubManager struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewPubSubManager(client *redis.Client, logger *logrus.Logger) *PubSubManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubManager{client: client, logger: logger}
}

// SubscribeSnapshots delivers every published snapshot until ctx ends.
func (p *PubSubManager) SubscribeSnapshots(ctx context.Context, handler func(*models.SnapshotUpdate)) error {
	return consume(ctx, p, p.client.Subscribe(ctx, SnapshotChannel), handler)
}

// SubscribeOperations delivers finished operation records until ctx ends.
// An empty kind subscribes to all of them.
func (p *PubSubManager) SubscribeOperations(ctx context.Context, kind string, handler func(*models.OperationRecord)) error {
	channel := OperationChannel
	if kind != "" {
		channel += ":" + kind
	}
	return consume(ctx, p, p.client.Subscribe(ctx, channel), handler)
}

func consume[T any](ctx context.Context, p *PubSubManager, sub *redis.PubSub, handler func(*T)) error {
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var v T
			if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
				p.logger.WithError(err).WithField("channel", msg.Channel).Warn("error unmarshaling message")
				continue
			}
			handler(&v)
		}
	}
}
