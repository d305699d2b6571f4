// Package pubsub relays node registry changes between server instances over Redis Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/goroutine"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

const nodesChangedChannel = "relaygate:nodes:changed"

// NodesChangedEvent tells peers to drop their node load snapshot.
type NodesChangedEvent struct {
	NodeID     string `json:"node_id,omitempty"`
	Timestamp  int64  `json:"timestamp"`
	InstanceID string `json:"instance_id"` // source instance, skipped on delivery
}

// RedisNodeEventBus publishes and receives NodesChangedEvent over one channel.
type RedisNodeEventBus struct {
	client     redis.UniversalClient
	logger     logger.Interface
	instanceID string
}

func NewRedisNodeEventBus(client redis.UniversalClient, logger logger.Interface) *RedisNodeEventBus {
	return &RedisNodeEventBus{
		client:     client,
		logger:     logger,
		instanceID: uuid.NewString(),
	}
}

// InstanceID identifies this process on the channel.
func (b *RedisNodeEventBus) InstanceID() string {
	return b.instanceID
}

// PublishNodesChanged announces a node registry change. nodeID may be empty
// when the change is not tied to one node.
func (b *RedisNodeEventBus) PublishNodesChanged(ctx context.Context, nodeID string) error {
	event := NodesChangedEvent{
		NodeID:     nodeID,
		Timestamp:  biztime.NowUTC().Unix(),
		InstanceID: b.instanceID,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal nodes changed event: %w", err)
	}

	if err := b.client.Publish(ctx, nodesChangedChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish nodes changed event: %w", err)
	}

	b.logger.Debugw("nodes changed event published", "node_id", nodeID)
	return nil
}

// SubscribeNodesChanged blocks delivering peer events to handler until ctx ends.
// Events published by this instance are filtered out.
func (b *RedisNodeEventBus) SubscribeNodesChanged(ctx context.Context, handler func(event NodesChangedEvent)) error {
	return b.subscribeWithReconnect(ctx, nodesChangedChannel, func(payload string) {
		var event NodesChangedEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			b.logger.Warnw("failed to unmarshal nodes changed event",
				"payload", payload,
				"error", err,
			)
			return
		}
		if event.InstanceID == b.instanceID {
			return
		}
		handler(event)
	})
}

// subscribeWithReconnect wraps subscribe with automatic reconnection and exponential backoff.
func (b *RedisNodeEventBus) subscribeWithReconnect(ctx context.Context, channel string, handler func(payload string)) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		err := b.subscribe(ctx, channel, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b.logger.Warnw("node event subscription disconnected, reconnecting",
			"channel", channel,
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

func (b *RedisNodeEventBus) subscribe(ctx context.Context, channel string, handler func(payload string)) error {
	sub := b.client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}

	b.logger.Infow("subscribed to node event channel", "channel", channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				b.logger.Warnw("node event channel closed", "channel", channel)
				return nil
			}
			goroutine.SafeGo(b.logger, "node-event-handler", func() {
				handler(msg.Payload)
			})
		}
	}
}
