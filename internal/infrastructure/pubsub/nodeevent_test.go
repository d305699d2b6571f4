package pubsub

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/shared/logger"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisNodeEventBus_DeliversToPeersOnly(t *testing.T) {
	client := newTestClient(t)
	local := NewRedisNodeEventBus(client, logger.NewNopLogger())
	peer := NewRedisNodeEventBus(client, logger.NewNopLogger())
	require.NotEqual(t, local.InstanceID(), peer.InstanceID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received atomic.Int32
	var lastNode atomic.Value
	done := make(chan error, 1)
	go func() {
		done <- local.SubscribeNodesChanged(ctx, func(e NodesChangedEvent) {
			lastNode.Store(e.NodeID)
			received.Add(1)
		})
	}()

	// wait for the subscription before publishing
	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, nodesChangedChannel).Result()
		return err == nil && n[nodesChangedChannel] > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, local.PublishNodesChanged(ctx, "self"))
	require.NoError(t, peer.PublishNodesChanged(ctx, "node-a"))

	require.Eventually(t, func() bool { return received.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "node-a", lastNode.Load())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
	assert.EqualValues(t, 1, received.Load(), "own event is skipped")
}

func TestRedisNodeEventBus_PublishFailsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	bus := NewRedisNodeEventBus(client, logger.NewNopLogger())
	assert.Error(t, bus.PublishNodesChanged(context.Background(), ""))
}
