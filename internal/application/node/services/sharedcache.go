package services

import (
	"context"
	"time"

	"github.com/relaygate/relaygate/internal/shared/logger"
)

const publishTimeout = 2 * time.Second

// ChangePublisher tells other instances that the node set changed.
type ChangePublisher interface {
	PublishNodesChanged(ctx context.Context, nodeID string) error
}

// SharedLoadCache is an Allocator whose invalidation also reaches peer instances.
type SharedLoadCache struct {
	*Allocator
	publisher ChangePublisher
	logger    logger.Interface
}

func NewSharedLoadCache(alloc *Allocator, publisher ChangePublisher, log logger.Interface) *SharedLoadCache {
	return &SharedLoadCache{Allocator: alloc, publisher: publisher, logger: log}
}

// Invalidate drops the local snapshot and asks peers to do the same. A failed
// publish leaves peers on their TTL.
func (c *SharedLoadCache) Invalidate() {
	c.Allocator.Invalidate()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.publisher.PublishNodesChanged(ctx, ""); err != nil {
		c.logger.Warnw("failed to broadcast node cache invalidation", "error", err)
	}
}
