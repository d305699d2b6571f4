package usecases

import (
	"context"

	"github.com/relaygate/relaygate/internal/application/node/services"
	"github.com/relaygate/relaygate/internal/domain/node"
)

// NodeLister is the registry view: database nodes when any exist, else configuration.
type NodeLister interface {
	List(ctx context.Context) ([]*node.Node, error)
	Source(ctx context.Context) string
}

// LoadCache is the allocator surface the admin use cases touch.
type LoadCache interface {
	Refresh(ctx context.Context) error
	Snapshot() []services.NodeLoad
	Invalidate()
}

// AssignmentCounter counts subscribers whose account lives on a node.
type AssignmentCounter interface {
	CountByAssignedNode(ctx context.Context, nodeID string) (int64, error)
}
