package node

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, n *Node) error
	Update(ctx context.Context, n *Node) error
	// GetByNodeID returns nil, nil when absent.
	GetByNodeID(ctx context.Context, nodeID string) (*Node, error)
	ListActive(ctx context.Context) ([]*Node, error)
	List(ctx context.Context) ([]*Node, error)
	UpdateLoad(ctx context.Context, nodeID string, currentUsers int, at time.Time) error
	Delete(ctx context.Context, nodeID string) error
}
