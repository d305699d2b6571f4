package subscriber

import "context"

type Repository interface {
	Create(ctx context.Context, s *Subscriber) error
	// Update is guarded by the version column (shared.ErrConcurrentModification).
	Update(ctx context.Context, s *Subscriber) error
	// GetByID and GetByExternalID return nil, nil when absent.
	GetByID(ctx context.Context, id uint) (*Subscriber, error)
	GetByExternalID(ctx context.Context, externalID int64) (*Subscriber, error)
	ListPendingProvisioning(ctx context.Context, limit int) ([]*Subscriber, error)
	// ListProvisioned returns non-banned subscribers with an assigned node.
	ListProvisioned(ctx context.Context, limit int) ([]*Subscriber, error)
	CountByAssignedNode(ctx context.Context, nodeID string) (int64, error)
}
