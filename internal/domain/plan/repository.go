package plan

import "context"

type Repository interface {
	Create(ctx context.Context, p *Plan) error
	Update(ctx context.Context, p *Plan) error
	// GetByID returns nil, nil when absent.
	GetByID(ctx context.Context, id uint) (*Plan, error)
	ListActive(ctx context.Context) ([]*Plan, error)
	// List includes inactive plans.
	List(ctx context.Context) ([]*Plan, error)
}
