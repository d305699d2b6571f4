package trial

import (
	"context"
	"time"
)

type Repository interface {
	// Create returns ErrActiveGrantExists when the subscriber already holds an active grant.
	Create(ctx context.Context, g *Grant) error
	// GetActive returns the subscriber's active grant or nil.
	GetActive(ctx context.Context, subscriberID uint) (*Grant, error)
	CountBySubscriber(ctx context.Context, subscriberID uint) (int64, error)
	// ExpireDue deactivates active grants with expires_at <= now and returns how many changed.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}
