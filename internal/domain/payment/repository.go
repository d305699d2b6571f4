package payment

import (
	"context"
	"time"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	// Update persists status/metadata changes guarded by the version column and
	// returns shared.ErrConcurrentModification when the row moved underneath, or
	// ErrTxRefInUse when the settlement reference is already held by another payment.
	Update(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id uint) (*Payment, error)
	// GetByProviderPaymentID returns nil, nil when no payment carries the id.
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*Payment, error)
	// GetByTxRef finds the payment settled by txRef; nil, nil when none is.
	GetByTxRef(ctx context.Context, txRef string) (*Payment, error)
	// ListOpenCreatedBefore returns PENDING and PROCESSING payments older than t, oldest first.
	ListOpenCreatedBefore(ctx context.Context, t time.Time, limit int) ([]*Payment, error)
	CountByPlanID(ctx context.Context, planID uint) (int64, error)
}
