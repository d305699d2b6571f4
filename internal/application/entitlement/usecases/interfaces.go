package usecases

import (
	"context"

	"github.com/relaygate/relaygate/internal/application/provisioning"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
)

// Provisioner is the subset of provisioning.Service the entitlement use cases need.
type Provisioner interface {
	Sync(ctx context.Context, subscriberID uint) (*provisioning.SyncResult, error)
	ConnectionDescriptor(ctx context.Context, sub *subscriber.Subscriber) (string, error)
	Account(ctx context.Context, sub *subscriber.Subscriber) (*provisioning.Account, error)
}
