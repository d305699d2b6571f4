package usecases

import (
	"context"

	"github.com/relaygate/relaygate/internal/application/provisioning"
)

type Provisioner interface {
	Sync(ctx context.Context, subscriberID uint) (*provisioning.SyncResult, error)
}

// Settings are the trial terms handed out when a request does not override them.
type Settings struct {
	DurationDays int
	TrafficGB    float64
}
