package usecases

import (
	"context"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	"github.com/relaygate/relaygate/internal/application/provisioning"
)

// Provisioner pushes a subscriber's committed entitlement to its node.
type Provisioner interface {
	Sync(ctx context.Context, subscriberID uint) (*provisioning.SyncResult, error)
}

// GatewayRegistry resolves a provider name to its gateway.
type GatewayRegistry interface {
	Get(name string) (paymentgateway.PaymentGateway, error)
	Names() []string
}

// Outcome is how a notification was handled. Every outcome is acknowledged to the provider.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	// OutcomeStale is a delivery whose transition is no longer allowed.
	OutcomeStale    Outcome = "stale"
	OutcomeMismatch Outcome = "amount_mismatch"
	// OutcomeDegraded means the entitlement is committed but provisioning is still pending.
	OutcomeDegraded Outcome = "degraded"
)
