package paymentgateway

import (
	"context"
	"net/http"

	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
)

// PaymentGateway is the capability every payment backend implements.
type PaymentGateway interface {
	// Name is the registry key and the {provider} path segment of the webhook route.
	Name() string
	// CreatePayment fails with ErrProviderUnavailable when the backend is unreachable or misconfigured.
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error)
	// GetStatus returns PaymentStatusFailed, not an error, for ids the backend does not know.
	GetStatus(ctx context.Context, providerPaymentID string) (vo.PaymentStatus, error)
	// VerifyNotification must succeed before any state change. A false result is a
	// rejection; an error means verification could not be completed and may be retried.
	VerifyNotification(ctx context.Context, n *Notification) (bool, error)
	// NormalizeNotification maps the native payload onto Event. It fails with
	// ErrMalformedNotification for payloads it cannot read and returns a nil
	// Event for well-formed notifications that carry nothing to reconcile.
	NormalizeNotification(n *Notification) (*Event, error)
}

// CreatePaymentRequest contains the data needed to create a payment
type CreatePaymentRequest struct {
	Amount       vo.Money
	Description  string
	SubscriberID int64
	Metadata     map[string]string
}

type CreatePaymentResponse struct {
	ProviderPaymentID string
	Status            vo.PaymentStatus
	// RedirectOrInvoice is a checkout URL, an invoice payload or a wallet address,
	// depending on the backend.
	RedirectOrInvoice string
}

// Notification is an inbound webhook as received: raw body plus signature material.
type Notification struct {
	Body     []byte
	Headers  http.Header
	RemoteIP string
}

// Event metadata keys understood by the reconciler.
const (
	EventMetaReason = "reason"
	EventMetaTxRef  = "tx_ref"
)

// Event is the provider-independent form of a notification.
type Event struct {
	ProviderPaymentID string
	Status            vo.PaymentStatus
	// Amount is nil when the payload carries none.
	Amount   *vo.Money
	Metadata map[string]string
}
