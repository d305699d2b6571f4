package payment

import (
	"fmt"
	"time"

	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
)

// Metadata keys written by the reconciler.
const (
	MetaFailureReason = "failure_reason"
	MetaPlanName      = "plan_name"
	MetaPlanDays      = "plan_duration_days"
	MetaPlanTrafficGB = "plan_traffic_gb"
	MetaPlanDevices   = "plan_device_limit"
)

// Payment is keyed by the provider-assigned id, which doubles as the idempotency key.
type Payment struct {
	id                uint
	providerPaymentID string
	provider          string
	subscriberID      uint
	planID            *uint
	amount            vo.Money
	description       string
	status            vo.PaymentStatus
	confirmationURL   string
	metadata          map[string]interface{}
	// txRef is the settlement reference (on-chain tx hash, charge id). The store
	// keeps it unique across payments.
	txRef       string
	completedAt *time.Time
	version     int
	createdAt   time.Time
	updatedAt   time.Time
}

type NewPaymentParams struct {
	ProviderPaymentID string
	Provider          string
	SubscriberID      uint
	PlanID            *uint
	Amount            vo.Money
	Description       string
	Status            vo.PaymentStatus
	ConfirmationURL   string
	Metadata          map[string]interface{}
}

func NewPayment(p NewPaymentParams, now time.Time) (*Payment, error) {
	if p.ProviderPaymentID == "" {
		return nil, fmt.Errorf("provider payment id is required")
	}
	if p.Provider == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if p.SubscriberID == 0 {
		return nil, fmt.Errorf("subscriber id is required")
	}
	if !p.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}
	if p.Amount.Currency() == "" {
		return nil, fmt.Errorf("currency is required")
	}

	status := p.Status
	if status == "" {
		status = vo.PaymentStatusPending
	}
	if !status.IsOpen() {
		return nil, fmt.Errorf("new payment cannot start in status %s", status)
	}

	metadata := p.Metadata
	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return &Payment{
		providerPaymentID: p.ProviderPaymentID,
		provider:          p.Provider,
		subscriberID:      p.SubscriberID,
		planID:            p.PlanID,
		amount:            p.Amount,
		description:       p.Description,
		status:            status,
		confirmationURL:   p.ConfirmationURL,
		metadata:          metadata,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// MarkSucceeded completes the payment. A second completion returns ErrDuplicatePayment
// and leaves the payment untouched.
func (p *Payment) MarkSucceeded(at time.Time) error {
	if p.status == vo.PaymentStatusSuccess {
		return ErrDuplicatePayment
	}
	if err := p.TransitionTo(vo.PaymentStatusSuccess, at); err != nil {
		return err
	}
	p.completedAt = &at
	return nil
}

// RecordTxRef attaches the settlement reference that completed the payment.
func (p *Payment) RecordTxRef(ref string) {
	p.txRef = ref
}

// MarkFailed moves an open payment to FAILED and records the reason.
func (p *Payment) MarkFailed(reason string, at time.Time) error {
	if err := p.TransitionTo(vo.PaymentStatusFailed, at); err != nil {
		return err
	}
	p.metadata[MetaFailureReason] = reason
	return nil
}

// TransitionTo applies a forward-only status change.
func (p *Payment) TransitionTo(to vo.PaymentStatus, at time.Time) error {
	if !p.status.CanTransitionTo(to) {
		return ErrInvalidTransition(p.status, to)
	}
	p.status = to
	p.updatedAt = at
	return nil
}

// ValidateAmount checks a notified amount against the amount the payment was created for.
func (p *Payment) ValidateAmount(notified vo.Money) error {
	if !p.amount.Equals(notified) {
		return fmt.Errorf("%w: expected %s, got %s", ErrAmountMismatch, p.amount, notified)
	}
	return nil
}

func (p *Payment) ID() uint                  { return p.id }
func (p *Payment) ProviderPaymentID() string { return p.providerPaymentID }
func (p *Payment) Provider() string          { return p.provider }
func (p *Payment) SubscriberID() uint        { return p.subscriberID }
func (p *Payment) PlanID() *uint             { return p.planID }
func (p *Payment) Amount() vo.Money          { return p.amount }
func (p *Payment) Description() string       { return p.description }
func (p *Payment) Status() vo.PaymentStatus  { return p.status }
func (p *Payment) ConfirmationURL() string   { return p.confirmationURL }
func (p *Payment) TxRef() string             { return p.txRef }
func (p *Payment) CompletedAt() *time.Time   { return p.completedAt }
func (p *Payment) Version() int              { return p.version }
func (p *Payment) CreatedAt() time.Time      { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time      { return p.updatedAt }

func (p *Payment) Metadata() map[string]interface{} {
	return p.metadata
}

// SetMetadata sets a metadata key-value pair
func (p *Payment) SetMetadata(key string, value interface{}) {
	if p.metadata == nil {
		p.metadata = make(map[string]interface{})
	}
	p.metadata[key] = value
}

// SetID sets the payment ID after persistence (used by repository after Create)
func (p *Payment) SetID(id uint) {
	p.id = id
}

// SetVersion is called by the repository after a successful optimistic update.
func (p *Payment) SetVersion(v int) {
	p.version = v
}

type ReconstructParams struct {
	ID                uint
	ProviderPaymentID string
	Provider          string
	SubscriberID      uint
	PlanID            *uint
	Amount            vo.Money
	Description       string
	Status            vo.PaymentStatus
	ConfirmationURL   string
	Metadata          map[string]interface{}
	TxRef             string
	CompletedAt       *time.Time
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func ReconstructPayment(p ReconstructParams) *Payment {
	metadata := p.Metadata
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return &Payment{
		id:                p.ID,
		providerPaymentID: p.ProviderPaymentID,
		provider:          p.Provider,
		subscriberID:      p.SubscriberID,
		planID:            p.PlanID,
		amount:            p.Amount,
		description:       p.Description,
		status:            p.Status,
		confirmationURL:   p.ConfirmationURL,
		metadata:          metadata,
		txRef:             p.TxRef,
		completedAt:       p.CompletedAt,
		version:           p.Version,
		createdAt:         p.CreatedAt,
		updatedAt:         p.UpdatedAt,
	}
}
