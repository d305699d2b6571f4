package dto

import (
	"time"

	"github.com/relaygate/relaygate/internal/domain/payment"
)

// PaymentDTO is the public view of a payment, as returned by the check endpoint.
type PaymentDTO struct {
	PaymentID       string     `json:"payment_id"`
	Provider        string     `json:"provider"`
	Status          string     `json:"status"`
	Amount          string     `json:"amount"`
	Currency        string     `json:"currency"`
	ConfirmationURL string     `json:"confirmation_url,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func ToPaymentDTO(p *payment.Payment) *PaymentDTO {
	return &PaymentDTO{
		PaymentID:       p.ProviderPaymentID(),
		Provider:        p.Provider(),
		Status:          p.Status().String(),
		Amount:          p.Amount().Decimal(),
		Currency:        p.Amount().Currency(),
		ConfirmationURL: p.ConfirmationURL(),
		CompletedAt:     p.CompletedAt(),
		CreatedAt:       p.CreatedAt(),
	}
}
