package payment

import (
	"errors"
	"fmt"

	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrDuplicatePayment marks a repeated completion for the same provider payment id.
	// It is an idempotent no-op, never an error surfaced to the caller.
	ErrDuplicatePayment        = errors.New("duplicate payment completion")
	ErrInvalidStatusTransition = errors.New("invalid payment status transition")
	ErrAmountMismatch          = errors.New("payment amount mismatch")
	// ErrTxRefInUse means the settlement reference already completed another payment.
	ErrTxRefInUse = errors.New("settlement reference already used by another payment")
)

func ErrInvalidTransition(from, to vo.PaymentStatus) error {
	return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, from, to)
}
