package valueobjects

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusSuccess    PaymentStatus = "SUCCESS"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// Forward-only transitions.
var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusSuccess:    {PaymentStatusRefunded},
}

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusSuccess,
		PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the payment can still complete.
func (s PaymentStatus) IsOpen() bool {
	return s == PaymentStatusPending || s == PaymentStatusProcessing
}

func (s PaymentStatus) IsFinal() bool {
	return s == PaymentStatusFailed || s == PaymentStatusCancelled || s == PaymentStatusRefunded
}

func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s PaymentStatus) String() string {
	return string(s)
}
