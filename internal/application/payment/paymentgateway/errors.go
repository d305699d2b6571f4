package paymentgateway

import "errors"

var (
	ErrProviderUnavailable   = errors.New("payment provider unavailable")
	ErrUnknownProvider       = errors.New("unknown payment provider")
	ErrVerificationFailed    = errors.New("webhook verification failed")
	ErrMalformedNotification = errors.New("malformed payment notification")
)
