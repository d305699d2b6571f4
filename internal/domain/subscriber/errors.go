package subscriber

import "errors"

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrSubscriberBanned   = errors.New("subscriber is banned")
	ErrAccessExpired      = errors.New("access expired")
	ErrTrafficExceeded    = errors.New("traffic limit exceeded")
	ErrNotProvisioned     = errors.New("subscriber has no provisioned account")
	ErrSubscriberExists   = errors.New("subscriber already registered")
)
