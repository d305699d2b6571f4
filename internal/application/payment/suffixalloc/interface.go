// Package suffixalloc hands out unique transfer amounts so an on-chain payment
// can be matched to the invoice it settles.
package suffixalloc

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// ErrNoSuffixAvailable means every suffix for the base amount is reserved.
var ErrNoSuffixAvailable = errors.New("no amount suffix available")

// Allocation is a reserved raw amount: the base price plus a per-payment suffix
// in the token's smallest unit.
type Allocation struct {
	ProviderPaymentID string
	Wallet            string
	BaseAmountRaw     *big.Int
	Suffix            uint
	FullAmountRaw     *big.Int
	AllocatedAt       time.Time
	ExpiresAt         time.Time
}

// SuffixAllocator manages unique amount suffixes per receiving wallet.
type SuffixAllocator interface {
	// Allocate reserves the lowest free suffix in [1, maxSuffix] for base on
	// wallet until now+ttl. Reservations stay taken for a cooldown after they
	// expire so late transfers cannot settle a newer payment.
	Allocate(ctx context.Context, wallet string, base *big.Int, maxSuffix uint, providerPaymentID string, ttl time.Duration) (*Allocation, error)
	// Get returns the reservation held by providerPaymentID; nil, nil when none.
	Get(ctx context.Context, providerPaymentID string) (*Allocation, error)
	// CleanupExpired frees reservations past expiry plus cooldown.
	CleanupExpired(ctx context.Context) (int64, error)
}

// FullAmount is base + suffix raw units.
func FullAmount(base *big.Int, suffix uint) *big.Int {
	return new(big.Int).Add(base, new(big.Int).SetUint64(uint64(suffix)))
}
