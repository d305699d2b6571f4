package payment

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/relaygate/relaygate/internal/application/payment/suffixalloc"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/models"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/db"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

const (
	// Expired reservations stay taken this long, so a late transfer for an
	// abandoned invoice cannot settle the next payment that gets the same amount.
	suffixCooldownPeriod = time.Hour
	// Concurrent inserts for the same suffix lose on the unique index and retry.
	maxSuffixAttempts = 5
)

// SuffixAllocator reserves unique raw amounts in the onchain_amount_suffixes
// table. The (wallet, full_amount_raw) unique index is the authoritative guard.
type SuffixAllocator struct {
	db     *gorm.DB
	now    biztime.Clock
	logger logger.Interface
}

var _ suffixalloc.SuffixAllocator = (*SuffixAllocator)(nil)

func NewSuffixAllocator(db *gorm.DB, logger logger.Interface) *SuffixAllocator {
	return &SuffixAllocator{
		db:     db,
		now:    biztime.SystemClock,
		logger: logger,
	}
}

// WithClock overrides the time source; used by tests.
func (a *SuffixAllocator) WithClock(c biztime.Clock) *SuffixAllocator {
	a.now = c
	return a
}

func (a *SuffixAllocator) Allocate(ctx context.Context, wallet string, base *big.Int, maxSuffix uint, providerPaymentID string, ttl time.Duration) (*suffixalloc.Allocation, error) {
	if maxSuffix == 0 {
		return nil, fmt.Errorf("suffix range is empty")
	}
	now := a.now()
	baseRaw := base.String()
	txDB := db.GetTxFromContext(ctx, a.db)

	if err := txDB.
		Where("wallet = ? AND base_amount_raw = ? AND expires_at < ?", wallet, baseRaw, now.Add(-suffixCooldownPeriod)).
		Delete(&models.OnchainSuffixModel{}).Error; err != nil {
		return nil, fmt.Errorf("failed to release cooled down suffixes: %w", err)
	}

	for attempt := 1; attempt <= maxSuffixAttempts; attempt++ {
		var taken []uint
		if err := txDB.Model(&models.OnchainSuffixModel{}).
			Where("wallet = ? AND base_amount_raw = ?", wallet, baseRaw).
			Pluck("suffix", &taken).Error; err != nil {
			return nil, fmt.Errorf("failed to list reserved suffixes: %w", err)
		}
		suffix := lowestFreeSuffix(taken, maxSuffix)
		if suffix == 0 {
			return nil, suffixalloc.ErrNoSuffixAvailable
		}

		model := &models.OnchainSuffixModel{
			Wallet:            wallet,
			BaseAmountRaw:     baseRaw,
			Suffix:            suffix,
			FullAmountRaw:     suffixalloc.FullAmount(base, suffix).String(),
			ProviderPaymentID: providerPaymentID,
			AllocatedAt:       now,
			ExpiresAt:         now.Add(ttl),
			CreatedAt:         now,
		}
		err := txDB.Create(model).Error
		if err == nil {
			a.logger.Infow("allocated amount suffix",
				"wallet", wallet,
				"base_amount_raw", baseRaw,
				"suffix", suffix,
				"full_amount_raw", model.FullAmountRaw,
				"provider_payment_id", providerPaymentID,
			)
			return toAllocation(model)
		}
		if !apperrors.IsDuplicateError(err) {
			return nil, fmt.Errorf("failed to reserve suffix: %w", err)
		}
		if existing, getErr := a.Get(ctx, providerPaymentID); getErr == nil && existing != nil {
			return existing, nil
		}
		a.logger.Debugw("suffix taken concurrently, retrying",
			"wallet", wallet,
			"suffix", suffix,
			"attempt", attempt,
		)
	}
	return nil, suffixalloc.ErrNoSuffixAvailable
}

func (a *SuffixAllocator) Get(ctx context.Context, providerPaymentID string) (*suffixalloc.Allocation, error) {
	var model models.OnchainSuffixModel
	if err := db.GetTxFromContext(ctx, a.db).
		Where("provider_payment_id = ?", providerPaymentID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get suffix allocation: %w", err)
	}
	return toAllocation(&model)
}

func (a *SuffixAllocator) CleanupExpired(ctx context.Context) (int64, error) {
	threshold := a.now().Add(-suffixCooldownPeriod)
	result := db.GetTxFromContext(ctx, a.db).
		Where("expires_at < ?", threshold).
		Delete(&models.OnchainSuffixModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup expired suffixes: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		a.logger.Infow("cleaned up expired amount suffixes",
			"count", result.RowsAffected,
			"cooldown_period", suffixCooldownPeriod,
		)
	}
	return result.RowsAffected, nil
}

// lowestFreeSuffix returns the smallest suffix in [1, limit] not in taken, or 0.
func lowestFreeSuffix(taken []uint, limit uint) uint {
	sort.Slice(taken, func(i, j int) bool { return taken[i] < taken[j] })
	next := uint(1)
	for _, s := range taken {
		if s > next {
			break
		}
		if s == next {
			next++
		}
	}
	if next > limit {
		return 0
	}
	return next
}

func toAllocation(m *models.OnchainSuffixModel) (*suffixalloc.Allocation, error) {
	base, ok := new(big.Int).SetString(m.BaseAmountRaw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid base amount %q", m.BaseAmountRaw)
	}
	full, ok := new(big.Int).SetString(m.FullAmountRaw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid full amount %q", m.FullAmountRaw)
	}
	return &suffixalloc.Allocation{
		ProviderPaymentID: m.ProviderPaymentID,
		Wallet:            m.Wallet,
		BaseAmountRaw:     base,
		Suffix:            m.Suffix,
		FullAmountRaw:     full,
		AllocatedAt:       m.AllocatedAt,
		ExpiresAt:         m.ExpiresAt,
	}, nil
}
