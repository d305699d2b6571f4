package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	"github.com/relaygate/relaygate/internal/domain/payment"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/domain/shared"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

const syncBatchSize = 100

// SyncPendingPaymentsUseCase polls providers for open payments whose webhook never
// arrived, and cancels those that stayed open past the expiry window.
type SyncPendingPaymentsUseCase struct {
	paymentRepo payment.PaymentRepository
	gateways    GatewayRegistry
	reconcile   *ReconcilePaymentUseCase
	syncAfter   time.Duration
	expireAfter time.Duration
	now         biztime.Clock
	logger      logger.Interface
}

func NewSyncPendingPaymentsUseCase(
	paymentRepo payment.PaymentRepository,
	gateways GatewayRegistry,
	reconcile *ReconcilePaymentUseCase,
	syncAfter, expireAfter time.Duration,
	logger logger.Interface,
) *SyncPendingPaymentsUseCase {
	return &SyncPendingPaymentsUseCase{
		paymentRepo: paymentRepo,
		gateways:    gateways,
		reconcile:   reconcile,
		syncAfter:   syncAfter,
		expireAfter: expireAfter,
		now:         biztime.SystemClock,
		logger:      logger,
	}
}

func (uc *SyncPendingPaymentsUseCase) WithClock(c biztime.Clock) *SyncPendingPaymentsUseCase {
	uc.now = c
	return uc
}

type SyncPendingResult struct {
	Checked   int
	Settled   int
	Cancelled int
}

func (uc *SyncPendingPaymentsUseCase) Execute(ctx context.Context) (*SyncPendingResult, error) {
	now := uc.now()
	open, err := uc.paymentRepo.ListOpenCreatedBefore(ctx, now.Add(-uc.syncAfter), syncBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list open payments: %w", err)
	}

	res := &SyncPendingResult{}
	for _, p := range open {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++

		settled, err := uc.poll(ctx, p)
		if err != nil {
			uc.logger.Warnw("pending payment sync failed",
				"provider_payment_id", p.ProviderPaymentID(),
				"error", err,
			)
		}
		if settled {
			res.Settled++
			continue
		}

		if uc.expireAfter > 0 && p.CreatedAt().Before(now.Add(-uc.expireAfter)) {
			if err := uc.cancel(ctx, p); err != nil {
				uc.logger.Warnw("failed to cancel expired payment",
					"provider_payment_id", p.ProviderPaymentID(),
					"error", err,
				)
				continue
			}
			res.Cancelled++
		}
	}

	if res.Checked > 0 {
		uc.logger.Infow("pending payments synced",
			"checked", res.Checked,
			"settled", res.Settled,
			"cancelled", res.Cancelled,
		)
	}
	return res, nil
}

func (uc *SyncPendingPaymentsUseCase) poll(ctx context.Context, p *payment.Payment) (bool, error) {
	gateway, err := uc.gateways.Get(p.Provider())
	if err != nil {
		return false, err
	}
	status, err := gateway.GetStatus(ctx, p.ProviderPaymentID())
	if err != nil {
		return false, err
	}
	if status.IsOpen() {
		return false, nil
	}
	result, err := uc.reconcile.Execute(ctx, p.Provider(), &paymentgateway.Event{
		ProviderPaymentID: p.ProviderPaymentID(),
		Status:            status,
	})
	if err != nil {
		return false, err
	}
	return result.Outcome != OutcomeStale && result.Outcome != OutcomeIgnored, nil
}

func (uc *SyncPendingPaymentsUseCase) cancel(ctx context.Context, p *payment.Payment) error {
	for attempt := 0; attempt < maxReconcileAttempts; attempt++ {
		current, err := uc.paymentRepo.GetByProviderPaymentID(ctx, p.ProviderPaymentID())
		if err != nil {
			return err
		}
		if current == nil || !current.Status().IsOpen() {
			return nil
		}
		if err := current.TransitionTo(vo.PaymentStatusCancelled, uc.now()); err != nil {
			return err
		}
		current.SetMetadata(payment.MetaFailureReason, "expired without confirmation")
		err = uc.paymentRepo.Update(ctx, current)
		if !errors.Is(err, shared.ErrConcurrentModification) {
			if err == nil {
				uc.logger.Infow("open payment expired",
					"provider_payment_id", current.ProviderPaymentID(),
				)
			}
			return err
		}
	}
	return shared.ErrConcurrentModification
}
