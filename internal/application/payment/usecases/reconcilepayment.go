package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	"github.com/relaygate/relaygate/internal/domain/payment"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/domain/plan"
	"github.com/relaygate/relaygate/internal/domain/shared"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	subvo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/db"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

const maxReconcileAttempts = 3

// ReconcileResult carries the outcome and, for a fresh completion, the subscriber to provision.
type ReconcileResult struct {
	Outcome      Outcome
	Payment      *payment.Payment
	provisionFor uint
}

// ReconcilePaymentUseCase applies a normalized provider event to the stored payment.
// It is shared by webhook processing, the status check endpoint and the pending sync pass.
type ReconcilePaymentUseCase struct {
	paymentRepo    payment.PaymentRepository
	subscriberRepo subscriber.Repository
	planRepo       plan.Repository
	txMgr          db.Transactor
	provisioner    Provisioner
	stack          bool
	now            biztime.Clock
	logger         logger.Interface
}

func NewReconcilePaymentUseCase(
	paymentRepo payment.PaymentRepository,
	subscriberRepo subscriber.Repository,
	planRepo plan.Repository,
	txMgr db.Transactor,
	provisioner Provisioner,
	stackRenewals bool,
	logger logger.Interface,
) *ReconcilePaymentUseCase {
	return &ReconcilePaymentUseCase{
		paymentRepo:    paymentRepo,
		subscriberRepo: subscriberRepo,
		planRepo:       planRepo,
		txMgr:          txMgr,
		provisioner:    provisioner,
		stack:          stackRenewals,
		now:            biztime.SystemClock,
		logger:         logger,
	}
}

func (uc *ReconcilePaymentUseCase) WithClock(c biztime.Clock) *ReconcilePaymentUseCase {
	uc.now = c
	return uc
}

// Execute commits the state change, then provisions a fresh completion. A
// provisioning failure downgrades the outcome to degraded but is not an error.
func (uc *ReconcilePaymentUseCase) Execute(ctx context.Context, provider string, ev *paymentgateway.Event) (*ReconcileResult, error) {
	var result *ReconcileResult
	var err error
	for attempt := 1; attempt <= maxReconcileAttempts; attempt++ {
		err = uc.txMgr.RunInTransaction(ctx, func(txCtx context.Context) error {
			r, txErr := uc.apply(txCtx, provider, ev)
			result = r
			return txErr
		})
		if !errors.Is(err, shared.ErrConcurrentModification) {
			break
		}
		uc.logger.Warnw("payment reconciliation conflicted, retrying",
			"provider_payment_id", ev.ProviderPaymentID,
			"attempt", attempt,
		)
	}
	if errors.Is(err, payment.ErrTxRefInUse) {
		uc.logger.Warnw("settlement reference already used, completion rejected",
			"provider", provider,
			"provider_payment_id", ev.ProviderPaymentID,
			"tx_ref", ev.Metadata[paymentgateway.EventMetaTxRef],
		)
		return nil, fmt.Errorf("%w: %w", paymentgateway.ErrVerificationFailed, err)
	}
	if err != nil {
		return nil, err
	}

	if result.provisionFor != 0 && uc.provisioner != nil {
		if _, perr := uc.provisioner.Sync(ctx, result.provisionFor); perr != nil {
			uc.logger.Errorw("provisioning after payment failed, left pending for retry",
				"provider_payment_id", ev.ProviderPaymentID,
				"subscriber_id", result.provisionFor,
				"error", perr,
			)
			result.Outcome = OutcomeDegraded
		}
	}
	return result, nil
}

func (uc *ReconcilePaymentUseCase) apply(ctx context.Context, provider string, ev *paymentgateway.Event) (*ReconcileResult, error) {
	p, err := uc.paymentRepo.GetByProviderPaymentID(ctx, ev.ProviderPaymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if p == nil {
		uc.logger.Warnw("notification for unknown payment",
			"provider", provider,
			"provider_payment_id", ev.ProviderPaymentID,
		)
		return &ReconcileResult{Outcome: OutcomeIgnored}, nil
	}
	if p.Provider() != provider {
		uc.logger.Warnw("notification provider does not match payment",
			"provider", provider,
			"payment_provider", p.Provider(),
			"provider_payment_id", ev.ProviderPaymentID,
		)
		return &ReconcileResult{Outcome: OutcomeIgnored, Payment: p}, nil
	}

	now := uc.now()
	if ev.Status == vo.PaymentStatusSuccess {
		return uc.applySuccess(ctx, p, ev)
	}

	if p.Status() == ev.Status {
		return &ReconcileResult{Outcome: OutcomeDuplicate, Payment: p}, nil
	}
	if ev.Status == vo.PaymentStatusFailed {
		err = p.MarkFailed(ev.Metadata[paymentgateway.EventMetaReason], now)
	} else {
		err = p.TransitionTo(ev.Status, now)
	}
	if errors.Is(err, payment.ErrInvalidStatusTransition) {
		uc.logger.Infow("stale payment notification acknowledged",
			"provider_payment_id", p.ProviderPaymentID(),
			"current", p.Status(),
			"notified", ev.Status,
		)
		return &ReconcileResult{Outcome: OutcomeStale, Payment: p}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := uc.paymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}
	uc.logger.Infow("payment status updated",
		"provider_payment_id", p.ProviderPaymentID(),
		"status", p.Status(),
	)
	return &ReconcileResult{Outcome: OutcomeApplied, Payment: p}, nil
}

func (uc *ReconcilePaymentUseCase) applySuccess(ctx context.Context, p *payment.Payment, ev *paymentgateway.Event) (*ReconcileResult, error) {
	now := uc.now()
	if p.Status() == vo.PaymentStatusSuccess {
		uc.logger.Infow("duplicate payment completion acknowledged",
			"provider_payment_id", p.ProviderPaymentID(),
		)
		return &ReconcileResult{Outcome: OutcomeDuplicate, Payment: p}, nil
	}
	if !p.Status().CanTransitionTo(vo.PaymentStatusSuccess) {
		uc.logger.Infow("completion for closed payment acknowledged",
			"provider_payment_id", p.ProviderPaymentID(),
			"current", p.Status(),
		)
		return &ReconcileResult{Outcome: OutcomeStale, Payment: p}, nil
	}

	if ev.Amount != nil {
		if err := p.ValidateAmount(*ev.Amount); err != nil {
			uc.logger.Errorw("payment amount mismatch, marking failed",
				"provider_payment_id", p.ProviderPaymentID(),
				"expected", p.Amount().String(),
				"notified", ev.Amount.String(),
			)
			if err := p.MarkFailed(err.Error(), now); err != nil {
				return nil, err
			}
			if err := uc.paymentRepo.Update(ctx, p); err != nil {
				return nil, err
			}
			return &ReconcileResult{Outcome: OutcomeMismatch, Payment: p}, nil
		}
	}

	if err := p.MarkSucceeded(now); err != nil {
		return nil, err
	}
	if ref := ev.Metadata[paymentgateway.EventMetaTxRef]; ref != "" {
		p.RecordTxRef(ref)
	}
	if err := uc.paymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	sub, err := uc.subscriberRepo.GetByID(ctx, p.SubscriberID())
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriber: %w", err)
	}
	if sub == nil {
		return nil, fmt.Errorf("payment %s references missing subscriber %d: %w",
			p.ProviderPaymentID(), p.SubscriberID(), subscriber.ErrSubscriberNotFound)
	}

	ent, err := uc.entitlementFor(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := sub.ApplyEntitlement(ent, now); err != nil {
		if errors.Is(err, subscriber.ErrSubscriberBanned) {
			uc.logger.Warnw("payment completed for banned subscriber, entitlement not applied",
				"provider_payment_id", p.ProviderPaymentID(),
				"subscriber_id", sub.ID(),
			)
			return &ReconcileResult{Outcome: OutcomeApplied, Payment: p}, nil
		}
		return nil, err
	}
	if err := uc.subscriberRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	uc.logger.Infow("payment completed, entitlement applied",
		"provider_payment_id", p.ProviderPaymentID(),
		"subscriber_id", sub.ID(),
		"expires_at", sub.ExpiresAt(),
	)
	return &ReconcileResult{Outcome: OutcomeApplied, Payment: p, provisionFor: sub.ID()}, nil
}

// entitlementFor prefers the plan terms frozen into the payment at creation.
func (uc *ReconcilePaymentUseCase) entitlementFor(ctx context.Context, p *payment.Payment) (subscriber.Entitlement, error) {
	meta := p.Metadata()
	if days, ok := metaInt(meta[payment.MetaPlanDays]); ok && days > 0 {
		gb, _ := metaFloat(meta[payment.MetaPlanTrafficGB])
		devices, _ := metaInt(meta[payment.MetaPlanDevices])
		return subscriber.Entitlement{
			Days:           days,
			TrafficLimitGB: gb,
			DeviceLimit:    devices,
			Source:         subvo.SourcePaid,
			Stack:          uc.stack,
		}, nil
	}
	if p.PlanID() == nil {
		return subscriber.Entitlement{}, fmt.Errorf("payment %s has no plan terms", p.ProviderPaymentID())
	}
	pl, err := uc.planRepo.GetByID(ctx, *p.PlanID())
	if err != nil {
		return subscriber.Entitlement{}, err
	}
	if pl == nil {
		return subscriber.Entitlement{}, plan.ErrPlanNotFound
	}
	return pl.Entitlement(uc.stack), nil
}

// Metadata round-trips through JSON, so numbers come back as float64.
func metaFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func metaInt(v interface{}) (int, bool) {
	f, ok := metaFloat(v)
	return int(f), ok
}
