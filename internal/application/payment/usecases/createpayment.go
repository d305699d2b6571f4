package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	"github.com/relaygate/relaygate/internal/domain/payment"
	"github.com/relaygate/relaygate/internal/domain/plan"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	subvo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/metrics"
)

const paymentUnavailableMessage = "payment could not be created, please try again"

type CreatePaymentCommand struct {
	ExternalID int64
	Username   string
	PlanID     uint
	Provider   string
}

type CreatePaymentResult struct {
	PaymentID         string `json:"payment_id"`
	Provider          string `json:"provider"`
	Status            string `json:"status"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	RedirectOrInvoice string `json:"redirect_or_invoice"`
}

type CreatePaymentUseCase struct {
	paymentRepo    payment.PaymentRepository
	subscriberRepo subscriber.Repository
	planRepo       plan.Repository
	gateways       GatewayRegistry
	now            biztime.Clock
	logger         logger.Interface
}

func NewCreatePaymentUseCase(
	paymentRepo payment.PaymentRepository,
	subscriberRepo subscriber.Repository,
	planRepo plan.Repository,
	gateways GatewayRegistry,
	logger logger.Interface,
) *CreatePaymentUseCase {
	return &CreatePaymentUseCase{
		paymentRepo:    paymentRepo,
		subscriberRepo: subscriberRepo,
		planRepo:       planRepo,
		gateways:       gateways,
		now:            biztime.SystemClock,
		logger:         logger,
	}
}

func (uc *CreatePaymentUseCase) Execute(ctx context.Context, cmd CreatePaymentCommand) (*CreatePaymentResult, error) {
	result, err := uc.execute(ctx, cmd)
	label := "success"
	if err != nil {
		label = "failure"
	}
	metrics.PaymentsCreatedTotal.WithLabelValues(cmd.Provider, label).Inc()
	return result, err
}

func (uc *CreatePaymentUseCase) execute(ctx context.Context, cmd CreatePaymentCommand) (*CreatePaymentResult, error) {
	gateway, err := uc.gateways.Get(cmd.Provider)
	if err != nil {
		return nil, apperrors.NewNotFoundError("payment provider not available", cmd.Provider)
	}

	pl, err := uc.planRepo.GetByID(ctx, cmd.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if pl == nil {
		return nil, apperrors.NewNotFoundError("plan not found")
	}
	if !pl.IsActive() {
		return nil, apperrors.NewValidationError("plan is not available for purchase")
	}

	sub, err := uc.subscriber(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if sub.Role() == subvo.RoleBanned {
		return nil, apperrors.NewForbiddenError("access has been revoked")
	}

	resp, err := gateway.CreatePayment(ctx, paymentgateway.CreatePaymentRequest{
		Amount:       pl.Price(),
		Description:  pl.Name(),
		SubscriberID: sub.ExternalID(),
		Metadata: map[string]string{
			"subscriber_id": strconv.FormatInt(sub.ExternalID(), 10),
			"plan_id":       strconv.FormatUint(uint64(pl.ID()), 10),
		},
	})
	if err != nil {
		uc.logger.Errorw("payment provider failed to create payment",
			"provider", cmd.Provider,
			"external_id", cmd.ExternalID,
			"plan_id", cmd.PlanID,
			"error", err,
		)
		return nil, apperrors.NewUnavailableError(paymentUnavailableMessage)
	}

	planID := pl.ID()
	p, err := payment.NewPayment(payment.NewPaymentParams{
		ProviderPaymentID: resp.ProviderPaymentID,
		Provider:          gateway.Name(),
		SubscriberID:      sub.ID(),
		PlanID:            &planID,
		Amount:            pl.Price(),
		Description:       pl.Name(),
		Status:            resp.Status,
		ConfirmationURL:   resp.RedirectOrInvoice,
		Metadata: map[string]interface{}{
			payment.MetaPlanName:      pl.Name(),
			payment.MetaPlanDays:      pl.DurationDays(),
			payment.MetaPlanTrafficGB: pl.TrafficLimitGB(),
			payment.MetaPlanDevices:   pl.DeviceLimit(),
		},
	}, uc.now())
	if err != nil {
		return nil, fmt.Errorf("invalid payment from provider %s: %w", cmd.Provider, err)
	}
	if err := uc.paymentRepo.Create(ctx, p); err != nil {
		if errors.Is(err, payment.ErrDuplicatePayment) {
			return nil, apperrors.NewConflictError("payment id already recorded", resp.ProviderPaymentID)
		}
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	uc.logger.Infow("payment created",
		"provider", gateway.Name(),
		"provider_payment_id", p.ProviderPaymentID(),
		"subscriber_id", sub.ID(),
		"plan_id", pl.ID(),
		"amount", p.Amount().String(),
	)

	return &CreatePaymentResult{
		PaymentID:         p.ProviderPaymentID(),
		Provider:          p.Provider(),
		Status:            p.Status().String(),
		Amount:            p.Amount().Decimal(),
		Currency:          p.Amount().Currency(),
		RedirectOrInvoice: resp.RedirectOrInvoice,
	}, nil
}

// subscriber registers unknown users on their first purchase.
func (uc *CreatePaymentUseCase) subscriber(ctx context.Context, cmd CreatePaymentCommand) (*subscriber.Subscriber, error) {
	sub, err := uc.subscriberRepo.GetByExternalID(ctx, cmd.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriber: %w", err)
	}
	if sub != nil {
		return sub, nil
	}
	sub, err = subscriber.NewSubscriber(cmd.ExternalID, cmd.Username, uc.now())
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := uc.subscriberRepo.Create(ctx, sub); err != nil {
		if errors.Is(err, subscriber.ErrSubscriberExists) {
			return uc.subscriberRepo.GetByExternalID(ctx, cmd.ExternalID)
		}
		return nil, fmt.Errorf("failed to register subscriber: %w", err)
	}
	return sub, nil
}
