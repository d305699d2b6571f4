package usecases

import (
	"context"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/payment/dto"
	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	"github.com/relaygate/relaygate/internal/domain/payment"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// CheckPaymentUseCase reports a payment's status. Open payments are re-checked with
// the provider and a settled answer is reconciled like a webhook delivery.
type CheckPaymentUseCase struct {
	paymentRepo payment.PaymentRepository
	gateways    GatewayRegistry
	reconcile   *ReconcilePaymentUseCase
	logger      logger.Interface
}

func NewCheckPaymentUseCase(
	paymentRepo payment.PaymentRepository,
	gateways GatewayRegistry,
	reconcile *ReconcilePaymentUseCase,
	logger logger.Interface,
) *CheckPaymentUseCase {
	return &CheckPaymentUseCase{
		paymentRepo: paymentRepo,
		gateways:    gateways,
		reconcile:   reconcile,
		logger:      logger,
	}
}

func (uc *CheckPaymentUseCase) Execute(ctx context.Context, providerPaymentID string) (*dto.PaymentDTO, error) {
	p, err := uc.paymentRepo.GetByProviderPaymentID(ctx, providerPaymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if p == nil {
		return nil, apperrors.NewNotFoundError("payment not found")
	}
	if !p.Status().IsOpen() {
		return dto.ToPaymentDTO(p), nil
	}

	gateway, err := uc.gateways.Get(p.Provider())
	if err != nil {
		uc.logger.Warnw("payment provider no longer registered", "provider", p.Provider())
		return dto.ToPaymentDTO(p), nil
	}
	status, err := gateway.GetStatus(ctx, providerPaymentID)
	if err != nil {
		uc.logger.Warnw("provider status check failed, returning stored status",
			"provider_payment_id", providerPaymentID,
			"error", err,
		)
		return dto.ToPaymentDTO(p), nil
	}
	if status == p.Status() || status == vo.PaymentStatusPending {
		return dto.ToPaymentDTO(p), nil
	}

	// Polled statuses carry no amount; the stored one is authoritative.
	result, err := uc.reconcile.Execute(ctx, p.Provider(), &paymentgateway.Event{
		ProviderPaymentID: providerPaymentID,
		Status:            status,
	})
	if err != nil {
		return nil, err
	}
	if result.Payment != nil {
		return dto.ToPaymentDTO(result.Payment), nil
	}
	return dto.ToPaymentDTO(p), nil
}
