package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/metrics"
)

// ProcessNotificationUseCase is the webhook entry point: verify, normalize, reconcile.
type ProcessNotificationUseCase struct {
	gateways  GatewayRegistry
	reconcile *ReconcilePaymentUseCase
	logger    logger.Interface
}

func NewProcessNotificationUseCase(
	gateways GatewayRegistry,
	reconcile *ReconcilePaymentUseCase,
	logger logger.Interface,
) *ProcessNotificationUseCase {
	return &ProcessNotificationUseCase{
		gateways:  gateways,
		reconcile: reconcile,
		logger:    logger,
	}
}

// Execute returns an Outcome for every notification that should be acknowledged.
// Errors wrap ErrUnknownProvider, ErrVerificationFailed or ErrMalformedNotification
// for permanent rejections; anything else is retryable.
func (uc *ProcessNotificationUseCase) Execute(ctx context.Context, providerName string, n *paymentgateway.Notification) (Outcome, error) {
	outcome, err := uc.execute(ctx, providerName, n)
	label := string(outcome)
	if err != nil {
		label = rejectionLabel(err)
	}
	metrics.WebhookOutcomesTotal.WithLabelValues(providerName, label).Inc()
	return outcome, err
}

func (uc *ProcessNotificationUseCase) execute(ctx context.Context, providerName string, n *paymentgateway.Notification) (Outcome, error) {
	gateway, err := uc.gateways.Get(providerName)
	if err != nil {
		return "", err
	}

	ok, err := gateway.VerifyNotification(ctx, n)
	if errors.Is(err, paymentgateway.ErrMalformedNotification) {
		uc.logger.Warnw("webhook rejected: malformed payload",
			"provider", providerName,
			"error", err,
		)
		return "", err
	}
	if err != nil {
		uc.logger.Warnw("webhook verification could not complete",
			"provider", providerName,
			"remote_ip", n.RemoteIP,
			"error", err,
		)
		return "", fmt.Errorf("%w: %w", paymentgateway.ErrProviderUnavailable, err)
	}
	if !ok {
		uc.logger.Warnw("webhook rejected: verification failed",
			"provider", providerName,
			"remote_ip", n.RemoteIP,
		)
		return "", paymentgateway.ErrVerificationFailed
	}

	ev, err := gateway.NormalizeNotification(n)
	if errors.Is(err, paymentgateway.ErrProviderUnavailable) {
		uc.logger.Warnw("webhook normalization could not complete",
			"provider", providerName,
			"error", err,
		)
		return "", err
	}
	if err != nil {
		uc.logger.Warnw("webhook rejected: malformed payload",
			"provider", providerName,
			"error", err,
		)
		if !errors.Is(err, paymentgateway.ErrMalformedNotification) {
			err = fmt.Errorf("%w: %w", paymentgateway.ErrMalformedNotification, err)
		}
		return "", err
	}
	if ev == nil || ev.Status == vo.PaymentStatusPending {
		return OutcomeIgnored, nil
	}

	result, err := uc.reconcile.Execute(ctx, providerName, ev)
	if err != nil {
		uc.logger.Errorw("webhook reconciliation failed",
			"provider", providerName,
			"provider_payment_id", ev.ProviderPaymentID,
			"error", err,
		)
		return "", err
	}

	uc.logger.Infow("webhook processed",
		"provider", providerName,
		"provider_payment_id", ev.ProviderPaymentID,
		"status", ev.Status,
		"outcome", result.Outcome,
	)
	return result.Outcome, nil
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, paymentgateway.ErrUnknownProvider):
		return "unknown_provider"
	case errors.Is(err, paymentgateway.ErrVerificationFailed):
		return "unverified"
	case errors.Is(err, paymentgateway.ErrMalformedNotification):
		return "malformed"
	case errors.Is(err, paymentgateway.ErrProviderUnavailable):
		return "provider_unavailable"
	}
	return "error"
}
