package handlers

import (
	"context"

	entdto "github.com/relaygate/relaygate/internal/application/entitlement/dto"
	entitlementUsecases "github.com/relaygate/relaygate/internal/application/entitlement/usecases"
	paymentdto "github.com/relaygate/relaygate/internal/application/payment/dto"
	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	paymentUsecases "github.com/relaygate/relaygate/internal/application/payment/usecases"
	plandto "github.com/relaygate/relaygate/internal/application/plan/dto"
	trialUsecases "github.com/relaygate/relaygate/internal/application/trial/usecases"
)

// Use case interfaces for the public handlers

type processNotificationUseCase interface {
	Execute(ctx context.Context, provider string, n *paymentgateway.Notification) (paymentUsecases.Outcome, error)
}

type createPaymentUseCase interface {
	Execute(ctx context.Context, cmd paymentUsecases.CreatePaymentCommand) (*paymentUsecases.CreatePaymentResult, error)
}

type checkPaymentUseCase interface {
	Execute(ctx context.Context, providerPaymentID string) (*paymentdto.PaymentDTO, error)
}

type listPlansUseCase interface {
	Execute(ctx context.Context) ([]plandto.PlanDTO, error)
}

type providerLister interface {
	Names() []string
}

type registerSubscriberUseCase interface {
	Execute(ctx context.Context, cmd entitlementUsecases.RegisterSubscriberCommand) (*entdto.SubscriberDTO, bool, error)
}

type getSubscriberUseCase interface {
	Execute(ctx context.Context, externalID int64) (*entdto.SubscriberDTO, error)
}

type getConnectionUseCase interface {
	Execute(ctx context.Context, externalID int64) (*entdto.ConnectionDTO, error)
}

type checkEligibilityUseCase interface {
	Execute(ctx context.Context, externalID int64) (*trialUsecases.EligibilityResult, error)
}

type grantTrialUseCase interface {
	Execute(ctx context.Context, cmd trialUsecases.GrantTrialCommand) (*trialUsecases.GrantTrialResult, error)
}
