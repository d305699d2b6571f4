package http

import (
	entitlementUsecases "github.com/relaygate/relaygate/internal/application/entitlement/usecases"
	nodeUsecases "github.com/relaygate/relaygate/internal/application/node/usecases"
	paymentUsecases "github.com/relaygate/relaygate/internal/application/payment/usecases"
	planUsecases "github.com/relaygate/relaygate/internal/application/plan/usecases"
	trialUsecases "github.com/relaygate/relaygate/internal/application/trial/usecases"
	"github.com/relaygate/relaygate/internal/domain/trial"
)

// UseCases holds every application use case. The HTTP handlers, the scheduler
// and the admin CLI all drive the same instances.
type UseCases struct {
	// Payment
	ReconcilePayment    *paymentUsecases.ReconcilePaymentUseCase
	ProcessNotification *paymentUsecases.ProcessNotificationUseCase
	CreatePayment       *paymentUsecases.CreatePaymentUseCase
	CheckPayment        *paymentUsecases.CheckPaymentUseCase
	SyncPendingPayments *paymentUsecases.SyncPendingPaymentsUseCase
	ListPlans           *paymentUsecases.ListPlansUseCase

	// Entitlement
	RegisterSubscriber *entitlementUsecases.RegisterSubscriberUseCase
	GetSubscriber      *entitlementUsecases.GetSubscriberUseCase
	GrantAccess        *entitlementUsecases.GrantAccessUseCase
	RevokeAccess       *entitlementUsecases.RevokeAccessUseCase
	GetConnection      *entitlementUsecases.GetConnectionUseCase
	RetryProvisioning  *entitlementUsecases.RetryProvisioningUseCase
	SyncUsage          *entitlementUsecases.SyncUsageUseCase

	// Trial
	CheckEligibility *trialUsecases.CheckEligibilityUseCase
	GrantTrial       *trialUsecases.GrantTrialUseCase
	ExpireTrials     *trialUsecases.ExpireTrialsUseCase

	// Plan administration
	ListAllPlans  *planUsecases.ListAllPlansUseCase
	CreatePlan    *planUsecases.CreatePlanUseCase
	UpdatePlan    *planUsecases.UpdatePlanUseCase
	SetPlanActive *planUsecases.SetPlanActiveUseCase

	// Node administration
	ListNodes     *nodeUsecases.ListNodesUseCase
	CreateNode    *nodeUsecases.CreateNodeUseCase
	SetNodeActive *nodeUsecases.SetNodeActiveUseCase
	DeleteNode    *nodeUsecases.DeleteNodeUseCase
}

func newUseCases(c *Container) *UseCases {
	cfg := c.cfg
	log := c.log
	r := c.repos
	stack := cfg.Entitlement.StackRenewals()

	ucs := &UseCases{}

	// Payment
	ucs.ReconcilePayment = paymentUsecases.NewReconcilePaymentUseCase(
		r.paymentRepo, r.subscriberRepo, r.planRepo, c.txMgr, c.provisioner, stack, log,
	)
	ucs.ProcessNotification = paymentUsecases.NewProcessNotificationUseCase(c.gateways, ucs.ReconcilePayment, log)
	ucs.CreatePayment = paymentUsecases.NewCreatePaymentUseCase(r.paymentRepo, r.subscriberRepo, r.planRepo, c.gateways, log)
	ucs.CheckPayment = paymentUsecases.NewCheckPaymentUseCase(r.paymentRepo, c.gateways, ucs.ReconcilePayment, log)
	ucs.SyncPendingPayments = paymentUsecases.NewSyncPendingPaymentsUseCase(
		r.paymentRepo, c.gateways, ucs.ReconcilePayment,
		cfg.Payment.SyncAfter, cfg.Payment.ExpireAfter, log,
	)
	ucs.ListPlans = paymentUsecases.NewListPlansUseCase(r.planRepo)

	// Entitlement
	ucs.RegisterSubscriber = entitlementUsecases.NewRegisterSubscriberUseCase(r.subscriberRepo, cfg.Admin.IDs, log)
	ucs.GetSubscriber = entitlementUsecases.NewGetSubscriberUseCase(r.subscriberRepo)
	ucs.GrantAccess = entitlementUsecases.NewGrantAccessUseCase(r.subscriberRepo, c.txMgr, c.provisioner, stack, log).
		WithDefaultDeviceLimit(cfg.Entitlement.DeviceLimit)
	ucs.RevokeAccess = entitlementUsecases.NewRevokeAccessUseCase(r.subscriberRepo, c.txMgr, c.provisioner, log)
	ucs.GetConnection = entitlementUsecases.NewGetConnectionUseCase(r.subscriberRepo, c.provisioner, log)
	ucs.RetryProvisioning = entitlementUsecases.NewRetryProvisioningUseCase(
		r.subscriberRepo, c.provisioner,
		cfg.Provisioning.MaxAttempts, cfg.Provisioning.BaseDelay, log,
	)
	ucs.SyncUsage = entitlementUsecases.NewSyncUsageUseCase(r.subscriberRepo, c.provisioner, log)

	// Trial
	policy := trial.Policy(cfg.Trial.Policy)
	settings := trialUsecases.Settings{
		DurationDays: cfg.Trial.DurationDays,
		TrafficGB:    cfg.Trial.TrafficGB,
	}
	ucs.CheckEligibility = trialUsecases.NewCheckEligibilityUseCase(r.subscriberRepo, r.trialRepo, policy, settings, log)
	ucs.GrantTrial = trialUsecases.NewGrantTrialUseCase(r.subscriberRepo, r.trialRepo, c.txMgr, c.provisioner, policy, settings, log)
	ucs.ExpireTrials = trialUsecases.NewExpireTrialsUseCase(r.trialRepo, log)

	// Plan administration
	ucs.ListAllPlans = planUsecases.NewListAllPlansUseCase(r.planRepo)
	ucs.CreatePlan = planUsecases.NewCreatePlanUseCase(r.planRepo, log)
	ucs.UpdatePlan = planUsecases.NewUpdatePlanUseCase(r.planRepo, r.paymentRepo, c.txMgr, log)
	ucs.SetPlanActive = planUsecases.NewSetPlanActiveUseCase(r.planRepo, log)

	// Node administration
	ucs.ListNodes = nodeUsecases.NewListNodesUseCase(c.nodeRegistry, c.loadCache, r.subscriberRepo, log)
	ucs.CreateNode = nodeUsecases.NewCreateNodeUseCase(r.nodeRepo, c.nodeRegistry, c.loadCache, log)
	ucs.SetNodeActive = nodeUsecases.NewSetNodeActiveUseCase(r.nodeRepo, c.loadCache, log)
	ucs.DeleteNode = nodeUsecases.NewDeleteNodeUseCase(r.nodeRepo, r.subscriberRepo, c.loadCache, log)

	return ucs
}
