package http

import (
	"context"

	"github.com/relaygate/relaygate/internal/interfaces/http/handlers"
	adminHandlers "github.com/relaygate/relaygate/internal/interfaces/http/handlers/admin"
	"github.com/relaygate/relaygate/internal/shared/version"
)

// allHandlers holds all HTTP handler instances.
type allHandlers struct {
	webhookHandler     *handlers.WebhookHandler
	paymentHandler     *handlers.PaymentHandler
	subscriberHandler  *handlers.SubscriberHandler
	healthHandler      *handlers.HealthHandler
	entitlementHandler *adminHandlers.EntitlementHandler
	nodeHandler        *adminHandlers.NodeHandler
	planHandler        *adminHandlers.PlanHandler
}

func newHandlers(c *Container) *allHandlers {
	log := c.log
	ucs := c.ucs

	checks := map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(ctx context.Context) error {
			sqlDB, err := c.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	}
	if c.redis != nil {
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return c.redis.Ping(ctx).Err()
		})
	}

	return &allHandlers{
		webhookHandler: handlers.NewWebhookHandler(ucs.ProcessNotification, log),
		paymentHandler: handlers.NewPaymentHandler(
			ucs.CreatePayment, ucs.CheckPayment, ucs.ListPlans, c.gateways, log,
		),
		subscriberHandler: handlers.NewSubscriberHandler(
			ucs.RegisterSubscriber, ucs.GetSubscriber, ucs.GetConnection,
			ucs.CheckEligibility, ucs.GrantTrial, log,
		),
		healthHandler:      handlers.NewHealthHandler(version.String(), checks),
		entitlementHandler: adminHandlers.NewEntitlementHandler(ucs.GrantAccess, ucs.RevokeAccess, log),
		nodeHandler: adminHandlers.NewNodeHandler(
			ucs.ListNodes, ucs.CreateNode, ucs.SetNodeActive, ucs.DeleteNode, log,
		),
		planHandler: adminHandlers.NewPlanHandler(
			ucs.ListAllPlans, ucs.CreatePlan, ucs.UpdatePlan, ucs.SetPlanActive, log,
		),
	}
}
