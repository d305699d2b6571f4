package http

import (
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/relaygate/relaygate/docs"
	"github.com/relaygate/relaygate/internal/interfaces/http/middleware"
	"github.com/relaygate/relaygate/internal/interfaces/http/routes"
	"github.com/relaygate/relaygate/internal/shared/metrics"
)

// SetupRoutes configures all HTTP routes.
func (c *Container) SetupRoutes() {
	c.engine.Use(middleware.Logger(c.log))
	c.engine.Use(middleware.Recovery(c.log))
	c.engine.Use(middleware.ErrorHandler(c.log))
	c.engine.Use(middleware.SecurityHeaders())
	c.engine.Use(middleware.CORS(c.cfg.Server.AllowedOrigins))
	c.engine.Use(metrics.Middleware())

	c.engine.GET("/health", c.hdlrs.healthHandler.HealthCheck)
	c.engine.GET("/metrics", metrics.Handler())
	c.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupPaymentRoutes(c.engine, &routes.PaymentRouteConfig{
		WebhookHandler:   c.hdlrs.webhookHandler,
		PaymentHandler:   c.hdlrs.paymentHandler,
		APIKeyMiddleware: c.apiKeyMiddleware,
		RateLimiter:      c.rateLimiter,
	})

	routes.SetupSubscriberRoutes(c.engine, &routes.SubscriberRouteConfig{
		SubscriberHandler: c.hdlrs.subscriberHandler,
		APIKeyMiddleware:  c.apiKeyMiddleware,
		RateLimiter:       c.rateLimiter,
	})

	routes.SetupAdminRoutes(c.engine, &routes.AdminRouteConfig{
		EntitlementHandler: c.hdlrs.entitlementHandler,
		NodeHandler:        c.hdlrs.nodeHandler,
		PlanHandler:        c.hdlrs.planHandler,
		APIKeyMiddleware:   c.apiKeyMiddleware,
	})
}
