package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/relaygate/relaygate/internal/interfaces/http/handlers"
	"github.com/relaygate/relaygate/internal/interfaces/http/middleware"
)

// PaymentRouteConfig holds dependencies for webhook and payment routes.
type PaymentRouteConfig struct {
	WebhookHandler   *handlers.WebhookHandler
	PaymentHandler   *handlers.PaymentHandler
	APIKeyMiddleware *middleware.APIKeyMiddleware
	RateLimiter      *middleware.RateLimiter // may be nil
}

// SetupPaymentRoutes configures provider webhooks, the public status check and the bot payment API.
func SetupPaymentRoutes(engine *gin.Engine, cfg *PaymentRouteConfig) {
	// Providers authenticate with their own signatures, not the API key.
	engine.POST("/webhook/:provider", cfg.RateLimiter.Limit(middleware.ByClientIP), cfg.WebhookHandler.HandleWebhook)
	engine.GET("/payment/check/:payment_id", cfg.PaymentHandler.CheckPayment)

	api := engine.Group("/api/v1")
	api.Use(cfg.APIKeyMiddleware.RequireAPIKey())
	{
		api.POST("/payments", cfg.PaymentHandler.CreatePayment)
		api.GET("/plans", cfg.PaymentHandler.ListPlans)
		api.GET("/payment/providers", cfg.PaymentHandler.ListProviders)
	}
}
