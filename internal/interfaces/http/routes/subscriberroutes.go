package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/relaygate/relaygate/internal/interfaces/http/handlers"
	"github.com/relaygate/relaygate/internal/interfaces/http/middleware"
)

// SubscriberRouteConfig holds dependencies for the bot-facing subscriber routes.
type SubscriberRouteConfig struct {
	SubscriberHandler *handlers.SubscriberHandler
	APIKeyMiddleware  *middleware.APIKeyMiddleware
	RateLimiter       *middleware.RateLimiter // may be nil
}

// SetupSubscriberRoutes configures subscriber, trial and connection routes.
func SetupSubscriberRoutes(engine *gin.Engine, cfg *SubscriberRouteConfig) {
	subscribers := engine.Group("/api/v1/subscribers")
	subscribers.Use(cfg.APIKeyMiddleware.RequireAPIKey())
	{
		subscribers.POST("", cfg.SubscriberHandler.RegisterSubscriber)
		subscribers.GET("/:external_id", cfg.SubscriberHandler.GetSubscriber)
		subscribers.GET("/:external_id/connection", cfg.SubscriberHandler.GetConnection)

		trial := subscribers.Group("/:external_id/trial")
		trial.Use(cfg.RateLimiter.Limit(middleware.ByExternalID("external_id")))
		{
			trial.GET("", cfg.SubscriberHandler.GetTrialEligibility)
			trial.POST("", cfg.SubscriberHandler.GrantTrial)
		}
	}
}
