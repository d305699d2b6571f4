package routes

import (
	"github.com/gin-gonic/gin"

	adminHandlers "github.com/relaygate/relaygate/internal/interfaces/http/handlers/admin"
	"github.com/relaygate/relaygate/internal/interfaces/http/middleware"
)

// AdminRouteConfig holds dependencies for admin routes.
type AdminRouteConfig struct {
	EntitlementHandler *adminHandlers.EntitlementHandler
	NodeHandler        *adminHandlers.NodeHandler
	PlanHandler        *adminHandlers.PlanHandler
	APIKeyMiddleware   *middleware.APIKeyMiddleware
}

// SetupAdminRoutes configures admin routes.
func SetupAdminRoutes(engine *gin.Engine, cfg *AdminRouteConfig) {
	admin := engine.Group("/api/v1/admin")
	admin.Use(cfg.APIKeyMiddleware.RequireAPIKey())

	// Admin subscriber routes
	subscribers := admin.Group("/subscribers")
	{
		subscribers.POST("/:external_id/grant", cfg.EntitlementHandler.Grant)
		subscribers.POST("/:external_id/revoke", cfg.EntitlementHandler.Revoke)
	}

	// Admin node routes
	nodes := admin.Group("/nodes")
	{
		nodes.GET("", cfg.NodeHandler.ListNodes)
		nodes.POST("", cfg.NodeHandler.CreateNode)
		nodes.POST("/:node_id/activate", cfg.NodeHandler.ActivateNode)
		nodes.POST("/:node_id/deactivate", cfg.NodeHandler.DeactivateNode)
		nodes.DELETE("/:node_id", cfg.NodeHandler.DeleteNode)
	}

	// Admin plan routes
	plans := admin.Group("/plans")
	{
		plans.GET("", cfg.PlanHandler.ListPlans)
		plans.POST("", cfg.PlanHandler.CreatePlan)
		plans.PUT("/:id", cfg.PlanHandler.UpdatePlan)
		plans.POST("/:id/activate", cfg.PlanHandler.ActivatePlan)
		plans.POST("/:id/deactivate", cfg.PlanHandler.DeactivatePlan)
	}
}
