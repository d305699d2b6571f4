package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	entitlementUsecases "github.com/relaygate/relaygate/internal/application/entitlement/usecases"
	"github.com/relaygate/relaygate/internal/interfaces/http/handlers/common"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/utils"
)

// EntitlementHandler grants and revokes access outside the payment flow.
type EntitlementHandler struct {
	grantUC  grantAccessUseCase
	revokeUC revokeAccessUseCase
	logger   logger.Interface
}

func NewEntitlementHandler(grantUC grantAccessUseCase, revokeUC revokeAccessUseCase, logger logger.Interface) *EntitlementHandler {
	return &EntitlementHandler{
		grantUC:  grantUC,
		revokeUC: revokeUC,
		logger:   logger,
	}
}

// GrantAccessRequest sets the new entitlement. Zero traffic means unlimited; zero
// device limit keeps the configured default.
type GrantAccessRequest struct {
	Days        int     `json:"days" binding:"required,gt=0"`
	TrafficGB   float64 `json:"traffic_gb" binding:"gte=0"`
	DeviceLimit int     `json:"device_limit" binding:"gte=0"`
}

// Grant handles POST /api/v1/admin/subscribers/:external_id/grant
//
//	@Summary		Grant access manually
//	@Tags			admin-subscribers
//	@Accept			json
//	@Produce		json
//	@Security		APIKey
//	@Param			external_id	path		int					true	"Messenger user ID"
//	@Param			request		body		GrantAccessRequest	true	"Entitlement"
//	@Success		200			{object}	utils.APIResponse
//	@Failure		400			{object}	utils.APIResponse	"Bad request"
//	@Router			/api/v1/admin/subscribers/{external_id}/grant [post]
func (h *EntitlementHandler) Grant(c *gin.Context) {
	externalID, err := utils.ParseExternalIDParam(c, "external_id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req GrantAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.grantUC.Execute(c.Request.Context(), entitlementUsecases.GrantAccessCommand{
		ExternalID:  externalID,
		Days:        req.Days,
		TrafficGB:   req.TrafficGB,
		DeviceLimit: req.DeviceLimit,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	h.logger.Infow("access granted by admin",
		"external_id", externalID,
		"days", req.Days,
		"provisioning_pending", result.ProvisioningPending,
	)
	utils.SuccessResponse(c, http.StatusOK, "Access granted", result)
}

// Revoke handles POST /api/v1/admin/subscribers/:external_id/revoke
//
//	@Summary		Revoke access and ban the subscriber
//	@Tags			admin-subscribers
//	@Produce		json
//	@Security		APIKey
//	@Param			external_id	path		int	true	"Messenger user ID"
//	@Success		200			{object}	utils.APIResponse
//	@Failure		404			{object}	utils.APIResponse	"Subscriber not found"
//	@Router			/api/v1/admin/subscribers/{external_id}/revoke [post]
func (h *EntitlementHandler) Revoke(c *gin.Context) {
	externalID, err := utils.ParseExternalIDParam(c, "external_id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	result, err := h.revokeUC.Execute(c.Request.Context(), externalID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	h.logger.Infow("access revoked by admin",
		"external_id", externalID,
		"deprovision_pending", result.DeprovisionPending,
	)
	utils.SuccessResponse(c, http.StatusOK, "Access revoked", result)
}
