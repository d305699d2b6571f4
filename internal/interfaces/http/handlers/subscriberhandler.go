package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	entitlementUsecases "github.com/relaygate/relaygate/internal/application/entitlement/usecases"
	trialUsecases "github.com/relaygate/relaygate/internal/application/trial/usecases"
	"github.com/relaygate/relaygate/internal/interfaces/http/handlers/common"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/utils"
)

// SubscriberHandler serves the bot-facing subscriber, trial and connection endpoints.
type SubscriberHandler struct {
	registerUC         registerSubscriberUseCase
	getSubscriberUC    getSubscriberUseCase
	getConnectionUC    getConnectionUseCase
	checkEligibilityUC checkEligibilityUseCase
	grantTrialUC       grantTrialUseCase
	logger             logger.Interface
}

func NewSubscriberHandler(
	registerUC registerSubscriberUseCase,
	getSubscriberUC getSubscriberUseCase,
	getConnectionUC getConnectionUseCase,
	checkEligibilityUC checkEligibilityUseCase,
	grantTrialUC grantTrialUseCase,
	logger logger.Interface,
) *SubscriberHandler {
	return &SubscriberHandler{
		registerUC:         registerUC,
		getSubscriberUC:    getSubscriberUC,
		getConnectionUC:    getConnectionUC,
		checkEligibilityUC: checkEligibilityUC,
		grantTrialUC:       grantTrialUC,
		logger:             logger,
	}
}

type RegisterSubscriberRequest struct {
	ExternalID int64  `json:"external_id" binding:"required,gt=0"`
	Username   string `json:"username"`
}

type GrantTrialRequest struct {
	Username string `json:"username"`
}

// RegisterSubscriber handles POST /api/v1/subscribers
//
//	@Summary		Register or refresh a subscriber
//	@Tags			subscribers
//	@Accept			json
//	@Produce		json
//	@Security		APIKey
//	@Param			request	body		RegisterSubscriberRequest	true	"Subscriber"
//	@Success		200		{object}	utils.APIResponse	"Already registered"
//	@Success		201		{object}	utils.APIResponse	"Created"
//	@Router			/api/v1/subscribers [post]
func (h *SubscriberHandler) RegisterSubscriber(c *gin.Context) {
	var req RegisterSubscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sub, created, err := h.registerUC.Execute(c.Request.Context(), entitlementUsecases.RegisterSubscriberCommand{
		ExternalID: req.ExternalID,
		Username:   req.Username,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}
	if created {
		utils.CreatedResponse(c, sub, "Subscriber registered")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", sub)
}

// GetSubscriber handles GET /api/v1/subscribers/:external_id
//
//	@Summary		Get a subscriber's entitlement
//	@Tags			subscribers
//	@Produce		json
//	@Security		APIKey
//	@Param			external_id	path		int	true	"Messenger user ID"
//	@Success		200			{object}	utils.APIResponse
//	@Failure		404			{object}	utils.APIResponse	"Subscriber not found"
//	@Router			/api/v1/subscribers/{external_id} [get]
func (h *SubscriberHandler) GetSubscriber(c *gin.Context) {
	externalID, err := utils.ParseExternalIDParam(c, "external_id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	sub, err := h.getSubscriberUC.Execute(c.Request.Context(), externalID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", sub)
}

// GetConnection handles GET /api/v1/subscribers/:external_id/connection
//
//	@Summary		Get the connection descriptor for an entitled subscriber
//	@Tags			subscribers
//	@Produce		json
//	@Security		APIKey
//	@Param			external_id	path		int	true	"Messenger user ID"
//	@Success		200			{object}	utils.APIResponse
//	@Failure		403			{object}	utils.APIResponse	"Not entitled"
//	@Failure		404			{object}	utils.APIResponse	"Subscriber not found"
//	@Failure		409			{object}	utils.APIResponse	"Provisioning pending"
//	@Failure		503			{object}	utils.APIResponse	"Node unavailable"
//	@Router			/api/v1/subscribers/{external_id}/connection [get]
func (h *SubscriberHandler) GetConnection(c *gin.Context) {
	externalID, err := utils.ParseExternalIDParam(c, "external_id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	conn, err := h.getConnectionUC.Execute(c.Request.Context(), externalID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", conn)
}

// GetTrialEligibility handles GET /api/v1/subscribers/:external_id/trial
//
//	@Summary		Check whether a subscriber may start a trial
//	@Tags			trials
//	@Produce		json
//	@Security		APIKey
//	@Param			external_id	path		int	true	"Messenger user ID"
//	@Success		200			{object}	utils.APIResponse
//	@Router			/api/v1/subscribers/{external_id}/trial [get]
func (h *SubscriberHandler) GetTrialEligibility(c *gin.Context) {
	externalID, err := utils.ParseExternalIDParam(c, "external_id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	result, err := h.checkEligibilityUC.Execute(c.Request.Context(), externalID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// GrantTrial handles POST /api/v1/subscribers/:external_id/trial
//
//	@Summary		Start a trial
//	@Tags			trials
//	@Accept			json
//	@Produce		json
//	@Security		APIKey
//	@Param			external_id	path		int					true	"Messenger user ID"
//	@Param			request		body		GrantTrialRequest	false	"Optional username"
//	@Success		200			{object}	utils.APIResponse	"Existing active trial"
//	@Success		201			{object}	utils.APIResponse	"Trial granted"
//	@Failure		403			{object}	utils.APIResponse	"Not eligible"
//	@Router			/api/v1/subscribers/{external_id}/trial [post]
func (h *SubscriberHandler) GrantTrial(c *gin.Context) {
	externalID, err := utils.ParseExternalIDParam(c, "external_id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req GrantTrialRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	result, err := h.grantTrialUC.Execute(c.Request.Context(), trialUsecases.GrantTrialCommand{
		ExternalID: externalID,
		Username:   req.Username,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if result.Created {
		h.logger.Infow("trial granted via API", "external_id", externalID, "grant_id", result.GrantID)
		utils.CreatedResponse(c, result, "Trial granted")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Trial already active", result)
}
