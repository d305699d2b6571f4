package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	planUsecases "github.com/relaygate/relaygate/internal/application/plan/usecases"
	"github.com/relaygate/relaygate/internal/interfaces/http/handlers/common"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/utils"
)

type PlanHandler struct {
	listUC      listAllPlansUseCase
	createUC    createPlanUseCase
	updateUC    updatePlanUseCase
	setActiveUC setPlanActiveUseCase
	logger      logger.Interface
}

func NewPlanHandler(
	listUC listAllPlansUseCase,
	createUC createPlanUseCase,
	updateUC updatePlanUseCase,
	setActiveUC setPlanActiveUseCase,
	logger logger.Interface,
) *PlanHandler {
	return &PlanHandler{
		listUC:      listUC,
		createUC:    createUC,
		updateUC:    updateUC,
		setActiveUC: setActiveUC,
		logger:      logger,
	}
}

// ListPlans handles GET /api/v1/admin/plans
//
//	@Summary		List all plans including inactive ones
//	@Tags			admin-plans
//	@Produce		json
//	@Security		APIKey
//	@Success		200	{object}	utils.APIResponse
//	@Router			/api/v1/admin/plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans, err := h.listUC.Execute(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}
	utils.ListSuccessResponse(c, plans, len(plans))
}

// CreatePlan handles POST /api/v1/admin/plans
//
//	@Summary		Create a plan
//	@Tags			admin-plans
//	@Accept			json
//	@Produce		json
//	@Security		APIKey
//	@Param			request	body		planUsecases.PlanTermsInput	true	"Plan terms"
//	@Success		201		{object}	utils.APIResponse
//	@Failure		400		{object}	utils.APIResponse	"Bad request"
//	@Router			/api/v1/admin/plans [post]
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var in planUsecases.PlanTermsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	out, err := h.createUC.Execute(c.Request.Context(), in)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	utils.CreatedResponse(c, out, "Plan created")
}

// UpdatePlan handles PUT /api/v1/admin/plans/:id
//
//	@Summary		Change a plan's terms
//	@Description	Refused once any payment references the plan.
//	@Tags			admin-plans
//	@Accept			json
//	@Produce		json
//	@Security		APIKey
//	@Param			id		path		int							true	"Plan ID"
//	@Param			request	body		planUsecases.PlanTermsInput	true	"Plan terms"
//	@Success		200		{object}	utils.APIResponse
//	@Failure		409		{object}	utils.APIResponse	"Plan referenced by payments"
//	@Router			/api/v1/admin/plans/{id} [put]
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	planID, err := parsePlanID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var in planUsecases.PlanTermsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	out, err := h.updateUC.Execute(c.Request.Context(), planID, in)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Plan updated", out)
}

// ActivatePlan handles POST /api/v1/admin/plans/:id/activate
//
//	@Summary		Offer a plan for purchase
//	@Tags			admin-plans
//	@Produce		json
//	@Security		APIKey
//	@Param			id	path		int	true	"Plan ID"
//	@Success		200	{object}	utils.APIResponse
//	@Router			/api/v1/admin/plans/{id}/activate [post]
func (h *PlanHandler) ActivatePlan(c *gin.Context) {
	h.setActive(c, true)
}

// DeactivatePlan handles POST /api/v1/admin/plans/:id/deactivate
//
//	@Summary		Withdraw a plan from sale
//	@Tags			admin-plans
//	@Produce		json
//	@Security		APIKey
//	@Param			id	path		int	true	"Plan ID"
//	@Success		200	{object}	utils.APIResponse
//	@Router			/api/v1/admin/plans/{id}/deactivate [post]
func (h *PlanHandler) DeactivatePlan(c *gin.Context) {
	h.setActive(c, false)
}

func (h *PlanHandler) setActive(c *gin.Context, active bool) {
	planID, err := parsePlanID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	out, err := h.setActiveUC.Execute(c.Request.Context(), planID, active)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", out)
}

func parsePlanID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, apperrors.NewValidationError("invalid plan id")
	}
	return uint(id), nil
}
