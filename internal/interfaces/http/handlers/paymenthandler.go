package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	paymentUsecases "github.com/relaygate/relaygate/internal/application/payment/usecases"
	"github.com/relaygate/relaygate/internal/interfaces/http/handlers/common"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/utils"
)

type PaymentHandler struct {
	createPaymentUC createPaymentUseCase
	checkPaymentUC  checkPaymentUseCase
	listPlansUC     listPlansUseCase
	providers       providerLister
	logger          logger.Interface
}

func NewPaymentHandler(
	createPaymentUC createPaymentUseCase,
	checkPaymentUC checkPaymentUseCase,
	listPlansUC listPlansUseCase,
	providers providerLister,
	logger logger.Interface,
) *PaymentHandler {
	return &PaymentHandler{
		createPaymentUC: createPaymentUC,
		checkPaymentUC:  checkPaymentUC,
		listPlansUC:     listPlansUC,
		providers:       providers,
		logger:          logger,
	}
}

type CreatePaymentRequest struct {
	ExternalID int64  `json:"external_id" binding:"required,gt=0"`
	Username   string `json:"username"`
	PlanID     uint   `json:"plan_id" binding:"required,gt=0"`
	Provider   string `json:"provider" binding:"required"`
}

// PaymentStatusResponse is the body of the public status check.
type PaymentStatusResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

// CreatePayment handles POST /api/v1/payments
//
//	@Summary		Create a payment for a plan
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Security		APIKey
//	@Param			request	body		CreatePaymentRequest	true	"Payment request"
//	@Success		201		{object}	utils.APIResponse
//	@Failure		400		{object}	utils.APIResponse	"Bad request"
//	@Failure		403		{object}	utils.APIResponse	"Subscriber banned"
//	@Failure		404		{object}	utils.APIResponse	"Plan or provider not found"
//	@Failure		503		{object}	utils.APIResponse	"Provider unavailable"
//	@Router			/api/v1/payments [post]
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for create payment", "error", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.createPaymentUC.Execute(c.Request.Context(), paymentUsecases.CreatePaymentCommand{
		ExternalID: req.ExternalID,
		Username:   req.Username,
		PlanID:     req.PlanID,
		Provider:   req.Provider,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	utils.CreatedResponse(c, result, "Payment created")
}

// CheckPayment handles GET /payment/check/:payment_id
//
//	@Summary		Check a payment's status
//	@Tags			payments
//	@Produce		json
//	@Param			payment_id	path		string	true	"Provider payment ID"
//	@Success		200			{object}	PaymentStatusResponse
//	@Failure		404			{object}	utils.APIResponse	"Payment not found"
//	@Router			/payment/check/{payment_id} [get]
func (h *PaymentHandler) CheckPayment(c *gin.Context) {
	paymentID := c.Param("payment_id")
	if paymentID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "payment_id is required")
		return
	}

	p, err := h.checkPaymentUC.Execute(c.Request.Context(), paymentID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, PaymentStatusResponse{
		PaymentID: p.PaymentID,
		Status:    p.Status,
		Amount:    p.Amount,
		Currency:  p.Currency,
	})
}

// ListPlans handles GET /api/v1/plans
//
//	@Summary		List purchasable plans
//	@Tags			plans
//	@Produce		json
//	@Security		APIKey
//	@Success		200	{object}	utils.APIResponse
//	@Router			/api/v1/plans [get]
func (h *PaymentHandler) ListPlans(c *gin.Context) {
	plans, err := h.listPlansUC.Execute(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}
	utils.ListSuccessResponse(c, plans, len(plans))
}

// ListProviders handles GET /api/v1/payment/providers
//
//	@Summary		List enabled payment providers
//	@Tags			payments
//	@Produce		json
//	@Security		APIKey
//	@Success		200	{object}	utils.APIResponse
//	@Router			/api/v1/payment/providers [get]
func (h *PaymentHandler) ListProviders(c *gin.Context) {
	names := h.providers.Names()
	utils.ListSuccessResponse(c, names, len(names))
}
