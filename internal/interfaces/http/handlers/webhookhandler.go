package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/utils"
)

// maxWebhookBody bounds what a provider may post.
const maxWebhookBody = 1 << 20

const maxLoggedBody = 512

// WebhookHandler accepts provider notifications. Any 2xx tells the provider to stop
// redelivering, so only fully handled notifications get one.
type WebhookHandler struct {
	processNotificationUC processNotificationUseCase
	logger                logger.Interface
}

func NewWebhookHandler(processNotificationUC processNotificationUseCase, logger logger.Interface) *WebhookHandler {
	return &WebhookHandler{
		processNotificationUC: processNotificationUC,
		logger:                logger,
	}
}

// HandleWebhook handles POST /webhook/:provider
//
//	@Summary		Receive a payment provider notification
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			provider	path		string	true	"Provider name"
//	@Success		200			{object}	map[string]string
//	@Failure		400			{object}	utils.APIResponse	"Malformed notification"
//	@Failure		401			{object}	utils.APIResponse	"Verification failed"
//	@Failure		404			{object}	utils.APIResponse	"Unknown provider"
//	@Failure		503			{object}	utils.APIResponse	"Provider unavailable"
//	@Router			/webhook/{provider} [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider := c.Param("provider")

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warnw("failed to read webhook body", "provider", provider, "error", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "unreadable request body")
		return
	}

	n := &paymentgateway.Notification{
		Body:     body,
		Headers:  c.Request.Header.Clone(),
		RemoteIP: c.ClientIP(),
	}

	outcome, err := h.processNotificationUC.Execute(c.Request.Context(), provider, n)
	if err != nil {
		status, message := webhookErrorStatus(err)
		switch {
		case status >= http.StatusInternalServerError:
			h.logger.Errorw("webhook processing failed", "provider", provider, "error", err)
		case status == http.StatusBadRequest:
			h.logger.Warnw("rejected malformed webhook",
				"provider", provider,
				"error", err,
				"body", utils.TruncateForLog(string(body), maxLoggedBody),
			)
		}
		utils.ErrorResponse(c, status, message)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "outcome": outcome})
}

func webhookErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, paymentgateway.ErrUnknownProvider):
		return http.StatusNotFound, "unknown payment provider"
	case errors.Is(err, paymentgateway.ErrVerificationFailed):
		return http.StatusUnauthorized, "notification verification failed"
	case errors.Is(err, paymentgateway.ErrMalformedNotification):
		return http.StatusBadRequest, "malformed notification"
	case errors.Is(err, paymentgateway.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "payment provider unavailable, retry later"
	}
	return http.StatusInternalServerError, "notification could not be processed, retry later"
}
