package payment

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/shared/config"
	"github.com/relaygate/relaygate/internal/shared/id"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

const (
	TelegramName = "telegram"

	telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	invoiceIDLength      = 10
)

type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		SuccessfulPayment *telegramSuccessfulPayment `json:"successful_payment"`
	} `json:"message"`
}

type telegramSuccessfulPayment struct {
	Currency                string `json:"currency"`
	TotalAmount             int64  `json:"total_amount"`
	InvoicePayload          string `json:"invoice_payload"`
	TelegramPaymentChargeID string `json:"telegram_payment_charge_id"`
	ProviderPaymentChargeID string `json:"provider_payment_charge_id"`
}

// TelegramGateway mints invoice payloads for in-chat payments and accepts the
// bot's forwarded successful_payment updates. The backend has no status API.
type TelegramGateway struct {
	secretToken string
	logger      logger.Interface
}

var _ paymentgateway.PaymentGateway = (*TelegramGateway)(nil)

func NewTelegramGateway(cfg config.TelegramPaymentConfig, logger logger.Interface) *TelegramGateway {
	return &TelegramGateway{
		secretToken: strings.TrimSpace(cfg.SecretToken),
		logger:      logger,
	}
}

func (g *TelegramGateway) Name() string {
	return TelegramName
}

// CanVerify reports whether a webhook secret token is configured.
func (g *TelegramGateway) CanVerify() bool {
	return g.secretToken != ""
}

func (g *TelegramGateway) CreatePayment(ctx context.Context, req paymentgateway.CreatePaymentRequest) (*paymentgateway.CreatePaymentResponse, error) {
	short, err := id.Generate(invoiceIDLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentgateway.ErrProviderUnavailable, err)
	}
	payload := fmt.Sprintf("%s_%d_%s", id.PrefixTelegramInvoice, req.SubscriberID, short)
	return &paymentgateway.CreatePaymentResponse{
		ProviderPaymentID: payload,
		Status:            vo.PaymentStatusPending,
		RedirectOrInvoice: payload,
	}, nil
}

func (g *TelegramGateway) GetStatus(ctx context.Context, providerPaymentID string) (vo.PaymentStatus, error) {
	if !validInvoicePayload(providerPaymentID) {
		return vo.PaymentStatusFailed, nil
	}
	return vo.PaymentStatusPending, nil
}

// validInvoicePayload reports whether s looks like tg_<subscriber>_<shortid>.
func validInvoicePayload(s string) bool {
	prefix, rest, err := id.ParsePrefixedID(s)
	if err != nil || prefix != id.PrefixTelegramInvoice {
		return false
	}
	subscriberPart, short, ok := strings.Cut(rest, "_")
	if !ok {
		return false
	}
	if n, err := strconv.ParseInt(subscriberPart, 10, 64); err != nil || n <= 0 {
		return false
	}
	return id.IsShortID(short)
}

func (g *TelegramGateway) VerifyNotification(ctx context.Context, n *paymentgateway.Notification) (bool, error) {
	if !g.CanVerify() {
		return false, nil
	}
	got := n.Headers.Get(telegramSecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(g.secretToken)) == 1, nil
}

func (g *TelegramGateway) NormalizeNotification(n *paymentgateway.Notification) (*paymentgateway.Event, error) {
	var update telegramUpdate
	if err := json.Unmarshal(n.Body, &update); err != nil {
		return nil, fmt.Errorf("%w: %v", paymentgateway.ErrMalformedNotification, err)
	}
	if update.Message == nil || update.Message.SuccessfulPayment == nil {
		return nil, nil
	}
	sp := update.Message.SuccessfulPayment
	if !validInvoicePayload(sp.InvoicePayload) {
		return nil, fmt.Errorf("%w: invalid invoice payload %q", paymentgateway.ErrMalformedNotification, sp.InvoicePayload)
	}

	ev := &paymentgateway.Event{
		ProviderPaymentID: sp.InvoicePayload,
		Status:            vo.PaymentStatusSuccess,
		Metadata:          map[string]string{paymentgateway.EventMetaTxRef: sp.TelegramPaymentChargeID},
	}
	if sp.TotalAmount > 0 && sp.Currency != "" {
		amount := vo.NewMoney(sp.TotalAmount, sp.Currency)
		ev.Amount = &amount
	}
	return ev, nil
}
