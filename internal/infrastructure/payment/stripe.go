package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	stripelib "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/shared/config"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

const (
	StripeName = "stripe"

	stripeSignatureHeader = "Stripe-Signature"
)

// stripeSessions is the slice of the Checkout Sessions API the gateway uses.
type stripeSessions struct {
	create       func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
	get          func(id string, params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
	findByIntent func(ctx context.Context, paymentIntentID string) (string, error)
}

func liveStripeSessions() stripeSessions {
	return stripeSessions{
		create: stripesession.New,
		get:    stripesession.Get,
		findByIntent: func(ctx context.Context, paymentIntentID string) (string, error) {
			params := &stripelib.CheckoutSessionListParams{PaymentIntent: stripelib.String(paymentIntentID)}
			params.Context = ctx
			it := stripesession.List(params)
			for it.Next() {
				return it.CheckoutSession().ID, nil
			}
			if err := it.Err(); err != nil {
				return "", err
			}
			return "", nil
		},
	}
}

// StripeGateway creates Checkout Sessions in payment mode. The session id is the
// provider payment id.
type StripeGateway struct {
	webhookSecret string
	successURL    string
	cancelURL     string
	sessions      stripeSessions
	logger        logger.Interface
}

var _ paymentgateway.PaymentGateway = (*StripeGateway)(nil)

func NewStripeGateway(cfg config.StripeConfig, logger logger.Interface) (*StripeGateway, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	stripelib.Key = strings.TrimSpace(cfg.SecretKey)
	return newStripeGateway(cfg, liveStripeSessions(), logger), nil
}

func newStripeGateway(cfg config.StripeConfig, sessions stripeSessions, logger logger.Interface) *StripeGateway {
	return &StripeGateway{
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		sessions:      sessions,
		logger:        logger,
	}
}

func (g *StripeGateway) Name() string {
	return StripeName
}

// CanVerify reports whether a webhook signing secret is configured.
func (g *StripeGateway) CanVerify() bool {
	return g.webhookSecret != ""
}

func (g *StripeGateway) CreatePayment(ctx context.Context, req paymentgateway.CreatePaymentRequest) (*paymentgateway.CreatePaymentResponse, error) {
	description := req.Description
	if description == "" {
		description = "Subscription"
	}
	metadata := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["subscriber_id"] = strconv.FormatInt(req.SubscriberID, 10)

	params := &stripelib.CheckoutSessionParams{
		Mode:              stripelib.String(string(stripelib.CheckoutSessionModePayment)),
		SuccessURL:        stripelib.String(g.successURL),
		CancelURL:         stripelib.String(g.cancelURL),
		ClientReferenceID: stripelib.String(strconv.FormatInt(req.SubscriberID, 10)),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				PriceData: &stripelib.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripelib.String(strings.ToLower(req.Amount.Currency())),
					UnitAmount: stripelib.Int64(req.Amount.AmountMinor()),
					ProductData: &stripelib.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripelib.String(description),
					},
				},
				Quantity: stripelib.Int64(1),
			},
		},
		Metadata: metadata,
	}
	params.Context = ctx

	session, err := g.sessions.create(params)
	if err != nil || session == nil || session.ID == "" {
		g.logger.Errorw("stripe checkout session creation failed",
			"subscriber_id", req.SubscriberID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: checkout session not created", paymentgateway.ErrProviderUnavailable)
	}
	return &paymentgateway.CreatePaymentResponse{
		ProviderPaymentID: session.ID,
		Status:            vo.PaymentStatusPending,
		RedirectOrInvoice: session.URL,
	}, nil
}

func (g *StripeGateway) GetStatus(ctx context.Context, providerPaymentID string) (vo.PaymentStatus, error) {
	params := &stripelib.CheckoutSessionParams{}
	params.Context = ctx
	session, err := g.sessions.get(providerPaymentID, params)
	if err != nil {
		var stripeErr *stripelib.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return vo.PaymentStatusFailed, nil
		}
		return "", fmt.Errorf("%w: %v", paymentgateway.ErrProviderUnavailable, err)
	}
	return stripeSessionStatus(session), nil
}

func stripeSessionStatus(s *stripelib.CheckoutSession) vo.PaymentStatus {
	switch s.Status {
	case stripelib.CheckoutSessionStatusComplete:
		if s.PaymentStatus == stripelib.CheckoutSessionPaymentStatusPaid {
			return vo.PaymentStatusSuccess
		}
		return vo.PaymentStatusProcessing
	case stripelib.CheckoutSessionStatusExpired:
		return vo.PaymentStatusCancelled
	default:
		return vo.PaymentStatusPending
	}
}

func (g *StripeGateway) VerifyNotification(ctx context.Context, n *paymentgateway.Notification) (bool, error) {
	if !g.CanVerify() {
		return false, nil
	}
	sigHeader := n.Headers.Get(stripeSignatureHeader)
	if strings.TrimSpace(sigHeader) == "" {
		return false, nil
	}
	_, err := webhook.ConstructEventWithOptions(n.Body, sigHeader, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		g.logger.Warnw("stripe signature check failed", "error", err)
		return false, nil
	}
	return true, nil
}

func (g *StripeGateway) NormalizeNotification(n *paymentgateway.Notification) (*paymentgateway.Event, error) {
	var event stripelib.Event
	if err := json.Unmarshal(n.Body, &event); err != nil || event.Data == nil {
		return nil, fmt.Errorf("%w: unreadable stripe event", paymentgateway.ErrMalformedNotification)
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed", "checkout.session.expired":
		var session stripelib.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil || session.ID == "" {
			return nil, fmt.Errorf("%w: unreadable checkout session", paymentgateway.ErrMalformedNotification)
		}
		ev := &paymentgateway.Event{
			ProviderPaymentID: session.ID,
			Metadata:          map[string]string{"event_id": event.ID},
		}
		switch event.Type {
		case "checkout.session.async_payment_failed":
			ev.Status = vo.PaymentStatusFailed
			ev.Metadata[paymentgateway.EventMetaReason] = "async payment failed"
		case "checkout.session.expired":
			ev.Status = vo.PaymentStatusCancelled
		default:
			ev.Status = stripeSessionStatus(&session)
		}
		if session.AmountTotal > 0 && session.Currency != "" {
			amount := vo.NewMoney(session.AmountTotal, string(session.Currency))
			ev.Amount = &amount
		}
		if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
			ev.Metadata[paymentgateway.EventMetaTxRef] = session.PaymentIntent.ID
		}
		return ev, nil

	case "charge.refunded":
		var charge stripelib.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil || charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
			return nil, fmt.Errorf("%w: unreadable charge", paymentgateway.ErrMalformedNotification)
		}
		if !charge.Refunded {
			// partial refunds leave the entitlement in place
			return nil, nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), gatewayRequestTimeout)
		defer cancel()
		sessionID, err := g.sessions.findByIntent(ctx, charge.PaymentIntent.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", paymentgateway.ErrProviderUnavailable, err)
		}
		if sessionID == "" {
			return nil, nil
		}
		return &paymentgateway.Event{
			ProviderPaymentID: sessionID,
			Status:            vo.PaymentStatusRefunded,
			Metadata:          map[string]string{"event_id": event.ID, "charge_id": charge.ID},
		}, nil
	}

	g.logger.Debugw("stripe event ignored", "type", event.Type, "event_id", event.ID)
	return nil, nil
}
