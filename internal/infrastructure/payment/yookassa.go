package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/shared/config"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

const (
	YooKassaName = "yookassa"

	defaultYooKassaAPIURL = "https://api.yookassa.ru/v3"
	// HTTP request timeout
	gatewayRequestTimeout = 15 * time.Second
	// Maximum response body size read from a gateway (1MB)
	maxGatewayResponseSize = 1 << 20
)

const yookassaRefundIDKey = "refund_id"

var errYooKassaNotFound = errors.New("yookassa object not found")

type yookassaAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yookassaPayment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       yookassaAmount    `json:"amount"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Confirmation *struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation,omitempty"`
	CancellationDetails *struct {
		Party  string `json:"party"`
		Reason string `json:"reason"`
	} `json:"cancellation_details,omitempty"`
}

type yookassaRefund struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	PaymentID string         `json:"payment_id"`
	Amount    yookassaAmount `json:"amount"`
}

type yookassaNotification struct {
	Type   string          `json:"type"`
	Event  string          `json:"event"`
	Object json.RawMessage `json:"object"`
}

type yookassaCreateRequest struct {
	Amount       yookassaAmount `json:"amount"`
	Capture      bool           `json:"capture"`
	Description  string         `json:"description,omitempty"`
	Confirmation struct {
		Type      string `json:"type"`
		ReturnURL string `json:"return_url,omitempty"`
	} `json:"confirmation"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// YooKassaGateway talks to the YooKassa REST API v3. Notifications are not
// signed, so they are trusted by source network and confirmed by re-reading
// the object from the API.
type YooKassaGateway struct {
	shopID     string
	secretKey  string
	apiURL     string
	returnURL  string
	trusted    []*net.IPNet
	httpClient *http.Client
	logger     logger.Interface
}

var _ paymentgateway.PaymentGateway = (*YooKassaGateway)(nil)

func NewYooKassaGateway(cfg config.YooKassaConfig, logger logger.Interface) (*YooKassaGateway, error) {
	if cfg.ShopID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("yookassa shop id and secret key are required")
	}
	trusted := make([]*net.IPNet, 0, len(cfg.TrustedNetworks))
	for _, cidr := range cfg.TrustedNetworks {
		network, err := parseNetwork(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid yookassa trusted network %q: %w", cidr, err)
		}
		trusted = append(trusted, network)
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultYooKassaAPIURL
	}
	return &YooKassaGateway{
		shopID:     cfg.ShopID,
		secretKey:  cfg.SecretKey,
		apiURL:     apiURL,
		returnURL:  cfg.ReturnURL,
		trusted:    trusted,
		httpClient: &http.Client{Timeout: gatewayRequestTimeout},
		logger:     logger,
	}, nil
}

// parseNetwork accepts a CIDR or a bare address.
func parseNetwork(s string) (*net.IPNet, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		ip := net.ParseIP(s)
		if ip == nil {
			return nil, fmt.Errorf("not an ip address")
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
	}
	_, network, err := net.ParseCIDR(s)
	return network, err
}

func (g *YooKassaGateway) Name() string {
	return YooKassaName
}

// CanVerify reports whether any trusted source network is configured.
func (g *YooKassaGateway) CanVerify() bool {
	return len(g.trusted) > 0
}

func (g *YooKassaGateway) CreatePayment(ctx context.Context, req paymentgateway.CreatePaymentRequest) (*paymentgateway.CreatePaymentResponse, error) {
	body := yookassaCreateRequest{
		Amount:      yookassaAmount{Value: req.Amount.Decimal(), Currency: req.Amount.Currency()},
		Capture:     true,
		Description: req.Description,
		Metadata:    make(map[string]string, len(req.Metadata)+1),
	}
	body.Confirmation.Type = "redirect"
	body.Confirmation.ReturnURL = g.returnURL
	for k, v := range req.Metadata {
		body.Metadata[k] = v
	}
	body.Metadata["subscriber_id"] = fmt.Sprintf("%d", req.SubscriberID)

	var p yookassaPayment
	if err := g.do(ctx, http.MethodPost, "/payments", body, &p); err != nil {
		g.logger.Errorw("yookassa payment creation failed",
			"subscriber_id", req.SubscriberID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", paymentgateway.ErrProviderUnavailable, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: empty payment id in response", paymentgateway.ErrProviderUnavailable)
	}

	resp := &paymentgateway.CreatePaymentResponse{
		ProviderPaymentID: p.ID,
		Status:            yookassaStatus(p),
	}
	if p.Confirmation != nil {
		resp.RedirectOrInvoice = p.Confirmation.ConfirmationURL
	}
	return resp, nil
}

func (g *YooKassaGateway) GetStatus(ctx context.Context, providerPaymentID string) (vo.PaymentStatus, error) {
	p, err := g.fetchPayment(ctx, providerPaymentID)
	if errors.Is(err, errYooKassaNotFound) {
		return vo.PaymentStatusFailed, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", paymentgateway.ErrProviderUnavailable, err)
	}
	return yookassaStatus(*p), nil
}

// VerifyNotification accepts a notification only from a trusted network and
// only when the API agrees with what it claims.
func (g *YooKassaGateway) VerifyNotification(ctx context.Context, n *paymentgateway.Notification) (bool, error) {
	if !g.trustedSource(n.RemoteIP) {
		g.logger.Warnw("yookassa notification from untrusted address", "remote_ip", n.RemoteIP)
		return false, nil
	}

	ev, err := g.NormalizeNotification(n)
	if err != nil {
		return false, err
	}
	if ev == nil {
		return true, nil
	}

	if ev.Status == vo.PaymentStatusRefunded {
		var refund yookassaRefund
		err := g.do(ctx, http.MethodGet, "/refunds/"+url.PathEscape(ev.Metadata[yookassaRefundIDKey]), nil, &refund)
		if errors.Is(err, errYooKassaNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", paymentgateway.ErrProviderUnavailable, err)
		}
		return refund.Status == "succeeded" && refund.PaymentID == ev.ProviderPaymentID, nil
	}

	p, err := g.fetchPayment(ctx, ev.ProviderPaymentID)
	if errors.Is(err, errYooKassaNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", paymentgateway.ErrProviderUnavailable, err)
	}
	if actual := yookassaStatus(*p); actual != ev.Status {
		g.logger.Warnw("yookassa notification disagrees with api",
			"provider_payment_id", ev.ProviderPaymentID,
			"notified", ev.Status,
			"actual", actual,
		)
		return false, nil
	}
	return true, nil
}

func (g *YooKassaGateway) NormalizeNotification(n *paymentgateway.Notification) (*paymentgateway.Event, error) {
	var note yookassaNotification
	if err := json.Unmarshal(n.Body, &note); err != nil {
		return nil, fmt.Errorf("%w: %v", paymentgateway.ErrMalformedNotification, err)
	}
	if len(note.Object) == 0 {
		return nil, fmt.Errorf("%w: missing object", paymentgateway.ErrMalformedNotification)
	}

	if strings.HasPrefix(note.Event, "refund.") {
		var refund yookassaRefund
		if err := json.Unmarshal(note.Object, &refund); err != nil || refund.PaymentID == "" {
			return nil, fmt.Errorf("%w: unreadable refund object", paymentgateway.ErrMalformedNotification)
		}
		if note.Event != "refund.succeeded" {
			return nil, nil
		}
		return &paymentgateway.Event{
			ProviderPaymentID: refund.PaymentID,
			Status:            vo.PaymentStatusRefunded,
			Metadata:          map[string]string{yookassaRefundIDKey: refund.ID},
		}, nil
	}

	var p yookassaPayment
	if err := json.Unmarshal(note.Object, &p); err != nil || p.ID == "" {
		return nil, fmt.Errorf("%w: unreadable payment object", paymentgateway.ErrMalformedNotification)
	}
	ev := &paymentgateway.Event{
		ProviderPaymentID: p.ID,
		Status:            yookassaStatus(p),
		Metadata:          make(map[string]string),
	}
	if p.Amount.Value != "" {
		amount, err := vo.ParseMoney(p.Amount.Value, p.Amount.Currency)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", paymentgateway.ErrMalformedNotification, err)
		}
		ev.Amount = &amount
	}
	if p.CancellationDetails != nil && p.CancellationDetails.Reason != "" {
		ev.Metadata[paymentgateway.EventMetaReason] = p.CancellationDetails.Reason
	}
	return ev, nil
}

func yookassaStatus(p yookassaPayment) vo.PaymentStatus {
	switch p.Status {
	case "succeeded":
		if p.Paid {
			return vo.PaymentStatusSuccess
		}
		return vo.PaymentStatusFailed
	case "canceled":
		return vo.PaymentStatusCancelled
	case "waiting_for_capture":
		return vo.PaymentStatusProcessing
	case "pending":
		return vo.PaymentStatusPending
	default:
		return vo.PaymentStatusFailed
	}
}

func (g *YooKassaGateway) trustedSource(remoteIP string) bool {
	ip := net.ParseIP(strings.TrimSpace(remoteIP))
	if ip == nil {
		return false
	}
	for _, network := range g.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func (g *YooKassaGateway) fetchPayment(ctx context.Context, providerPaymentID string) (*yookassaPayment, error) {
	var p yookassaPayment
	if err := g.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(providerPaymentID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (g *YooKassaGateway) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(g.shopID, g.secretKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotence-Key", uuid.NewString())
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errYooKassaNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxGatewayResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
