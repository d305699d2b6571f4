package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/shared/config"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

type fakeYooKassa struct {
	mu       sync.Mutex
	payments map[string]yookassaPayment
	refunds  map[string]yookassaRefund
	failAll  bool
	lastKey  string
	lastUser string
	created  yookassaCreateRequest
}

func (f *fakeYooKassa) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	user, _, _ := r.BasicAuth()
	f.lastUser = user

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/payments":
		f.lastKey = r.Header.Get("Idempotence-Key")
		_ = json.NewDecoder(r.Body).Decode(&f.created)
		p := yookassaPayment{ID: "2d1f-0001", Status: "pending", Amount: f.created.Amount}
		p.Confirmation = &struct {
			Type            string `json:"type"`
			ConfirmationURL string `json:"confirmation_url"`
		}{Type: "redirect", ConfirmationURL: "https://yoomoney.ru/checkout/2d1f-0001"}
		f.payments[p.ID] = p
		_ = json.NewEncoder(w).Encode(p)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/payments/"):
		p, ok := f.payments[strings.TrimPrefix(r.URL.Path, "/payments/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(p)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/refunds/"):
		rf, ok := f.refunds[strings.TrimPrefix(r.URL.Path, "/refunds/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(rf)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newYooKassaFixture(t *testing.T) (*YooKassaGateway, *fakeYooKassa) {
	t.Helper()
	fake := &fakeYooKassa{
		payments: make(map[string]yookassaPayment),
		refunds:  make(map[string]yookassaRefund),
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	g, err := NewYooKassaGateway(config.YooKassaConfig{
		Enabled:         true,
		ShopID:          "shop-1",
		SecretKey:       "test_secret",
		APIURL:          srv.URL,
		ReturnURL:       "https://t.me/relaygate_bot",
		TrustedNetworks: []string{"185.71.76.0/27", "77.75.156.11"},
	}, logger.NewNopLogger())
	require.NoError(t, err)
	return g, fake
}

func notificationBody(t *testing.T, event string, object any) []byte {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	body, err := json.Marshal(yookassaNotification{Type: "notification", Event: event, Object: raw})
	require.NoError(t, err)
	return body
}

func TestYooKassa_CreatePayment(t *testing.T) {
	g, fake := newYooKassaFixture(t)

	resp, err := g.CreatePayment(context.Background(), paymentgateway.CreatePaymentRequest{
		Amount:       vo.NewMoney(29900, "RUB"),
		Description:  "Monthly",
		SubscriberID: 77,
		Metadata:     map[string]string{"plan_id": "3"},
	})
	require.NoError(t, err)

	assert.Equal(t, "2d1f-0001", resp.ProviderPaymentID)
	assert.Equal(t, vo.PaymentStatusPending, resp.Status)
	assert.Equal(t, "https://yoomoney.ru/checkout/2d1f-0001", resp.RedirectOrInvoice)
	assert.Equal(t, "shop-1", fake.lastUser)
	assert.NotEmpty(t, fake.lastKey)
	assert.Equal(t, "299.00", fake.created.Amount.Value)
	assert.True(t, fake.created.Capture)
	assert.Equal(t, "redirect", fake.created.Confirmation.Type)
	assert.Equal(t, "77", fake.created.Metadata["subscriber_id"])
	assert.Equal(t, "3", fake.created.Metadata["plan_id"])
}

func TestYooKassa_CreatePaymentUnavailable(t *testing.T) {
	g, fake := newYooKassaFixture(t)
	fake.failAll = true

	_, err := g.CreatePayment(context.Background(), paymentgateway.CreatePaymentRequest{
		Amount: vo.NewMoney(100, "RUB"), SubscriberID: 1,
	})
	assert.ErrorIs(t, err, paymentgateway.ErrProviderUnavailable)
}

func TestYooKassa_GetStatus(t *testing.T) {
	g, fake := newYooKassaFixture(t)
	fake.payments["paid"] = yookassaPayment{ID: "paid", Status: "succeeded", Paid: true}
	fake.payments["held"] = yookassaPayment{ID: "held", Status: "waiting_for_capture"}

	tests := []struct {
		id   string
		want vo.PaymentStatus
	}{
		{"paid", vo.PaymentStatusSuccess},
		{"held", vo.PaymentStatusProcessing},
		{"missing", vo.PaymentStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := g.GetStatus(context.Background(), tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	fake.failAll = true
	_, err := g.GetStatus(context.Background(), "paid")
	assert.ErrorIs(t, err, paymentgateway.ErrProviderUnavailable)
}

func TestYooKassaStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		in   yookassaPayment
		want vo.PaymentStatus
	}{
		{"succeeded and paid", yookassaPayment{Status: "succeeded", Paid: true}, vo.PaymentStatusSuccess},
		{"succeeded unpaid", yookassaPayment{Status: "succeeded"}, vo.PaymentStatusFailed},
		{"canceled", yookassaPayment{Status: "canceled"}, vo.PaymentStatusCancelled},
		{"waiting for capture", yookassaPayment{Status: "waiting_for_capture"}, vo.PaymentStatusProcessing},
		{"pending", yookassaPayment{Status: "pending"}, vo.PaymentStatusPending},
		{"unknown", yookassaPayment{Status: "weird"}, vo.PaymentStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, yookassaStatus(tt.in))
		})
	}
}

func TestYooKassa_VerifyNotification(t *testing.T) {
	g, fake := newYooKassaFixture(t)
	paid := yookassaPayment{ID: "p-1", Status: "succeeded", Paid: true, Amount: yookassaAmount{Value: "299.00", Currency: "RUB"}}
	fake.payments["p-1"] = paid
	fake.payments["p-2"] = yookassaPayment{ID: "p-2", Status: "pending"}
	fake.refunds["r-1"] = yookassaRefund{ID: "r-1", Status: "succeeded", PaymentID: "p-1"}

	forged := paid
	forged.ID = "p-2"

	tests := []struct {
		name     string
		remoteIP string
		body     []byte
		want     bool
	}{
		{"trusted and confirmed", "185.71.76.5", notificationBody(t, "payment.succeeded", paid), true},
		{"single trusted address", "77.75.156.11", notificationBody(t, "payment.succeeded", paid), true},
		{"untrusted source", "10.0.0.1", notificationBody(t, "payment.succeeded", paid), false},
		{"api disagrees", "185.71.76.5", notificationBody(t, "payment.succeeded", forged), false},
		{"unknown payment", "185.71.76.5", notificationBody(t, "payment.succeeded", yookassaPayment{ID: "nope", Status: "succeeded", Paid: true}), false},
		{"refund confirmed", "185.71.76.5", notificationBody(t, "refund.succeeded", yookassaRefund{ID: "r-1", Status: "succeeded", PaymentID: "p-1"}), true},
		{"refund for other payment", "185.71.76.5", notificationBody(t, "refund.succeeded", yookassaRefund{ID: "r-1", Status: "succeeded", PaymentID: "p-2"}), false},
		{"garbage from untrusted source", "10.0.0.1", []byte("{"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := g.VerifyNotification(context.Background(), &paymentgateway.Notification{
				Body:     tt.body,
				RemoteIP: tt.remoteIP,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestYooKassa_VerifyNotificationMalformedBody(t *testing.T) {
	g, _ := newYooKassaFixture(t)

	for _, body := range [][]byte{
		[]byte("{"),
		[]byte(`{"event":"payment.succeeded"}`),
	} {
		ok, err := g.VerifyNotification(context.Background(), &paymentgateway.Notification{
			Body:     body,
			RemoteIP: "185.71.76.5",
		})
		assert.False(t, ok)
		assert.ErrorIs(t, err, paymentgateway.ErrMalformedNotification)
	}
}

func TestYooKassa_VerifyNotificationApiDown(t *testing.T) {
	g, fake := newYooKassaFixture(t)
	fake.failAll = true

	_, err := g.VerifyNotification(context.Background(), &paymentgateway.Notification{
		Body:     notificationBody(t, "payment.succeeded", yookassaPayment{ID: "p-1", Status: "succeeded", Paid: true}),
		RemoteIP: "185.71.76.5",
	})
	assert.ErrorIs(t, err, paymentgateway.ErrProviderUnavailable)
}

func TestYooKassa_NormalizeNotification(t *testing.T) {
	g, _ := newYooKassaFixture(t)

	canceled := yookassaPayment{ID: "p-9", Status: "canceled", Amount: yookassaAmount{Value: "10.5", Currency: "rub"}}
	canceled.CancellationDetails = &struct {
		Party  string `json:"party"`
		Reason string `json:"reason"`
	}{Party: "yoo_money", Reason: "expired_on_confirmation"}

	ev, err := g.NormalizeNotification(&paymentgateway.Notification{Body: notificationBody(t, "payment.canceled", canceled)})
	require.NoError(t, err)
	assert.Equal(t, "p-9", ev.ProviderPaymentID)
	assert.Equal(t, vo.PaymentStatusCancelled, ev.Status)
	require.NotNil(t, ev.Amount)
	assert.Equal(t, int64(1050), ev.Amount.AmountMinor())
	assert.Equal(t, "RUB", ev.Amount.Currency())
	assert.Equal(t, "expired_on_confirmation", ev.Metadata[paymentgateway.EventMetaReason])

	ev, err = g.NormalizeNotification(&paymentgateway.Notification{
		Body: notificationBody(t, "refund.succeeded", yookassaRefund{ID: "r-2", Status: "succeeded", PaymentID: "p-9"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "p-9", ev.ProviderPaymentID)
	assert.Equal(t, vo.PaymentStatusRefunded, ev.Status)
	assert.Nil(t, ev.Amount)

	for _, body := range [][]byte{
		[]byte("not json"),
		[]byte(`{"event":"payment.succeeded"}`),
		notificationBody(t, "payment.succeeded", yookassaPayment{Status: "succeeded"}),
		notificationBody(t, "payment.succeeded", yookassaPayment{ID: "x", Amount: yookassaAmount{Value: "1.234", Currency: "RUB"}}),
	} {
		_, err := g.NormalizeNotification(&paymentgateway.Notification{Body: body})
		assert.ErrorIs(t, err, paymentgateway.ErrMalformedNotification)
	}
}

func TestNewYooKassaGateway_InvalidNetwork(t *testing.T) {
	_, err := NewYooKassaGateway(config.YooKassaConfig{
		ShopID: "s", SecretKey: "k", TrustedNetworks: []string{"not-a-network"},
	}, logger.NewNopLogger())
	assert.Error(t, err)
}
