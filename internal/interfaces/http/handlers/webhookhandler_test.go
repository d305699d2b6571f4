package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	paymentUsecases "github.com/relaygate/relaygate/internal/application/payment/usecases"
	"github.com/relaygate/relaygate/internal/interfaces/http/handlers/testutil"
)

type mockProcessNotificationUC struct {
	outcome  paymentUsecases.Outcome
	err      error
	provider string
	got      *paymentgateway.Notification
}

func (m *mockProcessNotificationUC) Execute(ctx context.Context, provider string, n *paymentgateway.Notification) (paymentUsecases.Outcome, error) {
	m.provider = provider
	m.got = n
	return m.outcome, m.err
}

func TestWebhookHandler_Acknowledges(t *testing.T) {
	uc := &mockProcessNotificationUC{outcome: paymentUsecases.OutcomeApplied}
	h := NewWebhookHandler(uc, testutil.NewMockLogger())

	header := http.Header{}
	header.Set("Stripe-Signature", "t=1,v1=abc")
	c, w := testutil.NewRawContext(http.MethodPost, "/webhook/stripe", []byte(`{"id":"evt_1"}`), header)
	testutil.SetURLParam(c, "provider", "stripe")

	h.HandleWebhook(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, testutil.ParseResponse(w, &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "applied", body["outcome"])

	assert.Equal(t, "stripe", uc.provider)
	assert.Equal(t, `{"id":"evt_1"}`, string(uc.got.Body))
	assert.Equal(t, "t=1,v1=abc", uc.got.Headers.Get("Stripe-Signature"))
	assert.NotEmpty(t, uc.got.RemoteIP)
}

func TestWebhookHandler_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown provider", fmt.Errorf("%w: paypal", paymentgateway.ErrUnknownProvider), http.StatusNotFound},
		{"verification failed", paymentgateway.ErrVerificationFailed, http.StatusUnauthorized},
		{"malformed", fmt.Errorf("%w: bad json", paymentgateway.ErrMalformedNotification), http.StatusBadRequest},
		{"provider unavailable", fmt.Errorf("%w: timeout", paymentgateway.ErrProviderUnavailable), http.StatusServiceUnavailable},
		{"store failure", errors.New("database is locked"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebhookHandler(&mockProcessNotificationUC{err: tt.err}, testutil.NewMockLogger())
			c, w := testutil.NewRawContext(http.MethodPost, "/webhook/x", []byte(`{}`), nil)
			testutil.SetURLParam(c, "provider", "x")

			h.HandleWebhook(c)

			assert.Equal(t, tt.want, w.Code)
			var resp testutil.APIResponse
			require.NoError(t, testutil.ParseResponse(w, &resp))
			assert.False(t, resp.Success)
			assert.NotContains(t, resp.Error.Message, "database", "internal details stay out of the response")
		})
	}
}

func TestWebhookHandler_BodyTooLarge(t *testing.T) {
	uc := &mockProcessNotificationUC{outcome: paymentUsecases.OutcomeApplied}
	h := NewWebhookHandler(uc, testutil.NewMockLogger())

	c, w := testutil.NewRawContext(http.MethodPost, "/webhook/stripe", make([]byte, maxWebhookBody+1), nil)
	testutil.SetURLParam(c, "provider", "stripe")

	h.HandleWebhook(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, uc.got)
}
