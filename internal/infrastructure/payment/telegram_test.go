package payment

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/shared/config"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

func TestTelegram_CreateAndStatus(t *testing.T) {
	g := NewTelegramGateway(config.TelegramPaymentConfig{Enabled: true, SecretToken: "s3cret"}, logger.NewNopLogger())

	resp, err := g.CreatePayment(context.Background(), paymentgateway.CreatePaymentRequest{
		Amount: vo.NewMoney(29900, "RUB"), SubscriberID: 77,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.ProviderPaymentID, "tg_77_"))
	assert.Len(t, resp.ProviderPaymentID, len("tg_77_")+invoiceIDLength)
	assert.Equal(t, resp.ProviderPaymentID, resp.RedirectOrInvoice)
	assert.Equal(t, vo.PaymentStatusPending, resp.Status)

	status, err := g.GetStatus(context.Background(), resp.ProviderPaymentID)
	require.NoError(t, err)
	assert.Equal(t, vo.PaymentStatusPending, status)

	for _, bad := range []string{"tg_77", "tg_x_abc", "crypto_77_abc", "tg_0_abc", "tg_77_a-b"} {
		status, err := g.GetStatus(context.Background(), bad)
		require.NoError(t, err)
		assert.Equal(t, vo.PaymentStatusFailed, status, bad)
	}
}

func TestTelegram_VerifyNotification(t *testing.T) {
	g := NewTelegramGateway(config.TelegramPaymentConfig{Enabled: true, SecretToken: "s3cret"}, logger.NewNopLogger())

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"matching token", "s3cret", true},
		{"wrong token", "s3crex", false},
		{"prefix of token", "s3c", false},
		{"missing token", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.header != "" {
				headers.Set(telegramSecretHeader, tt.header)
			}
			ok, err := g.VerifyNotification(context.Background(), &paymentgateway.Notification{Headers: headers})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	unconfigured := NewTelegramGateway(config.TelegramPaymentConfig{Enabled: true}, logger.NewNopLogger())
	assert.False(t, unconfigured.CanVerify())
	ok, err := unconfigured.VerifyNotification(context.Background(), &paymentgateway.Notification{Headers: http.Header{}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTelegram_NormalizeNotification(t *testing.T) {
	g := NewTelegramGateway(config.TelegramPaymentConfig{SecretToken: "s3cret"}, logger.NewNopLogger())

	body := `{"update_id":10,"message":{"successful_payment":{"currency":"RUB","total_amount":29900,"invoice_payload":"tg_77_AbC123xyZ0","telegram_payment_charge_id":"tch_1"}}}`
	ev, err := g.NormalizeNotification(&paymentgateway.Notification{Body: []byte(body)})
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "tg_77_AbC123xyZ0", ev.ProviderPaymentID)
	assert.Equal(t, vo.PaymentStatusSuccess, ev.Status)
	require.NotNil(t, ev.Amount)
	assert.Equal(t, int64(29900), ev.Amount.AmountMinor())
	assert.Equal(t, "tch_1", ev.Metadata[paymentgateway.EventMetaTxRef])

	stars := `{"update_id":13,"message":{"successful_payment":{"currency":"XTR","total_amount":50,"invoice_payload":"tg_77_AbC123xyZ1","telegram_payment_charge_id":"tch_2"}}}`
	ev, err = g.NormalizeNotification(&paymentgateway.Notification{Body: []byte(stars)})
	require.NoError(t, err)
	require.NotNil(t, ev.Amount)
	want, err := vo.ParseMoney("50", "XTR")
	require.NoError(t, err)
	assert.True(t, want.Equals(*ev.Amount))
	assert.Equal(t, "50", ev.Amount.Decimal())

	ev, err = g.NormalizeNotification(&paymentgateway.Notification{Body: []byte(`{"update_id":11,"message":{}}`)})
	require.NoError(t, err)
	assert.Nil(t, ev)

	_, err = g.NormalizeNotification(&paymentgateway.Notification{
		Body: []byte(`{"update_id":12,"message":{"successful_payment":{"currency":"RUB","total_amount":1,"invoice_payload":"other"}}}`),
	})
	assert.ErrorIs(t, err, paymentgateway.ErrMalformedNotification)

	_, err = g.NormalizeNotification(&paymentgateway.Notification{Body: []byte("{")})
	assert.ErrorIs(t, err, paymentgateway.ErrMalformedNotification)
}
