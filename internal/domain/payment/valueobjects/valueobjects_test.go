package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	all := []PaymentStatus{
		PaymentStatusPending, PaymentStatusProcessing, PaymentStatusSuccess,
		PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded,
	}
	allowed := map[[2]PaymentStatus]bool{
		{PaymentStatusPending, PaymentStatusProcessing}:   true,
		{PaymentStatusPending, PaymentStatusSuccess}:      true,
		{PaymentStatusPending, PaymentStatusFailed}:       true,
		{PaymentStatusPending, PaymentStatusCancelled}:    true,
		{PaymentStatusProcessing, PaymentStatusSuccess}:   true,
		{PaymentStatusProcessing, PaymentStatusFailed}:    true,
		{PaymentStatusProcessing, PaymentStatusCancelled}: true,
		{PaymentStatusSuccess, PaymentStatusRefunded}:     true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]PaymentStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestPaymentStatus_IsValid(t *testing.T) {
	assert.True(t, PaymentStatusRefunded.IsValid())
	assert.False(t, PaymentStatus("paid").IsValid())
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"299.00", 29900, false},
		{"299", 29900, false},
		{"0.5", 50, false},
		{"12.345", 0, true},
		{"12.", 0, true},
		{"-1.00", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseMoney(tt.in, "rub")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.AmountMinor())
			assert.Equal(t, "RUB", m.Currency())
		})
	}
}

func TestParseMoney_CurrencyScale(t *testing.T) {
	tests := []struct {
		in       string
		currency string
		want     int64
		wantErr  bool
	}{
		{"50", "XTR", 50, false},
		{"50.5", "XTR", 0, true},
		{"1500", "JPY", 1500, false},
		{"1500.00", "JPY", 0, true},
		{"10.5", "USDT", 1050, false},
		{"3.1", "KWD", 3100, false},
	}
	for _, tt := range tests {
		t.Run(tt.in+" "+tt.currency, func(t *testing.T) {
			m, err := ParseMoney(tt.in, tt.currency)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.AmountMinor())
		})
	}
}

func TestMoney_Decimal(t *testing.T) {
	assert.Equal(t, "299.00 RUB", NewMoney(29900, "RUB").String())
	assert.Equal(t, "0.05", NewMoney(5, "USD").Decimal())
	assert.Equal(t, "50 XTR", NewMoney(50, "XTR").String())
	assert.Equal(t, "1500", NewMoney(1500, "JPY").Decimal())
	assert.Equal(t, "3.100", NewMoney(3100, "KWD").Decimal())
}

func TestCurrencyScale(t *testing.T) {
	assert.Equal(t, 2, CurrencyScale("RUB"))
	assert.Equal(t, 0, CurrencyScale("xtr"))
	assert.Equal(t, 0, CurrencyScale("JPY"))
	assert.Equal(t, 3, CurrencyScale("KWD"))
	assert.Equal(t, 2, CurrencyScale("USDT"))
	assert.Equal(t, 2, CurrencyScale("ZZQ"))
}

func TestIsSupportedCurrency(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"RUB", true},
		{"usd", true},
		{" EUR ", true},
		{"USDT", true},
		{"XTR", true},
		{"ZZQ", false},
		{"", false},
		{"DOLLARS", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSupportedCurrency(tt.code))
		})
	}
}
