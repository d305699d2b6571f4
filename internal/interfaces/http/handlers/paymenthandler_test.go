package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymentdto "github.com/relaygate/relaygate/internal/application/payment/dto"
	paymentUsecases "github.com/relaygate/relaygate/internal/application/payment/usecases"
	plandto "github.com/relaygate/relaygate/internal/application/plan/dto"
	"github.com/relaygate/relaygate/internal/interfaces/http/handlers/testutil"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
)

type mockCreatePaymentUC struct {
	result *paymentUsecases.CreatePaymentResult
	err    error
	got    paymentUsecases.CreatePaymentCommand
}

func (m *mockCreatePaymentUC) Execute(ctx context.Context, cmd paymentUsecases.CreatePaymentCommand) (*paymentUsecases.CreatePaymentResult, error) {
	m.got = cmd
	return m.result, m.err
}

type mockCheckPaymentUC struct {
	result *paymentdto.PaymentDTO
	err    error
}

func (m *mockCheckPaymentUC) Execute(ctx context.Context, providerPaymentID string) (*paymentdto.PaymentDTO, error) {
	return m.result, m.err
}

type mockListPlansUC struct {
	result []plandto.PlanDTO
	err    error
}

func (m *mockListPlansUC) Execute(ctx context.Context) ([]plandto.PlanDTO, error) {
	return m.result, m.err
}

type staticProviders []string

func (p staticProviders) Names() []string { return p }

func newTestPaymentHandler(create createPaymentUseCase, check checkPaymentUseCase, list listPlansUseCase) *PaymentHandler {
	return NewPaymentHandler(create, check, list, staticProviders{"stripe", "yookassa"}, testutil.NewMockLogger())
}

func TestPaymentHandler_CreatePayment(t *testing.T) {
	uc := &mockCreatePaymentUC{result: &paymentUsecases.CreatePaymentResult{
		PaymentID:         "pi_1",
		Provider:          "stripe",
		Status:            "pending",
		Amount:            "9.99",
		Currency:          "USD",
		RedirectOrInvoice: "https://checkout.example.test/pi_1",
	}}
	h := newTestPaymentHandler(uc, nil, nil)

	c, w := testutil.NewTestContext(http.MethodPost, "/api/v1/payments", CreatePaymentRequest{
		ExternalID: 42, Username: "alice", PlanID: 3, Provider: "stripe",
	})
	h.CreatePayment(c)

	require.Equal(t, http.StatusCreated, w.Code)
	var out paymentUsecases.CreatePaymentResult
	require.NoError(t, testutil.ParseData(w, &out))
	assert.Equal(t, "pi_1", out.PaymentID)
	assert.Equal(t, paymentUsecases.CreatePaymentCommand{ExternalID: 42, Username: "alice", PlanID: 3, Provider: "stripe"}, uc.got)
}

func TestPaymentHandler_CreatePayment_Errors(t *testing.T) {
	tests := []struct {
		name string
		body any
		err  error
		want int
	}{
		{"missing fields", map[string]any{"external_id": 42}, nil, http.StatusBadRequest},
		{"unknown plan", CreatePaymentRequest{ExternalID: 42, PlanID: 9, Provider: "stripe"}, apperrors.NewNotFoundError("plan not found"), http.StatusNotFound},
		{"banned", CreatePaymentRequest{ExternalID: 42, PlanID: 1, Provider: "stripe"}, apperrors.NewForbiddenError("access has been revoked"), http.StatusForbidden},
		{"provider down", CreatePaymentRequest{ExternalID: 42, PlanID: 1, Provider: "stripe"}, apperrors.NewUnavailableError("payment could not be created, please try again"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestPaymentHandler(&mockCreatePaymentUC{err: tt.err}, nil, nil)
			c, w := testutil.NewTestContext(http.MethodPost, "/api/v1/payments", tt.body)
			h.CreatePayment(c)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestPaymentHandler_CheckPayment(t *testing.T) {
	h := newTestPaymentHandler(nil, &mockCheckPaymentUC{result: &paymentdto.PaymentDTO{
		PaymentID: "pi_1", Provider: "stripe", Status: "succeeded", Amount: "9.99", Currency: "USD",
	}}, nil)

	c, w := testutil.NewTestContext(http.MethodGet, "/payment/check/pi_1", nil)
	testutil.SetURLParam(c, "payment_id", "pi_1")
	h.CheckPayment(c)

	require.Equal(t, http.StatusOK, w.Code)
	var out PaymentStatusResponse
	require.NoError(t, testutil.ParseResponse(w, &out))
	assert.Equal(t, PaymentStatusResponse{PaymentID: "pi_1", Status: "succeeded", Amount: "9.99", Currency: "USD"}, out)
}

func TestPaymentHandler_CheckPayment_NotFound(t *testing.T) {
	h := newTestPaymentHandler(nil, &mockCheckPaymentUC{err: apperrors.NewNotFoundError("payment not found")}, nil)

	c, w := testutil.NewTestContext(http.MethodGet, "/payment/check/nope", nil)
	testutil.SetURLParam(c, "payment_id", "nope")
	h.CheckPayment(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentHandler_ListPlansAndProviders(t *testing.T) {
	h := newTestPaymentHandler(nil, nil, &mockListPlansUC{result: []plandto.PlanDTO{
		{ID: 1, Name: "Month", DurationDays: 30, Price: "4.99", Currency: "USD", IsActive: true},
	}})

	c, w := testutil.NewTestContext(http.MethodGet, "/api/v1/plans", nil)
	h.ListPlans(c)
	require.Equal(t, http.StatusOK, w.Code)
	var plans struct {
		Items []plandto.PlanDTO `json:"items"`
		Total int               `json:"total"`
	}
	require.NoError(t, testutil.ParseData(w, &plans))
	assert.Equal(t, 1, plans.Total)
	assert.Equal(t, "4.99", plans.Items[0].Price)

	c, w = testutil.NewTestContext(http.MethodGet, "/api/v1/payment/providers", nil)
	h.ListProviders(c)
	require.Equal(t, http.StatusOK, w.Code)
	var providers struct {
		Items []string `json:"items"`
	}
	require.NoError(t, testutil.ParseData(w, &providers))
	assert.Equal(t, []string{"stripe", "yookassa"}, providers.Items)
}
