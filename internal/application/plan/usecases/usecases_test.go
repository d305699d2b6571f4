package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/application/testutil"
	"github.com/relaygate/relaygate/internal/domain/payment"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

var testNow = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func monthly() PlanTermsInput {
	return PlanTermsInput{Name: "Month", DurationDays: 30, TrafficLimitGB: 100, DeviceLimit: 3, Price: "299.00", Currency: "RUB"}
}

func TestCreatePlan(t *testing.T) {
	plans := testutil.NewMockPlanRepository()
	uc := NewCreatePlanUseCase(plans, logger.NewNopLogger())

	out, err := uc.Execute(context.Background(), monthly())
	require.NoError(t, err)
	assert.NotZero(t, out.ID)
	assert.Equal(t, "299.00", out.Price)
	assert.True(t, out.IsActive)

	tests := []struct {
		name string
		in   PlanTermsInput
	}{
		{"bad price", PlanTermsInput{Name: "X", DurationDays: 30, Price: "abc", Currency: "RUB"}},
		{"zero price", PlanTermsInput{Name: "X", DurationDays: 30, Price: "0", Currency: "RUB"}},
		{"no duration", PlanTermsInput{Name: "X", Price: "10", Currency: "RUB"}},
		{"negative traffic", PlanTermsInput{Name: "X", DurationDays: 30, TrafficLimitGB: -1, Price: "10", Currency: "RUB"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Execute(context.Background(), tt.in)
			require.Error(t, err)
			appErr := apperrors.GetAppError(err)
			require.NotNil(t, appErr)
			assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
		})
	}
}

func TestUpdatePlan(t *testing.T) {
	plans := testutil.NewMockPlanRepository()
	payments := testutil.NewMockPaymentRepository()
	ctx := context.Background()

	created, err := NewCreatePlanUseCase(plans, logger.NewNopLogger()).Execute(ctx, monthly())
	require.NoError(t, err)

	uc := NewUpdatePlanUseCase(plans, payments, &testutil.Transactor{}, logger.NewNopLogger())

	revised := monthly()
	revised.Price = "349.00"
	out, err := uc.Execute(ctx, created.ID, revised)
	require.NoError(t, err)
	assert.Equal(t, "349.00", out.Price)

	_, err = uc.Execute(ctx, 999, revised)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.GetAppError(err).Type)

	planID := created.ID
	p, err := payment.NewPayment(payment.NewPaymentParams{
		ProviderPaymentID: "pay-1",
		Provider:          "yookassa",
		SubscriberID:      1,
		PlanID:            &planID,
		Amount:            vo.NewMoney(34900, "RUB"),
	}, testNow)
	require.NoError(t, err)
	require.NoError(t, payments.Create(ctx, p))

	revised.Price = "1.00"
	_, err = uc.Execute(ctx, created.ID, revised)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeConflict, apperrors.GetAppError(err).Type)

	stored, err := plans.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "349.00", stored.Price().Decimal())
}

func TestSetPlanActiveAndList(t *testing.T) {
	plans := testutil.NewMockPlanRepository()
	ctx := context.Background()

	created, err := NewCreatePlanUseCase(plans, logger.NewNopLogger()).Execute(ctx, monthly())
	require.NoError(t, err)

	uc := NewSetPlanActiveUseCase(plans, logger.NewNopLogger())
	out, err := uc.Execute(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, out.IsActive)

	active, err := plans.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := NewListAllPlansUseCase(plans).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)

	out, err = uc.Execute(ctx, created.ID, true)
	require.NoError(t, err)
	assert.True(t, out.IsActive)

	_, err = uc.Execute(ctx, 42, true)
	assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.GetAppError(err).Type)
}
