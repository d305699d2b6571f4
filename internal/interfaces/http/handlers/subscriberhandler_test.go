package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entdto "github.com/relaygate/relaygate/internal/application/entitlement/dto"
	entitlementUsecases "github.com/relaygate/relaygate/internal/application/entitlement/usecases"
	trialUsecases "github.com/relaygate/relaygate/internal/application/trial/usecases"
	"github.com/relaygate/relaygate/internal/domain/trial"
	"github.com/relaygate/relaygate/internal/interfaces/http/handlers/testutil"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
)

type mockRegisterUC struct {
	created bool
	got     entitlementUsecases.RegisterSubscriberCommand
}

func (m *mockRegisterUC) Execute(ctx context.Context, cmd entitlementUsecases.RegisterSubscriberCommand) (*entdto.SubscriberDTO, bool, error) {
	m.got = cmd
	return &entdto.SubscriberDTO{ExternalID: cmd.ExternalID, Username: cmd.Username, Role: "user"}, m.created, nil
}

type mockGetSubscriberUC struct {
	result *entdto.SubscriberDTO
	err    error
}

func (m *mockGetSubscriberUC) Execute(ctx context.Context, externalID int64) (*entdto.SubscriberDTO, error) {
	return m.result, m.err
}

type mockGetConnectionUC struct {
	result *entdto.ConnectionDTO
	err    error
}

func (m *mockGetConnectionUC) Execute(ctx context.Context, externalID int64) (*entdto.ConnectionDTO, error) {
	return m.result, m.err
}

type mockCheckEligibilityUC struct {
	result *trialUsecases.EligibilityResult
}

func (m *mockCheckEligibilityUC) Execute(ctx context.Context, externalID int64) (*trialUsecases.EligibilityResult, error) {
	return m.result, nil
}

type mockGrantTrialUC struct {
	result *trialUsecases.GrantTrialResult
	err    error
	got    trialUsecases.GrantTrialCommand
}

func (m *mockGrantTrialUC) Execute(ctx context.Context, cmd trialUsecases.GrantTrialCommand) (*trialUsecases.GrantTrialResult, error) {
	m.got = cmd
	return m.result, m.err
}

type subscriberMocks struct {
	register    *mockRegisterUC
	get         *mockGetSubscriberUC
	connection  *mockGetConnectionUC
	eligibility *mockCheckEligibilityUC
	grantTrial  *mockGrantTrialUC
}

func newTestSubscriberHandler(m subscriberMocks) *SubscriberHandler {
	return NewSubscriberHandler(m.register, m.get, m.connection, m.eligibility, m.grantTrial, testutil.NewMockLogger())
}

func TestSubscriberHandler_RegisterSubscriber(t *testing.T) {
	for _, created := range []bool{true, false} {
		reg := &mockRegisterUC{created: created}
		h := newTestSubscriberHandler(subscriberMocks{register: reg})

		c, w := testutil.NewTestContext(http.MethodPost, "/api/v1/subscribers", RegisterSubscriberRequest{ExternalID: 7, Username: "bob"})
		h.RegisterSubscriber(c)

		if created {
			assert.Equal(t, http.StatusCreated, w.Code)
		} else {
			assert.Equal(t, http.StatusOK, w.Code)
		}
		assert.Equal(t, int64(7), reg.got.ExternalID)
	}
}

func TestSubscriberHandler_GetSubscriber(t *testing.T) {
	tests := []struct {
		name  string
		param string
		uc    *mockGetSubscriberUC
		want  int
	}{
		{"found", "42", &mockGetSubscriberUC{result: &entdto.SubscriberDTO{ExternalID: 42}}, http.StatusOK},
		{"not found", "42", &mockGetSubscriberUC{err: apperrors.NewNotFoundError("subscriber not found")}, http.StatusNotFound},
		{"bad id", "abc", &mockGetSubscriberUC{}, http.StatusBadRequest},
		{"negative id", "-1", &mockGetSubscriberUC{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestSubscriberHandler(subscriberMocks{get: tt.uc})
			c, w := testutil.NewTestContext(http.MethodGet, "/api/v1/subscribers/"+tt.param, nil)
			testutil.SetURLParam(c, "external_id", tt.param)
			h.GetSubscriber(c)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSubscriberHandler_GetConnection(t *testing.T) {
	tests := []struct {
		name string
		uc   *mockGetConnectionUC
		want int
	}{
		{"ready", &mockGetConnectionUC{result: &entdto.ConnectionDTO{Descriptor: "https://n1.example.test/sub/user_42", NodeID: "n1"}}, http.StatusOK},
		{"expired", &mockGetConnectionUC{err: apperrors.NewForbiddenError("access expired")}, http.StatusForbidden},
		{"pending", &mockGetConnectionUC{err: apperrors.NewConflictError("access is being prepared, try again shortly")}, http.StatusConflict},
		{"node down", &mockGetConnectionUC{err: apperrors.NewUnavailableError("connection details are temporarily unavailable")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestSubscriberHandler(subscriberMocks{connection: tt.uc})
			c, w := testutil.NewTestContext(http.MethodGet, "/api/v1/subscribers/42/connection", nil)
			testutil.SetURLParam(c, "external_id", "42")
			h.GetConnection(c)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSubscriberHandler_GetTrialEligibility(t *testing.T) {
	h := newTestSubscriberHandler(subscriberMocks{eligibility: &mockCheckEligibilityUC{result: &trialUsecases.EligibilityResult{
		Eligible: true, DurationDays: 3, TrafficGB: 10,
	}}})

	c, w := testutil.NewTestContext(http.MethodGet, "/api/v1/subscribers/42/trial", nil)
	testutil.SetURLParam(c, "external_id", "42")
	h.GetTrialEligibility(c)

	require.Equal(t, http.StatusOK, w.Code)
	var out trialUsecases.EligibilityResult
	require.NoError(t, testutil.ParseData(w, &out))
	assert.True(t, out.Eligible)
	assert.Equal(t, 3, out.DurationDays)
}

func TestSubscriberHandler_GrantTrial(t *testing.T) {
	expires := time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)

	t.Run("granted", func(t *testing.T) {
		uc := &mockGrantTrialUC{result: &trialUsecases.GrantTrialResult{GrantID: 1, ExpiresAt: expires, TrafficGB: 10, Created: true}}
		h := newTestSubscriberHandler(subscriberMocks{grantTrial: uc})

		c, w := testutil.NewTestContext(http.MethodPost, "/api/v1/subscribers/42/trial", GrantTrialRequest{Username: "alice"})
		testutil.SetURLParam(c, "external_id", "42")
		h.GrantTrial(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, trialUsecases.GrantTrialCommand{ExternalID: 42, Username: "alice"}, uc.got)
	})

	t.Run("replayed without body", func(t *testing.T) {
		uc := &mockGrantTrialUC{result: &trialUsecases.GrantTrialResult{GrantID: 1, ExpiresAt: expires}}
		h := newTestSubscriberHandler(subscriberMocks{grantTrial: uc})

		c, w := testutil.NewTestContext(http.MethodPost, "/api/v1/subscribers/42/trial", nil)
		testutil.SetURLParam(c, "external_id", "42")
		h.GrantTrial(c)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not eligible", func(t *testing.T) {
		uc := &mockGrantTrialUC{err: trial.ErrTrialNotEligible}
		h := newTestSubscriberHandler(subscriberMocks{grantTrial: uc})

		c, w := testutil.NewTestContext(http.MethodPost, "/api/v1/subscribers/42/trial", nil)
		testutil.SetURLParam(c, "external_id", "42")
		h.GrantTrial(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
		var resp testutil.APIResponse
		require.NoError(t, testutil.ParseResponse(w, &resp))
		assert.Equal(t, string(apperrors.ErrorTypeForbidden), resp.Error.Type)
	})
}
