package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	paymentusecases "github.com/relaygate/relaygate/internal/application/payment/usecases"
	"github.com/relaygate/relaygate/internal/application/provisioning"
	"github.com/relaygate/relaygate/internal/application/testutil"
	trialusecases "github.com/relaygate/relaygate/internal/application/trial/usecases"
	"github.com/relaygate/relaygate/internal/domain/payment"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	"github.com/relaygate/relaygate/internal/domain/trial"
	"github.com/relaygate/relaygate/internal/shared/db"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

type stack struct {
	subs     *SubscriberRepository
	payments *PaymentRepository
	plans    *PlanRepository
	trials   *TrialRepository
	tx       *db.TransactionManager
	clients  *testutil.FakeClientFactory
	prov     *provisioning.Service
	clock    *testutil.FixedClock
}

func newStack(t *testing.T) *stack {
	t.Helper()
	gdb := setupTestDB(t)
	s := &stack{
		subs:     NewSubscriberRepository(gdb),
		payments: NewPaymentRepository(gdb),
		plans:    NewPlanRepository(gdb),
		trials:   NewTrialRepository(gdb),
		tx:       db.NewTransactionManager(gdb),
		clients:  testutil.NewFakeClientFactory(),
		clock:    testutil.NewFixedClock(testNow),
	}
	n := testutil.MustNode("node-1", 0)
	s.prov = provisioning.NewService(s.subs, s.tx,
		testutil.StaticSelector{Node: n}, testutil.NodeDirectory{"node-1": n},
		s.clients, time.Second, logger.NewNopLogger(),
	).WithClock(s.clock.Now)
	return s
}

func TestIntegration_WebhookReplayAppliesOnce(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	sub, err := subscriber.NewSubscriber(777, "bob", testNow)
	require.NoError(t, err)
	require.NoError(t, s.subs.Create(ctx, sub))

	p, err := payment.NewPayment(payment.NewPaymentParams{
		ProviderPaymentID: "yk-100",
		Provider:          "yookassa",
		SubscriberID:      sub.ID(),
		Amount:            vo.NewMoney(29900, "RUB"),
		Metadata: map[string]interface{}{
			payment.MetaPlanDays:      30,
			payment.MetaPlanTrafficGB: 50,
		},
	}, testNow)
	require.NoError(t, err)
	require.NoError(t, s.payments.Create(ctx, p))

	reconcile := paymentusecases.NewReconcilePaymentUseCase(
		s.payments, s.subs, s.plans, s.tx, s.prov, false, logger.NewNopLogger(),
	).WithClock(s.clock.Now)

	amount := vo.NewMoney(29900, "RUB")
	ev := &paymentgateway.Event{ProviderPaymentID: "yk-100", Status: vo.PaymentStatusSuccess, Amount: &amount}

	const replays = 5
	outcomes := make([]paymentusecases.Outcome, replays)
	var wg sync.WaitGroup
	for i := 0; i < replays; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := reconcile.Execute(ctx, "yookassa", ev)
			if assert.NoError(t, err) {
				outcomes[i] = res.Outcome
			}
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, o := range outcomes {
		switch o {
		case paymentusecases.OutcomeApplied:
			applied++
		default:
			assert.Equal(t, paymentusecases.OutcomeDuplicate, o)
		}
	}
	assert.Equal(t, 1, applied)

	stored, err := s.subs.GetByID(ctx, sub.ID())
	require.NoError(t, err)
	require.NotNil(t, stored.ExpiresAt())
	assert.True(t, stored.ExpiresAt().Equal(testNow.Add(30*24*time.Hour)))
	assert.Equal(t, 50.0, stored.TrafficLimitGB())
	assert.Equal(t, "node-1", stored.AssignedNode())
	assert.False(t, stored.ProvisioningPending())
	assert.Equal(t, 1, s.clients.Client("node-1").Creates)
}

func TestIntegration_ConcurrentTrialGrantCreatesOneRow(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	grant := trialusecases.NewGrantTrialUseCase(
		s.subs, s.trials, s.tx, s.prov, trial.PolicyFirstOnly,
		trialusecases.Settings{DurationDays: 3, TrafficGB: 10}, logger.NewNopLogger(),
	).WithClock(s.clock.Now)

	_, err := grant.Execute(ctx, trialusecases.GrantTrialCommand{ExternalID: 4242})
	require.NoError(t, err)
	require.Equal(t, 1, s.clients.Client("node-1").Creates)

	// sqlite serializes transactions on its single connection
	other := int64(4343)
	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := grant.Execute(ctx, trialusecases.GrantTrialCommand{ExternalID: other})
			if !assert.NoError(t, err) {
				return
			}
			if res.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	sub, err := s.subs.GetByExternalID(ctx, other)
	require.NoError(t, err)
	require.NotNil(t, sub)
	total, err := s.trials.CountBySubscriber(ctx, sub.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 2, s.clients.Client("node-1").Creates)
}
