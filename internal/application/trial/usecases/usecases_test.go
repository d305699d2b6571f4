package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/application/provisioning"
	"github.com/relaygate/relaygate/internal/application/testutil"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	subvo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
	"github.com/relaygate/relaygate/internal/domain/trial"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

var now = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

var defaults = Settings{DurationDays: 7, TrafficGB: 5}

type fixture struct {
	subs    *testutil.MockSubscriberRepository
	trials  *testutil.MockTrialRepository
	clients *testutil.FakeClientFactory
	clock   *testutil.FixedClock
	check   *CheckEligibilityUseCase
	grant   *GrantTrialUseCase
	expire  *ExpireTrialsUseCase
}

func newFixture(t *testing.T, policy trial.Policy) *fixture {
	t.Helper()
	log := logger.NewNopLogger()
	f := &fixture{
		subs:    testutil.NewMockSubscriberRepository(),
		trials:  testutil.NewMockTrialRepository(),
		clients: testutil.NewFakeClientFactory(),
		clock:   testutil.NewFixedClock(now),
	}
	n := testutil.MustNode("node-1", 0)
	tx := &testutil.Transactor{}
	prov := provisioning.NewService(f.subs, tx,
		testutil.StaticSelector{Node: n}, testutil.NodeDirectory{"node-1": n},
		f.clients, time.Second, log,
	).WithClock(f.clock.Now)

	f.check = NewCheckEligibilityUseCase(f.subs, f.trials, policy, defaults, log).WithClock(f.clock.Now)
	f.grant = NewGrantTrialUseCase(f.subs, f.trials, tx, prov, policy, defaults, log).WithClock(f.clock.Now)
	f.expire = NewExpireTrialsUseCase(f.trials, log).WithClock(f.clock.Now)
	return f
}

func TestGrantTrial_FirstGrantAppliesAndProvisions(t *testing.T) {
	f := newFixture(t, trial.PolicyFirstOnly)

	elig, err := f.check.Execute(context.Background(), 555)
	require.NoError(t, err)
	assert.True(t, elig.Eligible)

	res, err := f.grant.Execute(context.Background(), GrantTrialCommand{ExternalID: 555, Username: "carol"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.ProvisioningPending)
	assert.Equal(t, now.Add(7*24*time.Hour), res.ExpiresAt)
	assert.Equal(t, 5.0, res.TrafficGB)

	sub, _ := f.subs.GetByExternalID(context.Background(), 555)
	require.NotNil(t, sub)
	assert.Equal(t, subvo.RoleActive, sub.Role())
	assert.Equal(t, subvo.SourceTrial, sub.Source())
	assert.Equal(t, 5.0, sub.TrafficLimitGB())
	assert.True(t, f.clients.Client("node-1").HasAccount("user_555"))

	elig, err = f.check.Execute(context.Background(), 555)
	require.NoError(t, err)
	assert.False(t, elig.Eligible)
	require.NotNil(t, elig.ActiveUntil)
}

func TestGrantTrial_RepeatedRequestReplaysGrant(t *testing.T) {
	f := newFixture(t, trial.PolicyFirstOnly)

	first, err := f.grant.Execute(context.Background(), GrantTrialCommand{ExternalID: 556})
	require.NoError(t, err)
	second, err := f.grant.Execute(context.Background(), GrantTrialCommand{ExternalID: 556})
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.GrantID, second.GrantID)
	assert.Equal(t, 1, f.clients.Client("node-1").Creates)
}

func TestGrantTrial_ConcurrentRequestsCreateOneGrant(t *testing.T) {
	f := newFixture(t, trial.PolicyFirstOnly)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*GrantTrialResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.grant.Execute(context.Background(), GrantTrialCommand{ExternalID: 557})
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Created {
			created++
		}
	}
	assert.Equal(t, 1, created)

	sub, _ := f.subs.GetByExternalID(context.Background(), 557)
	count, err := f.trials.CountBySubscriber(context.Background(), sub.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, f.clients.Client("node-1").Creates)
}

// lateRegistration hides the subscriber from the first lookup, as when another
// request registers it between the lookup and the insert.
type lateRegistration struct {
	*testutil.MockSubscriberRepository
	mu     sync.Mutex
	hidden bool
}

func (r *lateRegistration) GetByExternalID(ctx context.Context, externalID int64) (*subscriber.Subscriber, error) {
	r.mu.Lock()
	hide := !r.hidden
	r.hidden = true
	r.mu.Unlock()
	if hide {
		return nil, nil
	}
	return r.MockSubscriberRepository.GetByExternalID(ctx, externalID)
}

func TestGrantTrial_RegisteredConcurrentlyReplaysGrant(t *testing.T) {
	f := newFixture(t, trial.PolicyFirstOnly)
	first, err := f.grant.Execute(context.Background(), GrantTrialCommand{ExternalID: 558, Username: "dave"})
	require.NoError(t, err)
	require.True(t, first.Created)

	racing := NewGrantTrialUseCase(&lateRegistration{MockSubscriberRepository: f.subs}, f.trials,
		&testutil.Transactor{}, nil, trial.PolicyFirstOnly, defaults, logger.NewNopLogger()).WithClock(f.clock.Now)

	second, err := racing.Execute(context.Background(), GrantTrialCommand{ExternalID: 558, Username: "dave"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.GrantID, second.GrantID)

	sub, _ := f.subs.GetByExternalID(context.Background(), 558)
	require.NotNil(t, sub)
	count, err := f.trials.CountBySubscriber(context.Background(), sub.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGrantTrial_PolicyAfterExpiry(t *testing.T) {
	tests := []struct {
		policy    trial.Policy
		wantAgain bool
	}{
		{trial.PolicyFirstOnly, false},
		{trial.PolicyAfterExpiry, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			f := newFixture(t, tt.policy)
			_, err := f.grant.Execute(context.Background(), GrantTrialCommand{ExternalID: 558})
			require.NoError(t, err)

			f.clock.Advance(8 * 24 * time.Hour)
			n, err := f.expire.Execute(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			elig, err := f.check.Execute(context.Background(), 558)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAgain, elig.Eligible)

			_, err = f.grant.Execute(context.Background(), GrantTrialCommand{ExternalID: 558})
			if tt.wantAgain {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, trial.ErrTrialNotEligible)
			}
		})
	}
}

func TestGrantTrial_IneligibleSubscribers(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *subscriber.Subscriber)
	}{
		{"banned", func(s *subscriber.Subscriber) { s.Revoke(now) }},
		{"admin", func(s *subscriber.Subscriber) { s.PromoteToAdmin(now) }},
		{"paid access running", func(s *subscriber.Subscriber) {
			_ = s.ApplyEntitlement(subscriber.Entitlement{Days: 30, Source: subvo.SourcePaid}, now)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, trial.PolicyFirstOnly)
			s, err := subscriber.NewSubscriber(559, "dave", now)
			require.NoError(t, err)
			tt.setup(s)
			require.NoError(t, f.subs.Create(context.Background(), s))

			elig, err := f.check.Execute(context.Background(), 559)
			require.NoError(t, err)
			assert.False(t, elig.Eligible)

			_, err = f.grant.Execute(context.Background(), GrantTrialCommand{ExternalID: 559})
			assert.ErrorIs(t, err, trial.ErrTrialNotEligible)
		})
	}
}

func TestGrantTrial_ProvisioningFailureStillGrants(t *testing.T) {
	f := newFixture(t, trial.PolicyFirstOnly)
	f.clients.Client("node-1").Err = errors.New("unreachable")

	res, err := f.grant.Execute(context.Background(), GrantTrialCommand{ExternalID: 560})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.ProvisioningPending)

	sub, _ := f.subs.GetByExternalID(context.Background(), 560)
	assert.True(t, sub.ProvisioningPending())
	assert.Equal(t, subvo.RoleActive, sub.Role())
}

func TestGrantTrial_Overrides(t *testing.T) {
	f := newFixture(t, trial.PolicyFirstOnly)
	res, err := f.grant.Execute(context.Background(), GrantTrialCommand{ExternalID: 561, DurationDays: 3, TrafficGB: 1.5})
	require.NoError(t, err)
	assert.Equal(t, now.Add(3*24*time.Hour), res.ExpiresAt)
	assert.Equal(t, 1.5, res.TrafficGB)
}
