package subscriber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	vo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestSubscriber(t *testing.T) *Subscriber {
	t.Helper()
	s, err := NewSubscriber(42, "alice", testNow)
	require.NoError(t, err)
	return s
}

func TestNewSubscriber(t *testing.T) {
	s := newTestSubscriber(t)

	assert.Equal(t, vo.RoleTrialEligible, s.Role())
	assert.Equal(t, DefaultDeviceLimit, s.DeviceLimit())
	assert.Equal(t, "user_42", s.AccountName())
	assert.True(t, s.IsExpired(testNow), "no expiry means no access")

	_, err := NewSubscriber(0, "", testNow)
	assert.Error(t, err)
}

func TestSubscriber_UsernameIsPlainText(t *testing.T) {
	s, err := NewSubscriber(7, "<b>alice</b>", testNow)
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Username())

	s.SetUsername(`bob<script>x()</script>  &amp; co`)
	assert.Equal(t, "bob & co", s.Username())
}

func TestApplyEntitlement_ResetsFromNow(t *testing.T) {
	s := newTestSubscriber(t)
	require.NoError(t, s.ApplyEntitlement(Entitlement{Days: 30, TrafficLimitGB: 100, Source: vo.SourcePaid}, testNow))
	s.RecordUsage(40, testNow)

	later := testNow.Add(5 * 24 * time.Hour)
	require.NoError(t, s.ApplyEntitlement(Entitlement{Days: 30, TrafficLimitGB: 50, Source: vo.SourcePaid}, later))

	assert.Equal(t, vo.RoleActive, s.Role())
	assert.Equal(t, later.Add(30*24*time.Hour), *s.ExpiresAt())
	assert.Equal(t, 50.0, s.TrafficLimitGB())
	assert.Zero(t, s.UsedTrafficGB())
	assert.True(t, s.ProvisioningPending())
}

func TestApplyEntitlement_Stack(t *testing.T) {
	s := newTestSubscriber(t)
	require.NoError(t, s.ApplyEntitlement(Entitlement{Days: 30, Source: vo.SourcePaid}, testNow))

	later := testNow.Add(10 * 24 * time.Hour)
	require.NoError(t, s.ApplyEntitlement(Entitlement{Days: 30, Source: vo.SourcePaid, Stack: true}, later))

	assert.Equal(t, testNow.Add(60*24*time.Hour), *s.ExpiresAt())
}

func TestApplyEntitlement_Banned(t *testing.T) {
	s := newTestSubscriber(t)
	s.Revoke(testNow)

	err := s.ApplyEntitlement(Entitlement{Days: 30, Source: vo.SourcePaid}, testNow)
	assert.ErrorIs(t, err, ErrSubscriberBanned)
	assert.Equal(t, vo.RoleBanned, s.Role())

	require.NoError(t, s.ApplyEntitlement(Entitlement{Days: 7, Source: vo.SourceManual}, testNow))
	assert.Equal(t, vo.RoleActive, s.Role())
}

func TestApplyEntitlement_AdminKeepsRole(t *testing.T) {
	s := newTestSubscriber(t)
	s.PromoteToAdmin(testNow)

	require.NoError(t, s.ApplyEntitlement(Entitlement{Days: 1, Source: vo.SourceManual}, testNow))
	assert.Equal(t, vo.RoleAdmin, s.Role())
}

func TestApplyEntitlement_Invalid(t *testing.T) {
	s := newTestSubscriber(t)
	assert.Error(t, s.ApplyEntitlement(Entitlement{Days: 0, Source: vo.SourcePaid}, testNow))
	assert.Error(t, s.ApplyEntitlement(Entitlement{Days: 1, TrafficLimitGB: -1, Source: vo.SourcePaid}, testNow))
	assert.Error(t, s.ApplyEntitlement(Entitlement{Days: 1, Source: "gift"}, testNow))
}

func TestCanConnect(t *testing.T) {
	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)

	tests := []struct {
		name    string
		params  ReconstructParams
		wantErr error
	}{
		{"active", ReconstructParams{Role: vo.RoleActive, ExpiresAt: &future, TrafficLimitGB: 10, UsedTrafficGB: 1}, nil},
		{"expired", ReconstructParams{Role: vo.RoleActive, ExpiresAt: &past}, ErrAccessExpired},
		{"never granted", ReconstructParams{Role: vo.RoleTrialEligible}, ErrAccessExpired},
		{"banned", ReconstructParams{Role: vo.RoleBanned, ExpiresAt: &future}, ErrSubscriberBanned},
		{"over quota", ReconstructParams{Role: vo.RoleActive, ExpiresAt: &future, TrafficLimitGB: 5, UsedTrafficGB: 5}, ErrTrafficExceeded},
		{"unlimited quota", ReconstructParams{Role: vo.RoleActive, ExpiresAt: &future, UsedTrafficGB: 9000}, nil},
		{"admin without expiry", ReconstructParams{Role: vo.RoleAdmin}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ReconstructSubscriber(tt.params)
			err := s.CanConnect(testNow)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRecordUsage_Monotonic(t *testing.T) {
	s := newTestSubscriber(t)

	assert.True(t, s.RecordUsage(3.5, testNow))
	assert.False(t, s.RecordUsage(2, testNow))
	assert.Equal(t, 3.5, s.UsedTrafficGB())
}

func TestProvisioningMarkers(t *testing.T) {
	s := newTestSubscriber(t)
	require.NoError(t, s.ApplyEntitlement(Entitlement{Days: 7, TrafficLimitGB: 5, Source: vo.SourceTrial}, testNow))

	s.MarkProvisioningFailed("node timeout", testNow)
	assert.True(t, s.ProvisioningPending())
	assert.Equal(t, "node timeout", s.ProvisioningError())

	s.MarkProvisioned("de-1", testNow)
	assert.False(t, s.ProvisioningPending())
	assert.Empty(t, s.ProvisioningError())
	assert.Equal(t, "de-1", s.AssignedNode())

	s.Revoke(testNow)
	assert.False(t, s.NeedsAccount())
	s.MarkDeprovisioned(testNow)
	assert.Empty(t, s.AssignedNode())
}

func TestProperty_ExpiredRefusesConnectAndAdminNeverExpires(t *testing.T) {
	roles := []vo.Role{vo.RoleAdmin, vo.RoleActive, vo.RoleTrialEligible, vo.RoleBanned}

	rapid.Check(t, func(rt *rapid.T) {
		role := rapid.SampledFrom(roles).Draw(rt, "role")
		var expiresAt *time.Time
		if rapid.Bool().Draw(rt, "hasExpiry") {
			offset := time.Duration(rapid.Int64Range(-1e6, 1e6).Draw(rt, "offsetSeconds")) * time.Second
			e := testNow.Add(offset)
			expiresAt = &e
		}
		s := ReconstructSubscriber(ReconstructParams{
			Role:           role,
			ExpiresAt:      expiresAt,
			TrafficLimitGB: rapid.Float64Range(0, 1000).Draw(rt, "limit"),
			UsedTrafficGB:  rapid.Float64Range(0, 1000).Draw(rt, "used"),
		})

		if role == vo.RoleAdmin && s.IsExpired(testNow) {
			rt.Fatalf("admin reported expired")
		}
		if s.IsExpired(testNow) && s.CanConnect(testNow) == nil {
			rt.Fatalf("expired subscriber allowed to connect")
		}
	})
}

func TestProperty_ZeroLimitIsUnlimited(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := ReconstructSubscriber(ReconstructParams{
			Role:          vo.RoleActive,
			UsedTrafficGB: rapid.Float64Range(0, 1e9).Draw(rt, "used"),
		})
		if s.IsTrafficExceeded() {
			rt.Fatalf("zero limit reported exceeded at used=%v", s.UsedTrafficGB())
		}
	})
}
