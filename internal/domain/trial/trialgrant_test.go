package trial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	subvo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
)

func TestPolicy_IsEligible(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		history History
		want    bool
	}{
		{"first_only fresh", PolicyFirstOnly, History{}, true},
		{"first_only active", PolicyFirstOnly, History{HasActiveGrant: true, TotalGrants: 1}, false},
		{"first_only lapsed", PolicyFirstOnly, History{TotalGrants: 1}, false},
		{"after_expiry fresh", PolicyAfterExpiry, History{}, true},
		{"after_expiry active", PolicyAfterExpiry, History{HasActiveGrant: true, TotalGrants: 1}, false},
		{"after_expiry lapsed", PolicyAfterExpiry, History{TotalGrants: 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.IsEligible(tt.history))
		})
	}
}

func TestNewGrant(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	g, err := NewGrant(9, 7, 5, now)
	require.NoError(t, err)

	assert.Equal(t, now.Add(7*24*time.Hour), g.ExpiresAt())
	assert.True(t, g.IsActiveAt(now))
	assert.False(t, g.IsActiveAt(g.ExpiresAt()))

	e := g.Entitlement()
	assert.Equal(t, 7, e.Days)
	assert.Equal(t, 5.0, e.TrafficLimitGB)
	assert.Equal(t, subvo.SourceTrial, e.Source)

	g.Expire()
	assert.False(t, g.IsActiveAt(now))

	_, err = NewGrant(0, 7, 5, now)
	assert.Error(t, err)
	_, err = NewGrant(9, 0, 5, now)
	assert.Error(t, err)
}
