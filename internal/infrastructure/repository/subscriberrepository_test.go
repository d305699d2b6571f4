package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/domain/shared"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	vo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
)

var testNow = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func TestSubscriberRepository_CreateAndGet(t *testing.T) {
	repo := NewSubscriberRepository(setupTestDB(t))
	ctx := context.Background()

	s, err := subscriber.NewSubscriber(1001, "alice", testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, s))
	assert.NotZero(t, s.ID())
	assert.Equal(t, 1, s.Version())

	t.Run("by external id", func(t *testing.T) {
		found, err := repo.GetByExternalID(ctx, 1001)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, s.ID(), found.ID())
		assert.Equal(t, vo.RoleTrialEligible, found.Role())
		assert.Nil(t, found.ExpiresAt())
	})

	t.Run("absent returns nil", func(t *testing.T) {
		found, err := repo.GetByExternalID(ctx, 9999)
		require.NoError(t, err)
		assert.Nil(t, found)

		byID, err := repo.GetByID(ctx, 9999)
		require.NoError(t, err)
		assert.Nil(t, byID)
	})

	t.Run("duplicate external id", func(t *testing.T) {
		dup, err := subscriber.NewSubscriber(1001, "alice2", testNow)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, dup), subscriber.ErrSubscriberExists)
	})
}

func TestSubscriberRepository_OptimisticUpdate(t *testing.T) {
	repo := NewSubscriberRepository(setupTestDB(t))
	ctx := context.Background()

	s, err := subscriber.NewSubscriber(2002, "", testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, s))

	first, err := repo.GetByID(ctx, s.ID())
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, s.ID())
	require.NoError(t, err)

	require.NoError(t, first.ApplyEntitlement(subscriber.Entitlement{Days: 30, TrafficLimitGB: 100, Source: vo.SourcePaid}, testNow))
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, 2, first.Version())

	second.Revoke(testNow)
	assert.ErrorIs(t, repo.Update(ctx, second), shared.ErrConcurrentModification)

	stored, err := repo.GetByID(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, vo.RoleActive, stored.Role())
	assert.Equal(t, 100.0, stored.TrafficLimitGB())
	require.NotNil(t, stored.ExpiresAt())
	assert.True(t, stored.ExpiresAt().Equal(testNow.Add(30*24*time.Hour)))
	assert.True(t, stored.ProvisioningPending())
}

func TestSubscriberRepository_Lists(t *testing.T) {
	repo := NewSubscriberRepository(setupTestDB(t))
	ctx := context.Background()

	mk := func(ext int64) *subscriber.Subscriber {
		s, err := subscriber.NewSubscriber(ext, "", testNow)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, s))
		return s
	}

	pending := mk(1)
	require.NoError(t, pending.ApplyEntitlement(subscriber.Entitlement{Days: 1, Source: vo.SourceManual}, testNow))
	require.NoError(t, repo.Update(ctx, pending))

	provisioned := mk(2)
	provisioned.MarkProvisioned("node-a", testNow)
	require.NoError(t, repo.Update(ctx, provisioned))

	banned := mk(3)
	banned.MarkProvisioned("node-a", testNow)
	banned.Revoke(testNow)
	require.NoError(t, repo.Update(ctx, banned))

	mk(4)

	list, err := repo.ListPendingProvisioning(ctx, 10)
	require.NoError(t, err)
	ids := externalIDs(list)
	assert.ElementsMatch(t, []int64{1, 3}, ids)

	list, err = repo.ListProvisioned(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, externalIDs(list))

	count, err := repo.CountByAssignedNode(ctx, "node-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	list, err = repo.ListPendingProvisioning(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func externalIDs(subs []*subscriber.Subscriber) []int64 {
	out := make([]int64, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.ExternalID())
	}
	return out
}
