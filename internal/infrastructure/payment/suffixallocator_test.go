package payment

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/application/payment/suffixalloc"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func newTestSuffixAllocator(t *testing.T, start time.Time) (*SuffixAllocator, *stepClock) {
	t.Helper()
	clock := &stepClock{t: start}
	return NewSuffixAllocator(setupTestDB(t), logger.NewNopLogger()).WithClock(clock.now), clock
}

func TestSuffixAllocator_SequentialSuffixes(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	alloc, _ := newTestSuffixAllocator(t, start)
	ctx := context.Background()
	base := big.NewInt(10_000_000)

	a, err := alloc.Allocate(ctx, testWallet, base, 3, "crypto_a", time.Hour)
	require.NoError(t, err)
	b, err := alloc.Allocate(ctx, testWallet, base, 3, "crypto_b", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, uint(1), a.Suffix)
	assert.Equal(t, "10000001", a.FullAmountRaw.String())
	assert.Equal(t, uint(2), b.Suffix)
	assert.Equal(t, "10000002", b.FullAmountRaw.String())
	assert.Equal(t, start.Add(time.Hour), a.ExpiresAt.UTC())

	other, err := alloc.Allocate(ctx, testWallet, big.NewInt(20_000_000), 3, "crypto_c", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, uint(1), other.Suffix)

	got, err := alloc.Get(ctx, "crypto_b")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.FullAmountRaw.Cmp(b.FullAmountRaw))
	assert.Equal(t, 0, got.BaseAmountRaw.Cmp(base))

	missing, err := alloc.Get(ctx, "crypto_none")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSuffixAllocator_Exhaustion(t *testing.T) {
	alloc, _ := newTestSuffixAllocator(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()
	base := big.NewInt(5_000_000)

	for _, id := range []string{"crypto_1", "crypto_2"} {
		_, err := alloc.Allocate(ctx, testWallet, base, 2, id, time.Hour)
		require.NoError(t, err)
	}
	_, err := alloc.Allocate(ctx, testWallet, base, 2, "crypto_3", time.Hour)
	assert.ErrorIs(t, err, suffixalloc.ErrNoSuffixAvailable)
}

func TestSuffixAllocator_ReuseAfterCooldown(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	alloc, clock := newTestSuffixAllocator(t, start)
	ctx := context.Background()
	base := big.NewInt(5_000_000)

	_, err := alloc.Allocate(ctx, testWallet, base, 1, "crypto_old", time.Hour)
	require.NoError(t, err)

	clock.t = start.Add(90 * time.Minute)
	_, err = alloc.Allocate(ctx, testWallet, base, 1, "crypto_early", time.Hour)
	assert.ErrorIs(t, err, suffixalloc.ErrNoSuffixAvailable, "expired reservation is still cooling down")

	clock.t = start.Add(2*time.Hour + time.Minute)
	fresh, err := alloc.Allocate(ctx, testWallet, base, 1, "crypto_new", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, uint(1), fresh.Suffix)

	old, err := alloc.Get(ctx, "crypto_old")
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestSuffixAllocator_CleanupExpired(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	alloc, clock := newTestSuffixAllocator(t, start)
	ctx := context.Background()

	_, err := alloc.Allocate(ctx, testWallet, big.NewInt(1_000_000), 10, "crypto_short", time.Minute)
	require.NoError(t, err)
	_, err = alloc.Allocate(ctx, testWallet, big.NewInt(1_000_000), 10, "crypto_long", 24*time.Hour)
	require.NoError(t, err)

	clock.t = start.Add(2 * time.Hour)
	n, err := alloc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	short, err := alloc.Get(ctx, "crypto_short")
	require.NoError(t, err)
	assert.Nil(t, short)
	long, err := alloc.Get(ctx, "crypto_long")
	require.NoError(t, err)
	assert.NotNil(t, long)
}

func TestLowestFreeSuffix(t *testing.T) {
	tests := []struct {
		name  string
		taken []uint
		limit uint
		want  uint
	}{
		{"none taken", nil, 5, 1},
		{"gap in middle", []uint{1, 2, 4}, 5, 3},
		{"unsorted", []uint{3, 1, 2}, 5, 4},
		{"full", []uint{1, 2, 3}, 3, 0},
		{"taken above limit ignored", []uint{7}, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lowestFreeSuffix(tt.taken, tt.limit))
		})
	}
}
