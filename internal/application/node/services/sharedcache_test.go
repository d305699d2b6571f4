package services

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/application/testutil"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

type countingPublisher struct {
	calls atomic.Int32
	err   error
}

func (p *countingPublisher) PublishNodesChanged(context.Context, string) error {
	p.calls.Add(1)
	return p.err
}

func TestSharedLoadCache_InvalidateBroadcasts(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"published", nil},
		{"publish failure still invalidates locally", assert.AnError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAllocFixture(t, testutil.MustNode("A", 10))
			_, err := f.alloc.SelectBest(context.Background())
			require.NoError(t, err)
			require.NotEmpty(t, f.alloc.Snapshot())

			pub := &countingPublisher{err: tt.err}
			cache := NewSharedLoadCache(f.alloc, pub, logger.NewNopLogger())
			cache.Invalidate()

			assert.Empty(t, f.alloc.Snapshot())
			assert.EqualValues(t, 1, pub.calls.Load())
		})
	}
}
