package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/relaygate/relaygate/internal/application/testutil"
	"github.com/relaygate/relaygate/internal/domain/node"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

type allocFixture struct {
	clients *testutil.FakeClientFactory
	repo    *testutil.MockNodeRepository
	clock   *testutil.FixedClock
	alloc   *Allocator
}

func newAllocFixture(t *testing.T, nodes ...*node.Node) *allocFixture {
	t.Helper()
	f := &allocFixture{
		clients: testutil.NewFakeClientFactory(),
		repo:    testutil.NewMockNodeRepository(nodes...),
		clock:   testutil.NewFixedClock(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)),
	}
	registry, err := NewNodeRegistry(f.repo, nil, logger.NewNopLogger())
	require.NoError(t, err)
	f.alloc = NewAllocator(registry, f.clients, registry, AllocatorConfig{
		CacheTTL:    300 * time.Second,
		PollTimeout: 50 * time.Millisecond,
	}, logger.NewNopLogger()).WithClock(f.clock.Now)
	return f
}

func (f *allocFixture) load(nodeID string, users int) {
	f.clients.Client(nodeID).Users = users
}

func TestAllocator_SelectsLowestRatio(t *testing.T) {
	// A: 50/100, B: 10/0 (unlimited), C: 90/100
	f := newAllocFixture(t,
		testutil.MustNode("A", 100),
		testutil.MustNode("B", 0),
		testutil.MustNode("C", 100),
	)
	f.load("A", 50)
	f.load("B", 10)
	f.load("C", 90)

	got, err := f.alloc.SelectBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "B", got.NodeID())

	// A drops to 5/100, ratio 0.05 beats the unlimited sentinel
	f.load("A", 5)
	f.alloc.Invalidate()
	got, err = f.alloc.SelectBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", got.NodeID())
}

func TestAllocator_ExcludesFullAndFailingNodes(t *testing.T) {
	f := newAllocFixture(t,
		testutil.MustNode("full", 10),
		testutil.MustNode("down", 100),
		testutil.MustNode("ok", 100),
	)
	f.load("full", 10)
	f.load("ok", 99)
	f.clients.Client("down").StatsErr = errors.New("dial tcp: refused")

	got, err := f.alloc.SelectBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", got.NodeID())

	snap := f.alloc.Snapshot()
	ids := make([]string, 0, len(snap))
	for _, e := range snap {
		ids = append(ids, e.Node.NodeID())
	}
	assert.ElementsMatch(t, []string{"full", "ok"}, ids)
}

func TestAllocator_NoNodeAvailable(t *testing.T) {
	f := newAllocFixture(t, testutil.MustNode("full", 1))
	f.load("full", 1)

	_, err := f.alloc.SelectBest(context.Background())
	assert.ErrorIs(t, err, node.ErrNoNodeAvailable)
}

func TestAllocator_TieBreaksOnNodeID(t *testing.T) {
	f := newAllocFixture(t,
		testutil.MustNode("b", 100),
		testutil.MustNode("a", 100),
		testutil.MustNode("u", 0),
	)
	f.load("a", 10)
	f.load("b", 10)
	f.load("u", 0)

	// a, b and u all rank at 0.1; finite nodes first, then by id
	got, err := f.alloc.SelectBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", got.NodeID())
}

func TestAllocator_SnapshotHonoursTTL(t *testing.T) {
	f := newAllocFixture(t, testutil.MustNode("A", 100))
	client := f.clients.Client("A")

	_, err := f.alloc.SelectBest(context.Background())
	require.NoError(t, err)
	_, err = f.alloc.SelectBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, client.StatsCalls)

	f.clock.Advance(301 * time.Second)
	_, err = f.alloc.SelectBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, client.StatsCalls)
}

func TestAllocator_FailedPollRetriedBeforeTTL(t *testing.T) {
	tests := []struct {
		name  string
		nodes []*node.Node
	}{
		{"only node fails", []*node.Node{testutil.MustNode("A", 100)}},
		{"one of two fails", []*node.Node{testutil.MustNode("A", 100), testutil.MustNode("B", 100)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAllocFixture(t, tt.nodes...)
			f.load("A", 0)
			f.load("B", 90)
			client := f.clients.Client("A")
			client.StatsErr = errors.New("dial tcp: i/o timeout")

			first, err := f.alloc.SelectBest(context.Background())
			if len(tt.nodes) == 1 {
				assert.ErrorIs(t, err, node.ErrNoNodeAvailable)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "B", first.NodeID())
			}

			client.StatsErr = nil
			f.clock.Advance(10 * time.Second)

			got, err := f.alloc.SelectBest(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "A", got.NodeID())
			assert.Equal(t, 2, client.StatsCalls)
		})
	}
}

func TestAllocator_PollTimeoutExcludesSlowNode(t *testing.T) {
	f := newAllocFixture(t, testutil.MustNode("slow", 100), testutil.MustNode("fast", 100))
	f.clients.Client("slow").StatsDelay = time.Second
	f.load("slow", 0)
	f.load("fast", 80)

	got, err := f.alloc.SelectBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fast", got.NodeID())
}

func TestAllocator_GetPollsSingleStaleNode(t *testing.T) {
	f := newAllocFixture(t, testutil.MustNode("A", 100), testutil.MustNode("B", 100))
	f.load("A", 30)

	l, err := f.alloc.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 30, l.CurrentUsers)
	assert.Equal(t, 1, f.clients.Client("A").StatsCalls)
	assert.Equal(t, 0, f.clients.Client("B").StatsCalls)

	// cached now
	_, err = f.alloc.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 1, f.clients.Client("A").StatsCalls)

	recorded, ok := f.repo.RecordedLoad("A")
	assert.True(t, ok)
	assert.Equal(t, 30, recorded)
}

func TestAllocator_GetErrors(t *testing.T) {
	f := newAllocFixture(t, testutil.MustNode("A", 100))
	f.clients.Client("A").StatsErr = errors.New("boom")

	_, err := f.alloc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, node.ErrNodeNotFound)

	_, err = f.alloc.Get(context.Background(), "A")
	assert.ErrorIs(t, err, node.ErrNodeUnavailable)

	_, err = f.alloc.Reachable(context.Background(), "A")
	assert.ErrorIs(t, err, node.ErrNodeUnavailable)
}

func TestAllocator_ConcurrentSelectCollapsesRefresh(t *testing.T) {
	f := newAllocFixture(t, testutil.MustNode("A", 100))
	f.clients.Client("A").StatsDelay = 20 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := f.alloc.SelectBest(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "A", n.NodeID())
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, f.clients.Client("A").StatsCalls, 2)
}

func TestAllocator_CapacityHintOnlyForUndeclared(t *testing.T) {
	f := newAllocFixture(t, testutil.MustNode("declared", 100), testutil.MustNode("hinted", 0))
	f.clients.Client("declared").Capacity = 10
	f.clients.Client("hinted").Capacity = 10
	f.load("declared", 50)
	f.load("hinted", 5)

	require.NoError(t, f.alloc.Refresh(context.Background()))
	byID := map[string]node.Load{}
	for _, e := range f.alloc.Snapshot() {
		byID[e.Node.NodeID()] = e.Load
	}
	assert.Equal(t, 100, byID["declared"].Capacity)
	assert.Equal(t, 10, byID["hinted"].Capacity)
	assert.InDelta(t, 0.5, byID["hinted"].Ratio(), 1e-9)
}

func TestAllocator_SelectionIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 6).Draw(t, "count")
		f := &allocFixture{
			clients: testutil.NewFakeClientFactory(),
			clock:   testutil.NewFixedClock(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)),
		}
		var nodes []*node.Node
		for i := 0; i < count; i++ {
			id := string(rune('a' + i))
			capacity := rapid.IntRange(0, 20).Draw(t, "capacity")
			nodes = append(nodes, testutil.MustNode(id, capacity))
			f.clients.Client(id).Users = rapid.IntRange(0, 25).Draw(t, "users")
		}
		f.repo = testutil.NewMockNodeRepository(nodes...)
		registry, _ := NewNodeRegistry(f.repo, nil, logger.NewNopLogger())
		f.alloc = NewAllocator(registry, f.clients, nil, AllocatorConfig{}, logger.NewNopLogger()).WithClock(f.clock.Now)

		first, err1 := f.alloc.SelectBest(context.Background())
		f.alloc.Invalidate()
		second, err2 := f.alloc.SelectBest(context.Background())
		if (err1 == nil) != (err2 == nil) {
			t.Fatalf("selection errors differ: %v vs %v", err1, err2)
		}
		if err1 != nil {
			return
		}
		if first.NodeID() != second.NodeID() {
			t.Fatalf("selected %s then %s", first.NodeID(), second.NodeID())
		}
		chosen, _ := f.alloc.Get(context.Background(), first.NodeID())
		for _, e := range f.alloc.Snapshot() {
			if e.Load.HasRoom() && node.Less(e.Load, chosen) {
				t.Fatalf("%s ranks ahead of chosen %s", e.Load.NodeID, chosen.NodeID)
			}
		}
	})
}

func TestNodeRegistry_FallsBackToStaticNodes(t *testing.T) {
	repo := testutil.NewMockNodeRepository()
	specs := []node.Spec{
		{NodeID: "s1", Endpoint: "https://s1.example.test", Capacity: 10},
		{NodeID: "s2", Endpoint: "https://s2.example.test"},
	}
	registry, err := NewNodeRegistry(repo, specs, logger.NewNopLogger())
	require.NoError(t, err)

	nodes, err := registry.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "s1", nodes[0].NodeID())
	assert.Equal(t, "config", registry.Source(context.Background()))

	require.NoError(t, repo.Create(context.Background(), testutil.MustNode("db1", 5)))
	nodes, err = registry.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "db1", nodes[0].NodeID())
	assert.Equal(t, "database", registry.Source(context.Background()))

	// static nodes stay resolvable for cleanup
	n, err := registry.Find(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, "s2", n.NodeID())

	_, err = registry.Find(context.Background(), "nope")
	assert.ErrorIs(t, err, node.ErrNodeNotFound)
}

func TestNodeRegistry_RejectsDuplicateIDs(t *testing.T) {
	_, err := NewNodeRegistry(nil, []node.Spec{
		{NodeID: "x", Endpoint: "https://x.example.test"},
		{NodeID: "x", Endpoint: "https://y.example.test"},
	}, logger.NewNopLogger())
	assert.Error(t, err)
}
