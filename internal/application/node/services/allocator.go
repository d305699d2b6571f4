package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/relaygate/relaygate/internal/application/provisioning"
	"github.com/relaygate/relaygate/internal/domain/node"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/metrics"
)

const (
	DefaultCacheTTL     = 300 * time.Second
	DefaultPollTimeout  = 5 * time.Second
	DefaultPollParallel = 8

	// A snapshot missing any node is re-polled after this long instead of the
	// full cache TTL, so one failed poll does not hide a node for minutes.
	partialSnapshotTTL = 5 * time.Second
)

// NodeSource lists the nodes the allocator may choose from.
type NodeSource interface {
	ListActive(ctx context.Context) ([]*node.Node, error)
	Find(ctx context.Context, nodeID string) (*node.Node, error)
}

// LoadRecorder persists observed loads. Failures are logged and ignored.
type LoadRecorder interface {
	UpdateLoad(ctx context.Context, nodeID string, currentUsers int, at time.Time) error
}

type AllocatorConfig struct {
	CacheTTL     time.Duration
	PollTimeout  time.Duration
	PollParallel int
}

// NodeLoad is one entry of the allocator's view, as exposed to the admin API.
type NodeLoad struct {
	Node *node.Node
	Load node.Load
}

type loadSnapshot struct {
	fetchedAt time.Time
	loads     map[string]node.Load
	nodes     map[string]*node.Node
	// partial is set when a poll failed or no node answered.
	partial bool
}

// Allocator picks the least loaded node from a TTL-bounded snapshot of node loads.
// The snapshot is replaced atomically; concurrent refreshes collapse into one poll.
type Allocator struct {
	source   NodeSource
	clients  provisioning.ClientFactory
	recorder LoadRecorder
	cfg      AllocatorConfig
	now      biztime.Clock
	logger   logger.Interface

	snap  atomic.Pointer[loadSnapshot]
	group singleflight.Group
}

func NewAllocator(source NodeSource, clients provisioning.ClientFactory, recorder LoadRecorder, cfg AllocatorConfig, log logger.Interface) *Allocator {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.PollParallel <= 0 {
		cfg.PollParallel = DefaultPollParallel
	}
	return &Allocator{
		source:   source,
		clients:  clients,
		recorder: recorder,
		cfg:      cfg,
		now:      biztime.SystemClock,
		logger:   log,
	}
}

// WithClock overrides the time source used for TTL checks.
func (a *Allocator) WithClock(c biztime.Clock) *Allocator {
	a.now = c
	return a
}

// SelectBest returns the node with the lowest load ratio.
func (a *Allocator) SelectBest(ctx context.Context) (*node.Node, error) {
	snap, err := a.fresh(ctx)
	if err != nil {
		return nil, err
	}
	loads := make([]node.Load, 0, len(snap.loads))
	for _, l := range snap.loads {
		loads = append(loads, l)
	}
	ranked := node.Rank(loads)
	if len(ranked) == 0 {
		return nil, node.ErrNoNodeAvailable
	}
	return snap.nodes[ranked[0].NodeID], nil
}

// Get returns the load of one node, polling only that node when its entry is stale.
func (a *Allocator) Get(ctx context.Context, nodeID string) (node.Load, error) {
	if snap := a.snap.Load(); snap != nil {
		if l, ok := snap.loads[nodeID]; ok && a.isFresh(l.ObservedAt) {
			return l, nil
		}
	}

	n, err := a.source.Find(ctx, nodeID)
	if err != nil {
		return node.Load{}, err
	}
	if !n.IsActive() {
		return node.Load{}, fmt.Errorf("%w: %s is inactive", node.ErrNodeUnavailable, nodeID)
	}

	l, err := a.poll(ctx, n)
	if err != nil {
		return node.Load{}, fmt.Errorf("%w: %w", node.ErrNodeUnavailable, err)
	}
	a.merge(n, l)
	a.record(ctx, []node.Load{l})
	return l, nil
}

// Reachable returns the node when it is active and answered its last poll.
func (a *Allocator) Reachable(ctx context.Context, nodeID string) (*node.Node, error) {
	if _, err := a.Get(ctx, nodeID); err != nil {
		return nil, err
	}
	if snap := a.snap.Load(); snap != nil {
		if n, ok := snap.nodes[nodeID]; ok {
			return n, nil
		}
	}
	return a.source.Find(ctx, nodeID)
}

// Snapshot returns the current view without triggering a refresh.
func (a *Allocator) Snapshot() []NodeLoad {
	snap := a.snap.Load()
	if snap == nil {
		return nil
	}
	loads := make([]node.Load, 0, len(snap.loads))
	for _, l := range snap.loads {
		loads = append(loads, l)
	}
	out := make([]NodeLoad, 0, len(loads))
	for _, l := range sortedAll(loads) {
		out = append(out, NodeLoad{Node: snap.nodes[l.NodeID], Load: l})
	}
	return out
}

// Invalidate drops the snapshot; the next SelectBest polls again.
func (a *Allocator) Invalidate() {
	a.snap.Store(nil)
}

// Refresh polls every active node and replaces the snapshot. Nodes that fail to
// answer are left out of the new snapshot.
func (a *Allocator) Refresh(ctx context.Context) error {
	_, err, _ := a.group.Do("refresh", func() (interface{}, error) {
		return a.refresh(ctx)
	})
	return err
}

func (a *Allocator) fresh(ctx context.Context) (*loadSnapshot, error) {
	if snap := a.snap.Load(); snap != nil && a.snapshotFresh(snap) {
		return snap, nil
	}
	v, err, _ := a.group.Do("refresh", func() (interface{}, error) {
		return a.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*loadSnapshot), nil
}

func (a *Allocator) refresh(ctx context.Context) (*loadSnapshot, error) {
	nodes, err := a.source.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	results := make([]*node.Load, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.PollParallel)
	for i, n := range nodes {
		g.Go(func() error {
			l, err := a.poll(gctx, n)
			if err != nil {
				metrics.NodePollFailuresTotal.WithLabelValues(n.NodeID()).Inc()
				a.logger.Warnw("node load poll failed",
					"node_id", n.NodeID(),
					"error", err,
				)
				return nil
			}
			results[i] = &l
			return nil
		})
	}
	_ = g.Wait()

	snap := &loadSnapshot{
		fetchedAt: a.now(),
		loads:     make(map[string]node.Load, len(nodes)),
		nodes:     make(map[string]*node.Node, len(nodes)),
	}
	observed := make([]node.Load, 0, len(nodes))
	for i, n := range nodes {
		if results[i] == nil {
			continue
		}
		snap.loads[n.NodeID()] = *results[i]
		snap.nodes[n.NodeID()] = n
		observed = append(observed, *results[i])
		metrics.NodeLoadRatio.WithLabelValues(n.NodeID()).Set(results[i].Ratio())
	}
	snap.partial = len(observed) < len(nodes) || len(observed) == 0
	a.snap.Store(snap)
	metrics.AllocatorRefreshesTotal.Inc()

	a.logger.Debugw("node loads refreshed",
		"polled", len(nodes),
		"available", len(observed),
	)
	a.record(ctx, observed)
	return snap, nil
}

// poll asks one node for its load. The declared capacity wins; the node's own
// hint only fills in when no capacity is configured.
func (a *Allocator) poll(ctx context.Context, n *node.Node) (node.Load, error) {
	pctx, cancel := context.WithTimeout(ctx, a.cfg.PollTimeout)
	defer cancel()

	stats, err := a.clients.ForNode(n).GetLoadStats(pctx)
	if err != nil {
		return node.Load{}, err
	}
	if stats == nil {
		return node.Load{}, errors.New("empty load stats")
	}
	capacity := n.Capacity()
	if capacity == 0 && stats.CapacityHint > 0 {
		capacity = stats.CapacityHint
	}
	return node.Load{
		NodeID:       n.NodeID(),
		CurrentUsers: stats.CurrentUsers,
		Capacity:     capacity,
		ObservedAt:   a.now(),
	}, nil
}

// merge copies the current snapshot with one entry replaced.
func (a *Allocator) merge(n *node.Node, l node.Load) {
	for {
		old := a.snap.Load()
		next := &loadSnapshot{
			loads: map[string]node.Load{},
			nodes: map[string]*node.Node{},
		}
		if old != nil {
			next.fetchedAt = old.fetchedAt
			next.partial = old.partial
			for k, v := range old.loads {
				next.loads[k] = v
			}
			for k, v := range old.nodes {
				next.nodes[k] = v
			}
		}
		next.loads[n.NodeID()] = l
		next.nodes[n.NodeID()] = n
		if a.snap.CompareAndSwap(old, next) {
			return
		}
	}
}

func (a *Allocator) record(ctx context.Context, loads []node.Load) {
	if a.recorder == nil {
		return
	}
	for _, l := range loads {
		if err := a.recorder.UpdateLoad(ctx, l.NodeID, l.CurrentUsers, l.ObservedAt); err != nil {
			a.logger.Warnw("failed to persist node load", "node_id", l.NodeID, "error", err)
		}
	}
}

func (a *Allocator) isFresh(at time.Time) bool {
	return !at.IsZero() && a.now().Sub(at) < a.cfg.CacheTTL
}

func (a *Allocator) snapshotFresh(snap *loadSnapshot) bool {
	if !snap.partial {
		return a.isFresh(snap.fetchedAt)
	}
	ttl := min(partialSnapshotTTL, a.cfg.CacheTTL)
	return !snap.fetchedAt.IsZero() && a.now().Sub(snap.fetchedAt) < ttl
}

// sortedAll orders every load, full nodes included, for display.
func sortedAll(loads []node.Load) []node.Load {
	out := append([]node.Load(nil), loads...)
	sort.Slice(out, func(i, j int) bool { return node.Less(out[i], out[j]) })
	return out
}
