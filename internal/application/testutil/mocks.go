// Package testutil provides in-memory implementations of the domain repositories
// and the provisioning client for application layer tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/relaygate/relaygate/internal/application/provisioning"
	"github.com/relaygate/relaygate/internal/domain/node"
	"github.com/relaygate/relaygate/internal/domain/payment"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/domain/plan"
	"github.com/relaygate/relaygate/internal/domain/shared"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	subvo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
	"github.com/relaygate/relaygate/internal/domain/trial"
)

// FixedClock returns a clock frozen at t that can be advanced.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Transactor runs fn directly. A single mutex serialises transactions so
// concurrent tests see the same isolation a single sqlite connection gives.
type Transactor struct {
	mu    sync.Mutex
	Calls int
}

type inTxKey struct{}

func (t *Transactor) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls++
	return fn(context.WithValue(ctx, inTxKey{}, true))
}

// MockSubscriberRepository stores copies so callers must Update to persist changes.
type MockSubscriberRepository struct {
	mu     sync.RWMutex
	rows   map[uint]subscriber.ReconstructParams
	nextID uint

	UpdateError error
	// ConflictsLeft makes the next n updates fail with ErrConcurrentModification.
	ConflictsLeft int
}

func NewMockSubscriberRepository() *MockSubscriberRepository {
	return &MockSubscriberRepository{rows: make(map[uint]subscriber.ReconstructParams)}
}

func subscriberRow(s *subscriber.Subscriber) subscriber.ReconstructParams {
	var expires *time.Time
	if s.ExpiresAt() != nil {
		e := *s.ExpiresAt()
		expires = &e
	}
	return subscriber.ReconstructParams{
		ID:                  s.ID(),
		ExternalID:          s.ExternalID(),
		Username:            s.Username(),
		Role:                s.Role(),
		ExpiresAt:           expires,
		TrafficLimitGB:      s.TrafficLimitGB(),
		UsedTrafficGB:       s.UsedTrafficGB(),
		DeviceLimit:         s.DeviceLimit(),
		AssignedNode:        s.AssignedNode(),
		Source:              s.Source(),
		ProvisioningPending: s.ProvisioningPending(),
		ProvisioningError:   s.ProvisioningError(),
		Version:             s.Version(),
		CreatedAt:           s.CreatedAt(),
		UpdatedAt:           s.UpdatedAt(),
	}
}

func (m *MockSubscriberRepository) Create(ctx context.Context, s *subscriber.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ExternalID == s.ExternalID() {
			return subscriber.ErrSubscriberExists
		}
	}
	m.nextID++
	s.SetID(m.nextID)
	s.SetVersion(1)
	m.rows[s.ID()] = subscriberRow(s)
	return nil
}

func (m *MockSubscriberRepository) Update(ctx context.Context, s *subscriber.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if m.ConflictsLeft > 0 {
		m.ConflictsLeft--
		return shared.ErrConcurrentModification
	}
	row, ok := m.rows[s.ID()]
	if !ok || row.Version != s.Version() {
		return shared.ErrConcurrentModification
	}
	s.SetVersion(s.Version() + 1)
	m.rows[s.ID()] = subscriberRow(s)
	return nil
}

func (m *MockSubscriberRepository) GetByID(ctx context.Context, id uint) (*subscriber.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return subscriber.ReconstructSubscriber(row), nil
}

func (m *MockSubscriberRepository) GetByExternalID(ctx context.Context, externalID int64) (*subscriber.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, row := range m.rows {
		if row.ExternalID == externalID {
			return subscriber.ReconstructSubscriber(row), nil
		}
	}
	return nil, nil
}

func (m *MockSubscriberRepository) ListPendingProvisioning(ctx context.Context, limit int) ([]*subscriber.Subscriber, error) {
	return m.list(limit, func(r subscriber.ReconstructParams) bool { return r.ProvisioningPending }), nil
}

func (m *MockSubscriberRepository) ListProvisioned(ctx context.Context, limit int) ([]*subscriber.Subscriber, error) {
	return m.list(limit, func(r subscriber.ReconstructParams) bool {
		return r.AssignedNode != "" && r.Role != subvo.RoleBanned
	}), nil
}

func (m *MockSubscriberRepository) CountByAssignedNode(ctx context.Context, nodeID string) (int64, error) {
	return int64(len(m.list(0, func(r subscriber.ReconstructParams) bool { return r.AssignedNode == nodeID }))), nil
}

func (m *MockSubscriberRepository) list(limit int, keep func(subscriber.ReconstructParams) bool) []*subscriber.Subscriber {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint, 0, len(m.rows))
	for id, row := range m.rows {
		if keep(row) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*subscriber.Subscriber, 0, len(ids))
	for _, id := range ids {
		out = append(out, subscriber.ReconstructSubscriber(m.rows[id]))
	}
	return out
}

// MockPaymentRepository enforces the unique provider payment id.
type MockPaymentRepository struct {
	mu     sync.RWMutex
	rows   map[uint]payment.ReconstructParams
	nextID uint

	ConflictsLeft int
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{rows: make(map[uint]payment.ReconstructParams)}
}

func paymentRow(p *payment.Payment) payment.ReconstructParams {
	meta := make(map[string]interface{}, len(p.Metadata()))
	for k, v := range p.Metadata() {
		meta[k] = v
	}
	return payment.ReconstructParams{
		ID:                p.ID(),
		ProviderPaymentID: p.ProviderPaymentID(),
		Provider:          p.Provider(),
		SubscriberID:      p.SubscriberID(),
		PlanID:            p.PlanID(),
		Amount:            p.Amount(),
		Description:       p.Description(),
		Status:            p.Status(),
		ConfirmationURL:   p.ConfirmationURL(),
		Metadata:          meta,
		CompletedAt:       p.CompletedAt(),
		TxRef:             p.TxRef(),
		Version:           p.Version(),
		CreatedAt:         p.CreatedAt(),
		UpdatedAt:         p.UpdatedAt(),
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ProviderPaymentID == p.ProviderPaymentID() {
			return payment.ErrDuplicatePayment
		}
	}
	m.nextID++
	p.SetID(m.nextID)
	p.SetVersion(1)
	m.rows[p.ID()] = paymentRow(p)
	return nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConflictsLeft > 0 {
		m.ConflictsLeft--
		return shared.ErrConcurrentModification
	}
	row, ok := m.rows[p.ID()]
	if !ok || row.Version != p.Version() {
		return shared.ErrConcurrentModification
	}
	if ref := p.TxRef(); ref != "" {
		for id, other := range m.rows {
			if id != p.ID() && other.TxRef == ref {
				return payment.ErrTxRefInUse
			}
		}
	}
	p.SetVersion(p.Version() + 1)
	m.rows[p.ID()] = paymentRow(p)
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uint) (*payment.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	return payment.ReconstructPayment(row), nil
}

func (m *MockPaymentRepository) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*payment.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, row := range m.rows {
		if row.ProviderPaymentID == providerPaymentID {
			return payment.ReconstructPayment(row), nil
		}
	}
	return nil, nil
}

func (m *MockPaymentRepository) GetByTxRef(ctx context.Context, txRef string) (*payment.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, row := range m.rows {
		if row.TxRef != "" && row.TxRef == txRef {
			return payment.ReconstructPayment(row), nil
		}
	}
	return nil, nil
}

func (m *MockPaymentRepository) ListOpenCreatedBefore(ctx context.Context, t time.Time, limit int) ([]*payment.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*payment.Payment
	for _, row := range m.rows {
		if row.Status.IsOpen() && row.CreatedAt.Before(t) {
			out = append(out, payment.ReconstructPayment(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockPaymentRepository) CountByPlanID(ctx context.Context, planID uint) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, row := range m.rows {
		if row.PlanID != nil && *row.PlanID == planID {
			n++
		}
	}
	return n, nil
}

// Status returns the stored status for assertions.
func (m *MockPaymentRepository) Status(providerPaymentID string) vo.PaymentStatus {
	p, _ := m.GetByProviderPaymentID(context.Background(), providerPaymentID)
	if p == nil {
		return ""
	}
	return p.Status()
}

type MockPlanRepository struct {
	mu     sync.RWMutex
	plans  map[uint]*plan.Plan
	nextID uint
}

func NewMockPlanRepository() *MockPlanRepository {
	return &MockPlanRepository{plans: make(map[uint]*plan.Plan)}
}

func (m *MockPlanRepository) Create(ctx context.Context, p *plan.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.SetID(m.nextID)
	m.plans[p.ID()] = p
	return nil
}

func (m *MockPlanRepository) Update(ctx context.Context, p *plan.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[p.ID()]; !ok {
		return plan.ErrPlanNotFound
	}
	m.plans[p.ID()] = p
	return nil
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id uint) (*plan.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plans[id], nil
}

func (m *MockPlanRepository) ListActive(ctx context.Context) ([]*plan.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*plan.Plan
	for _, p := range m.plans {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (m *MockPlanRepository) List(ctx context.Context) ([]*plan.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*plan.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// MockTrialRepository mirrors the partial unique index on active grants.
type MockTrialRepository struct {
	mu     sync.Mutex
	grants []*trial.Grant
	nextID uint
}

func NewMockTrialRepository() *MockTrialRepository {
	return &MockTrialRepository{}
}

func (m *MockTrialRepository) Create(ctx context.Context, g *trial.Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.grants {
		if existing.SubscriberID() == g.SubscriberID() && existing.Active() {
			return trial.ErrActiveGrantExists
		}
	}
	m.nextID++
	g.SetID(m.nextID)
	m.grants = append(m.grants, g)
	return nil
}

func (m *MockTrialRepository) GetActive(ctx context.Context, subscriberID uint) (*trial.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.grants {
		if g.SubscriberID() == subscriberID && g.Active() {
			return g, nil
		}
	}
	return nil, nil
}

func (m *MockTrialRepository) CountBySubscriber(ctx context.Context, subscriberID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, g := range m.grants {
		if g.SubscriberID() == subscriberID {
			n++
		}
	}
	return n, nil
}

func (m *MockTrialRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, g := range m.grants {
		if g.Active() && !now.Before(g.ExpiresAt()) {
			g.Expire()
			n++
		}
	}
	return n, nil
}

type MockNodeRepository struct {
	mu    sync.RWMutex
	nodes map[string]*node.Node
	loads map[string]int
}

func NewMockNodeRepository(nodes ...*node.Node) *MockNodeRepository {
	m := &MockNodeRepository{nodes: make(map[string]*node.Node), loads: make(map[string]int)}
	for i, n := range nodes {
		n.SetID(uint(i + 1))
		m.nodes[n.NodeID()] = n
	}
	return m
}

func (m *MockNodeRepository) Create(ctx context.Context, n *node.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[n.NodeID()]; ok {
		return node.ErrNodeExists
	}
	n.SetID(uint(len(m.nodes) + 1))
	m.nodes[n.NodeID()] = n
	return nil
}

func (m *MockNodeRepository) Update(ctx context.Context, n *node.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[n.NodeID()]; !ok {
		return node.ErrNodeNotFound
	}
	m.nodes[n.NodeID()] = n
	return nil
}

func (m *MockNodeRepository) GetByNodeID(ctx context.Context, nodeID string) (*node.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodes[nodeID], nil
}

func (m *MockNodeRepository) ListActive(ctx context.Context) ([]*node.Node, error) {
	all, _ := m.List(ctx)
	out := all[:0]
	for _, n := range all {
		if n.IsActive() {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *MockNodeRepository) List(ctx context.Context) ([]*node.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*node.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID() < out[j].NodeID() })
	return out, nil
}

func (m *MockNodeRepository) UpdateLoad(ctx context.Context, nodeID string, currentUsers int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads[nodeID] = currentUsers
	return nil
}

func (m *MockNodeRepository) Delete(ctx context.Context, nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, nodeID)
	return nil
}

// RecordedLoad returns the last load written through UpdateLoad.
func (m *MockNodeRepository) RecordedLoad(nodeID string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.loads[nodeID]
	return v, ok
}

// FakeNodeClient is an in-memory relay panel for one node.
type FakeNodeClient struct {
	mu       sync.Mutex
	NodeID   string
	accounts map[string]provisioning.Account
	Users    int
	Capacity int

	Err      error
	StatsErr error
	// StatsDelay blocks GetLoadStats until the context is done or the delay passes.
	StatsDelay time.Duration
	StatsCalls int
	Creates    int
	Updates    int
	Deletes    int
}

func (f *FakeNodeClient) CreateAccount(ctx context.Context, spec provisioning.AccountSpec) (*provisioning.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Creates++
	acc := provisioning.Account{
		Username:        spec.Username,
		Status:          "active",
		DataLimitBytes:  spec.TrafficLimitBytes,
		ExpiresAt:       spec.ExpiresAt,
		SubscriptionURL: "https://" + f.NodeID + "/sub/" + spec.Username,
	}
	f.accounts[spec.Username] = acc
	f.Users++
	return &acc, nil
}

func (f *FakeNodeClient) GetAccount(ctx context.Context, username string) (*provisioning.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	acc, ok := f.accounts[username]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func (f *FakeNodeClient) UpdateAccount(ctx context.Context, spec provisioning.AccountSpec) (*provisioning.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	acc, ok := f.accounts[spec.Username]
	if !ok {
		return nil, provisioning.ErrProvisioningFailed
	}
	f.Updates++
	acc.DataLimitBytes = spec.TrafficLimitBytes
	acc.ExpiresAt = spec.ExpiresAt
	f.accounts[spec.Username] = acc
	return &acc, nil
}

func (f *FakeNodeClient) DeleteAccount(ctx context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	if _, ok := f.accounts[username]; !ok {
		return false, nil
	}
	f.Deletes++
	delete(f.accounts, username)
	f.Users--
	return true, nil
}

func (f *FakeNodeClient) GetConnectionDescriptor(ctx context.Context, username string) (string, error) {
	acc, err := f.GetAccount(ctx, username)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", provisioning.ErrProvisioningFailed
	}
	return acc.SubscriptionURL, nil
}

func (f *FakeNodeClient) GetLoadStats(ctx context.Context) (*provisioning.LoadStats, error) {
	f.mu.Lock()
	f.StatsCalls++
	delay, statsErr := f.StatsDelay, f.StatsErr
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if statsErr != nil {
		return nil, statsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &provisioning.LoadStats{CurrentUsers: f.Users, CapacityHint: f.Capacity}, nil
}

// SetUsage overrides the reported traffic of an account.
func (f *FakeNodeClient) SetUsage(username string, usedBytes int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := f.accounts[username]
	acc.UsedTrafficBytes = usedBytes
	f.accounts[username] = acc
}

func (f *FakeNodeClient) HasAccount(username string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.accounts[username]
	return ok
}

// FakeClientFactory hands out one FakeNodeClient per node id.
type FakeClientFactory struct {
	mu      sync.Mutex
	clients map[string]*FakeNodeClient
}

func NewFakeClientFactory() *FakeClientFactory {
	return &FakeClientFactory{clients: make(map[string]*FakeNodeClient)}
}

func (f *FakeClientFactory) ForNode(n *node.Node) provisioning.Client {
	return f.Client(n.NodeID())
}

func (f *FakeClientFactory) Client(nodeID string) *FakeNodeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[nodeID]
	if !ok {
		c = &FakeNodeClient{NodeID: nodeID, accounts: make(map[string]provisioning.Account)}
		f.clients[nodeID] = c
	}
	return c
}

// StaticSelector always returns the same node or error.
type StaticSelector struct {
	Node *node.Node
	Err  error
}

func (s StaticSelector) SelectBest(ctx context.Context) (*node.Node, error) {
	return s.Node, s.Err
}

func (s StaticSelector) Reachable(ctx context.Context, nodeID string) (*node.Node, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Node == nil || s.Node.NodeID() != nodeID {
		return nil, node.ErrNodeUnavailable
	}
	return s.Node, nil
}

// NodeDirectory resolves ids from a fixed set.
type NodeDirectory map[string]*node.Node

func (d NodeDirectory) Find(ctx context.Context, nodeID string) (*node.Node, error) {
	n, ok := d[nodeID]
	if !ok {
		return nil, node.ErrNodeNotFound
	}
	return n, nil
}

// MustNode builds a node for tests.
func MustNode(nodeID string, capacity int) *node.Node {
	n, err := node.NewNode(node.Spec{
		NodeID:   nodeID,
		Endpoint: "https://" + nodeID + ".example.test",
		Username: "admin",
		Password: "secret",
		Capacity: capacity,
	}, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		panic(err)
	}
	return n
}
