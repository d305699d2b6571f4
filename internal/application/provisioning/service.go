package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/relaygate/relaygate/internal/domain/node"
	"github.com/relaygate/relaygate/internal/domain/shared"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/db"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/metrics"
)

const maxPersistAttempts = 3

// SyncResult reports what Sync did for one subscriber.
type SyncResult struct {
	NodeID      string
	Deprovision bool
	Account     *Account
}

type Service struct {
	subscribers subscriber.Repository
	txMgr       db.Transactor
	selector    NodeSelector
	directory   NodeDirectory
	clients     ClientFactory
	timeout     time.Duration
	now         biztime.Clock
	logger      logger.Interface
}

func NewService(
	subscribers subscriber.Repository,
	txMgr db.Transactor,
	selector NodeSelector,
	directory NodeDirectory,
	clients ClientFactory,
	timeout time.Duration,
	logger logger.Interface,
) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		subscribers: subscribers,
		txMgr:       txMgr,
		selector:    selector,
		directory:   directory,
		clients:     clients,
		timeout:     timeout,
		now:         biztime.SystemClock,
		logger:      logger,
	}
}

// WithClock overrides the time source; used by tests.
func (s *Service) WithClock(c biztime.Clock) *Service {
	s.now = c
	return s
}

// Sync brings the remote account of a subscriber in line with its committed
// entitlement and records the outcome. It runs outside any caller transaction:
// a failure leaves the subscriber marked pending for the background pass.
func (s *Service) Sync(ctx context.Context, subscriberID uint) (*SyncResult, error) {
	sub, err := s.subscribers.GetByID(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriber: %w", err)
	}
	if sub == nil {
		return nil, subscriber.ErrSubscriberNotFound
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result *SyncResult
	var opErr error
	if sub.NeedsAccount() {
		result, opErr = s.provision(opCtx, sub)
	} else {
		result, opErr = s.deprovision(opCtx, sub)
	}

	if persistErr := s.persist(ctx, sub, result, opErr); persistErr != nil {
		s.logger.Errorw("failed to record provisioning outcome",
			"subscriber_id", sub.ID(),
			"error", persistErr,
		)
		if opErr == nil {
			opErr = persistErr
		}
	}
	if opErr != nil {
		return nil, opErr
	}
	return result, nil
}

// ConnectionDescriptor returns the subscription link for a subscriber that is allowed to connect.
func (s *Service) ConnectionDescriptor(ctx context.Context, sub *subscriber.Subscriber) (string, error) {
	if sub.AssignedNode() == "" {
		return "", subscriber.ErrNotProvisioned
	}
	n, err := s.directory.Find(ctx, sub.AssignedNode())
	if err != nil {
		return "", err
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	desc, err := s.clients.ForNode(n).GetConnectionDescriptor(opCtx, sub.AccountName())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}
	return desc, nil
}

// Account reads the remote account of a provisioned subscriber; nil when absent.
func (s *Service) Account(ctx context.Context, sub *subscriber.Subscriber) (*Account, error) {
	if sub.AssignedNode() == "" {
		return nil, subscriber.ErrNotProvisioned
	}
	n, err := s.directory.Find(ctx, sub.AssignedNode())
	if err != nil {
		return nil, err
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.clients.ForNode(n).GetAccount(opCtx, sub.AccountName())
}

func (s *Service) provision(ctx context.Context, sub *subscriber.Subscriber) (res *SyncResult, err error) {
	start := time.Now()
	defer func() { observe("provision", start, err) }()

	target, err := s.target(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}

	client := s.clients.ForNode(target)
	spec := AccountSpec{
		Username:          sub.AccountName(),
		TrafficLimitBytes: GBToBytes(sub.TrafficLimitGB()),
		ExpiresAt:         sub.ExpiresAt(),
		DeviceLimit:       sub.DeviceLimit(),
	}

	existing, err := client.GetAccount(ctx, spec.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: node %s: %w", ErrProvisioningFailed, target.NodeID(), err)
	}

	var account *Account
	if existing != nil {
		account, err = client.UpdateAccount(ctx, spec)
	} else {
		account, err = client.CreateAccount(ctx, spec)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: node %s: %w", ErrProvisioningFailed, target.NodeID(), err)
	}

	if prev := sub.AssignedNode(); prev != "" && prev != target.NodeID() {
		s.cleanupPrevious(ctx, prev, spec.Username)
	}

	s.logger.Infow("subscriber provisioned",
		"subscriber_id", sub.ID(),
		"node_id", target.NodeID(),
		"created", existing == nil,
	)
	return &SyncResult{NodeID: target.NodeID(), Account: account}, nil
}

// target keeps renewals on the node that already holds the account.
func (s *Service) target(ctx context.Context, sub *subscriber.Subscriber) (*node.Node, error) {
	if assigned := sub.AssignedNode(); assigned != "" {
		n, err := s.selector.Reachable(ctx, assigned)
		if err == nil {
			return n, nil
		}
		s.logger.Warnw("assigned node unavailable, selecting another",
			"subscriber_id", sub.ID(),
			"node_id", assigned,
			"error", err,
		)
	}
	return s.selector.SelectBest(ctx)
}

func (s *Service) cleanupPrevious(ctx context.Context, nodeID, username string) {
	n, err := s.directory.Find(ctx, nodeID)
	if err != nil {
		s.logger.Warnw("previous node not found for cleanup", "node_id", nodeID, "error", err)
		return
	}
	if _, err := s.clients.ForNode(n).DeleteAccount(ctx, username); err != nil {
		s.logger.Warnw("failed to remove account from previous node",
			"node_id", nodeID,
			"username", username,
			"error", err,
		)
	}
}

func (s *Service) deprovision(ctx context.Context, sub *subscriber.Subscriber) (res *SyncResult, err error) {
	start := time.Now()
	defer func() { observe("deprovision", start, err) }()

	res = &SyncResult{Deprovision: true}
	if sub.AssignedNode() == "" {
		return res, nil
	}

	n, err := s.directory.Find(ctx, sub.AssignedNode())
	if errors.Is(err, node.ErrNodeNotFound) {
		s.logger.Warnw("assigned node no longer configured, dropping assignment",
			"subscriber_id", sub.ID(),
			"node_id", sub.AssignedNode(),
		)
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}

	deleted, err := s.clients.ForNode(n).DeleteAccount(ctx, sub.AccountName())
	if err != nil {
		return nil, fmt.Errorf("%w: node %s: %w", ErrProvisioningFailed, n.NodeID(), err)
	}
	s.logger.Infow("subscriber deprovisioned",
		"subscriber_id", sub.ID(),
		"node_id", n.NodeID(),
		"existed", deleted,
	)
	res.NodeID = n.NodeID()
	return res, nil
}

// persist records the outcome unless the subscriber changed while the remote call
// was in flight; in that case the pending flag stays for the next pass.
func (s *Service) persist(ctx context.Context, snapshot *subscriber.Subscriber, res *SyncResult, opErr error) error {
	var err error
	for attempt := 0; attempt < maxPersistAttempts; attempt++ {
		err = s.txMgr.RunInTransaction(ctx, func(txCtx context.Context) error {
			current, err := s.subscribers.GetByID(txCtx, snapshot.ID())
			if err != nil {
				return err
			}
			if current == nil {
				return subscriber.ErrSubscriberNotFound
			}

			now := s.now()
			switch {
			case opErr != nil:
				current.MarkProvisioningFailed(truncate(opErr.Error(), 500), now)
			case current.Version() != snapshot.Version():
				s.logger.Infow("subscriber changed during provisioning, leaving it pending",
					"subscriber_id", current.ID(),
				)
				if res.Deprovision || res.NodeID == current.AssignedNode() {
					return nil
				}
				current.AssignNode(res.NodeID, now)
			case res.Deprovision:
				current.MarkDeprovisioned(now)
			default:
				current.MarkProvisioned(res.NodeID, now)
			}
			return s.subscribers.Update(txCtx, current)
		})
		if !errors.Is(err, shared.ErrConcurrentModification) {
			return err
		}
	}
	return err
}

func observe(kind string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.ProvisioningTotal.WithLabelValues(kind, result).Inc()
	metrics.ProvisioningDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
