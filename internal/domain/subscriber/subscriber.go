package subscriber

import (
	"fmt"
	"time"

	"github.com/relaygate/relaygate/internal/domain/shared"
	vo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
	"github.com/relaygate/relaygate/internal/shared/sanitize"
)

const DefaultDeviceLimit = 3

// Subscriber carries the current entitlement of one messenger user.
type Subscriber struct {
	id                  uint
	externalID          int64
	username            string
	role                vo.Role
	expiresAt           *time.Time
	trafficLimitGB      float64
	usedTrafficGB       float64
	deviceLimit         int
	assignedNode        string
	source              vo.Source
	provisioningPending bool
	provisioningError   string
	version             int
	createdAt           time.Time
	updatedAt           time.Time
}

// Entitlement is what a payment, trial or admin grant applies to a subscriber.
type Entitlement struct {
	Days           int
	TrafficLimitGB float64
	DeviceLimit    int
	Source         vo.Source
	// Stack extends from the current expiry when it is still in the future.
	Stack bool
}

func NewSubscriber(externalID int64, username string, now time.Time) (*Subscriber, error) {
	if externalID <= 0 {
		return nil, fmt.Errorf("external id must be positive")
	}
	return &Subscriber{
		externalID:  externalID,
		username:    sanitize.PlainText(username),
		role:        vo.RoleTrialEligible,
		deviceLimit: DefaultDeviceLimit,
		source:      vo.SourceManual,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// AccountName is the identity used on provisioning nodes.
func (s *Subscriber) AccountName() string {
	return fmt.Sprintf("user_%d", s.externalID)
}

// IsExpired is false for admins regardless of expiry; for everyone else a missing
// expiry counts as expired.
func (s *Subscriber) IsExpired(now time.Time) bool {
	if s.role == vo.RoleAdmin {
		return false
	}
	return shared.IsExpiredAt(s.expiresAt, now)
}

// IsTrafficExceeded treats a zero limit as unlimited.
func (s *Subscriber) IsTrafficExceeded() bool {
	if s.trafficLimitGB <= 0 {
		return false
	}
	return s.usedTrafficGB >= s.trafficLimitGB
}

// CanConnect returns nil when a connection descriptor may be handed out.
func (s *Subscriber) CanConnect(now time.Time) error {
	switch {
	case s.role == vo.RoleBanned:
		return ErrSubscriberBanned
	case s.IsExpired(now):
		return ErrAccessExpired
	case s.IsTrafficExceeded():
		return ErrTrafficExceeded
	}
	return nil
}

// ApplyEntitlement grants access and marks the subscriber for provisioning.
// Banned subscribers only accept manual grants; admins keep their role.
func (s *Subscriber) ApplyEntitlement(e Entitlement, now time.Time) error {
	if e.Days <= 0 {
		return fmt.Errorf("entitlement days must be positive")
	}
	if e.TrafficLimitGB < 0 {
		return fmt.Errorf("traffic limit cannot be negative")
	}
	if !e.Source.IsValid() {
		return fmt.Errorf("invalid entitlement source: %s", e.Source)
	}
	if s.role == vo.RoleBanned && e.Source != vo.SourceManual {
		return ErrSubscriberBanned
	}

	expiresAt := shared.ExtendFrom(s.expiresAt, now, e.Days, e.Stack)
	if s.role != vo.RoleAdmin {
		s.role = vo.RoleActive
	}
	s.expiresAt = &expiresAt
	s.trafficLimitGB = e.TrafficLimitGB
	s.usedTrafficGB = 0
	if e.DeviceLimit > 0 {
		s.deviceLimit = e.DeviceLimit
	}
	s.source = e.Source
	s.provisioningPending = true
	s.updatedAt = now
	return nil
}

// Revoke bans the subscriber; the remote account is removed by the next provisioning pass.
func (s *Subscriber) Revoke(now time.Time) {
	s.role = vo.RoleBanned
	s.provisioningPending = true
	s.updatedAt = now
}

// RecordUsage stores a usage report. Reports lower than the stored value are
// ignored so usage never decreases between resets.
func (s *Subscriber) RecordUsage(usedGB float64, now time.Time) bool {
	if usedGB <= s.usedTrafficGB {
		return false
	}
	s.usedTrafficGB = usedGB
	s.updatedAt = now
	return true
}

// NeedsAccount reports whether the subscriber should hold a remote account.
func (s *Subscriber) NeedsAccount() bool {
	return s.role != vo.RoleBanned
}

func (s *Subscriber) MarkProvisioned(nodeID string, now time.Time) {
	s.assignedNode = nodeID
	s.provisioningPending = false
	s.provisioningError = ""
	s.updatedAt = now
}

// AssignNode records where the account lives without clearing the pending flag.
func (s *Subscriber) AssignNode(nodeID string, now time.Time) {
	s.assignedNode = nodeID
	s.updatedAt = now
}

func (s *Subscriber) MarkDeprovisioned(now time.Time) {
	s.assignedNode = ""
	s.provisioningPending = false
	s.provisioningError = ""
	s.updatedAt = now
}

func (s *Subscriber) MarkProvisioningFailed(reason string, now time.Time) {
	s.provisioningPending = true
	s.provisioningError = reason
	s.updatedAt = now
}

// PromoteToAdmin is used by bootstrap configuration only.
func (s *Subscriber) PromoteToAdmin(now time.Time) {
	s.role = vo.RoleAdmin
	s.trafficLimitGB = 0
	s.provisioningPending = true
	s.updatedAt = now
}

func (s *Subscriber) ID() uint                  { return s.id }
func (s *Subscriber) ExternalID() int64         { return s.externalID }
func (s *Subscriber) Username() string          { return s.username }
func (s *Subscriber) Role() vo.Role             { return s.role }
func (s *Subscriber) ExpiresAt() *time.Time     { return s.expiresAt }
func (s *Subscriber) TrafficLimitGB() float64   { return s.trafficLimitGB }
func (s *Subscriber) UsedTrafficGB() float64    { return s.usedTrafficGB }
func (s *Subscriber) DeviceLimit() int          { return s.deviceLimit }
func (s *Subscriber) AssignedNode() string      { return s.assignedNode }
func (s *Subscriber) Source() vo.Source         { return s.source }
func (s *Subscriber) ProvisioningPending() bool { return s.provisioningPending }
func (s *Subscriber) ProvisioningError() string { return s.provisioningError }
func (s *Subscriber) Version() int              { return s.version }
func (s *Subscriber) CreatedAt() time.Time      { return s.createdAt }
func (s *Subscriber) UpdatedAt() time.Time      { return s.updatedAt }

func (s *Subscriber) SetID(id uint)        { s.id = id }
func (s *Subscriber) SetVersion(v int)     { s.version = v }
func (s *Subscriber) SetUsername(u string) { s.username = sanitize.PlainText(u) }

type ReconstructParams struct {
	ID                  uint
	ExternalID          int64
	Username            string
	Role                vo.Role
	ExpiresAt           *time.Time
	TrafficLimitGB      float64
	UsedTrafficGB       float64
	DeviceLimit         int
	AssignedNode        string
	Source              vo.Source
	ProvisioningPending bool
	ProvisioningError   string
	Version             int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func ReconstructSubscriber(p ReconstructParams) *Subscriber {
	return &Subscriber{
		id:                  p.ID,
		externalID:          p.ExternalID,
		username:            p.Username,
		role:                p.Role,
		expiresAt:           p.ExpiresAt,
		trafficLimitGB:      p.TrafficLimitGB,
		usedTrafficGB:       p.UsedTrafficGB,
		deviceLimit:         p.DeviceLimit,
		assignedNode:        p.AssignedNode,
		source:              p.Source,
		provisioningPending: p.ProvisioningPending,
		provisioningError:   p.ProvisioningError,
		version:             p.Version,
		createdAt:           p.CreatedAt,
		updatedAt:           p.UpdatedAt,
	}
}
