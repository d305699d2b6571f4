package node

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrNodeExists   = errors.New("node already exists")
	// ErrNoNodeAvailable means no active node reported load with spare capacity.
	ErrNoNodeAvailable    = errors.New("no node available")
	ErrNodeUnavailable    = errors.New("node unavailable")
	ErrNodeHasSubscribers = errors.New("node has assigned subscribers; deactivate it instead")
)

// Node is a capacity-bounded provisioning target.
type Node struct {
	id            uint
	nodeID        string
	name          string
	endpoint      string
	username      string
	password      string
	isActive      bool
	capacity      int
	lastLoad      int
	lastCheckedAt *time.Time
	createdAt     time.Time
	updatedAt     time.Time
}

// Spec is the configuration record a node is created from.
type Spec struct {
	NodeID   string
	Name     string
	Endpoint string
	Username string
	Password string
	// Capacity of 0 means unlimited.
	Capacity int
}

func (s Spec) Validate() error {
	if s.NodeID == "" {
		return fmt.Errorf("node id is required")
	}
	if s.Capacity < 0 {
		return fmt.Errorf("node %s: capacity cannot be negative", s.NodeID)
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("node %s: invalid endpoint %q", s.NodeID, s.Endpoint)
	}
	return nil
}

func NewNode(spec Spec, now time.Time) (*Node, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	name := spec.Name
	if name == "" {
		name = spec.NodeID
	}
	return &Node{
		nodeID:    spec.NodeID,
		name:      name,
		endpoint:  spec.Endpoint,
		username:  spec.Username,
		password:  spec.Password,
		isActive:  true,
		capacity:  spec.Capacity,
		createdAt: now,
		updatedAt: now,
	}, nil
}

func (n *Node) Deactivate(now time.Time) {
	n.isActive = false
	n.updatedAt = now
}

func (n *Node) Activate(now time.Time) {
	n.isActive = true
	n.updatedAt = now
}

func (n *Node) RecordLoad(currentUsers int, at time.Time) {
	n.lastLoad = currentUsers
	n.lastCheckedAt = &at
	n.updatedAt = at
}

func (n *Node) ID() uint                  { return n.id }
func (n *Node) NodeID() string            { return n.nodeID }
func (n *Node) Name() string              { return n.name }
func (n *Node) Endpoint() string          { return n.endpoint }
func (n *Node) Username() string          { return n.username }
func (n *Node) Password() string          { return n.password }
func (n *Node) IsActive() bool            { return n.isActive }
func (n *Node) Capacity() int             { return n.capacity }
func (n *Node) LastLoad() int             { return n.lastLoad }
func (n *Node) LastCheckedAt() *time.Time { return n.lastCheckedAt }
func (n *Node) CreatedAt() time.Time      { return n.createdAt }
func (n *Node) UpdatedAt() time.Time      { return n.updatedAt }

func (n *Node) SetID(id uint) { n.id = id }

type ReconstructParams struct {
	ID            uint
	Spec          Spec
	IsActive      bool
	LastLoad      int
	LastCheckedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func ReconstructNode(p ReconstructParams) *Node {
	name := p.Spec.Name
	if name == "" {
		name = p.Spec.NodeID
	}
	return &Node{
		id:            p.ID,
		nodeID:        p.Spec.NodeID,
		name:          name,
		endpoint:      p.Spec.Endpoint,
		username:      p.Spec.Username,
		password:      p.Spec.Password,
		isActive:      p.IsActive,
		capacity:      p.Spec.Capacity,
		lastLoad:      p.LastLoad,
		lastCheckedAt: p.LastCheckedAt,
		createdAt:     p.CreatedAt,
		updatedAt:     p.UpdatedAt,
	}
}
