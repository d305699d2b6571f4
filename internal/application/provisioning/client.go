// Package provisioning keeps remote relay accounts in line with subscriber entitlements.
package provisioning

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/relaygate/relaygate/internal/domain/node"
)

var (
	// ErrProvisioningFailed wraps every remote account failure. The entitlement it
	// belongs to is already committed; the subscriber stays marked for retry.
	ErrProvisioningFailed = errors.New("provisioning failed")
)

const bytesPerGB = 1024 * 1024 * 1024

// GBToBytes converts a traffic allowance to the byte limit nodes expect. 0 stays 0 (unlimited).
func GBToBytes(gb float64) int64 {
	if gb <= 0 {
		return 0
	}
	if gb >= float64(math.MaxInt64)/bytesPerGB {
		return math.MaxInt64
	}
	return int64(gb * bytesPerGB)
}

// BytesToGB is the inverse used when reading usage back.
func BytesToGB(b int64) float64 {
	if b <= 0 {
		return 0
	}
	return float64(b) / bytesPerGB
}

// Account is a remote relay account as reported by a node.
type Account struct {
	Username         string
	Status           string
	DataLimitBytes   int64
	UsedTrafficBytes int64
	ExpiresAt        *time.Time
	SubscriptionURL  string
}

// AccountSpec is the desired state of a remote account.
type AccountSpec struct {
	Username          string
	TrafficLimitBytes int64
	ExpiresAt         *time.Time
	DeviceLimit       int
}

type LoadStats struct {
	CurrentUsers int
	CapacityHint int
}

// Client talks to one node. Every call honours the context deadline.
type Client interface {
	CreateAccount(ctx context.Context, spec AccountSpec) (*Account, error)
	// GetAccount returns nil, nil when the account does not exist.
	GetAccount(ctx context.Context, username string) (*Account, error)
	UpdateAccount(ctx context.Context, spec AccountSpec) (*Account, error)
	// DeleteAccount reports false when there was nothing to delete.
	DeleteAccount(ctx context.Context, username string) (bool, error)
	GetConnectionDescriptor(ctx context.Context, username string) (string, error)
	GetLoadStats(ctx context.Context) (*LoadStats, error)
}

// ClientFactory binds a Client to a node's endpoint and credentials.
type ClientFactory interface {
	ForNode(n *node.Node) Client
}

// NodeSelector picks provisioning targets.
type NodeSelector interface {
	SelectBest(ctx context.Context) (*node.Node, error)
	// Reachable returns the node if it is active and currently reports load.
	Reachable(ctx context.Context, nodeID string) (*node.Node, error)
}

// NodeDirectory resolves node ids, including inactive nodes, for cleanup.
type NodeDirectory interface {
	Find(ctx context.Context, nodeID string) (*node.Node, error)
}
