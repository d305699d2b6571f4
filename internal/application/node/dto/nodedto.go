package dto

import (
	"time"

	"github.com/relaygate/relaygate/internal/domain/node"
)

// NodeDTO is the admin view of a node merged with its last observed load.
// Credentials are never exposed.
type NodeDTO struct {
	NodeID       string     `json:"node_id"`
	Name         string     `json:"name"`
	Endpoint     string     `json:"endpoint"`
	IsActive     bool       `json:"is_active"`
	Capacity     int        `json:"capacity"`
	CurrentUsers *int       `json:"current_users"`
	LoadRatio    *float64   `json:"load_ratio"`
	Available    bool       `json:"available"`
	ObservedAt   *time.Time `json:"observed_at"`
	Subscribers  int64      `json:"subscribers"`
}

type NodeListDTO struct {
	Source string    `json:"source"`
	Nodes  []NodeDTO `json:"nodes"`
}

// ToNodeDTO leaves load fields empty when the node is missing from the
// allocator snapshot, meaning it did not answer the last poll.
func ToNodeDTO(n *node.Node, load *node.Load) NodeDTO {
	out := NodeDTO{
		NodeID:   n.NodeID(),
		Name:     n.Name(),
		Endpoint: n.Endpoint(),
		IsActive: n.IsActive(),
		Capacity: n.Capacity(),
	}
	if load != nil {
		users := load.CurrentUsers
		ratio := load.Ratio()
		observed := load.ObservedAt
		out.CurrentUsers = &users
		out.LoadRatio = &ratio
		out.ObservedAt = &observed
		out.Available = n.IsActive() && load.HasRoom()
	}
	return out
}
