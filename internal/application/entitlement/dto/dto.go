package dto

import (
	"time"

	"github.com/relaygate/relaygate/internal/domain/subscriber"
)

// SubscriberDTO is the bot-facing view of a subscriber's entitlement.
type SubscriberDTO struct {
	ExternalID          int64      `json:"external_id"`
	Username            string     `json:"username,omitempty"`
	Role                string     `json:"role"`
	Source              string     `json:"source"`
	ExpiresAt           *time.Time `json:"expires_at"`
	TrafficLimitGB      float64    `json:"traffic_limit_gb"`
	UsedTrafficGB       float64    `json:"used_traffic_gb"`
	DeviceLimit         int        `json:"device_limit"`
	IsExpired           bool       `json:"is_expired"`
	IsTrafficExceeded   bool       `json:"is_traffic_exceeded"`
	AssignedNode        string     `json:"assigned_node,omitempty"`
	ProvisioningPending bool       `json:"provisioning_pending"`
}

func ToSubscriberDTO(s *subscriber.Subscriber, now time.Time) *SubscriberDTO {
	return &SubscriberDTO{
		ExternalID:          s.ExternalID(),
		Username:            s.Username(),
		Role:                s.Role().String(),
		Source:              string(s.Source()),
		ExpiresAt:           s.ExpiresAt(),
		TrafficLimitGB:      s.TrafficLimitGB(),
		UsedTrafficGB:       s.UsedTrafficGB(),
		DeviceLimit:         s.DeviceLimit(),
		IsExpired:           s.IsExpired(now),
		IsTrafficExceeded:   s.IsTrafficExceeded(),
		AssignedNode:        s.AssignedNode(),
		ProvisioningPending: s.ProvisioningPending(),
	}
}

type ConnectionDTO struct {
	Descriptor string     `json:"descriptor"`
	NodeID     string     `json:"node_id"`
	ExpiresAt  *time.Time `json:"expires_at"`
}
