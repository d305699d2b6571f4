package mappers

import (
	"fmt"

	"github.com/relaygate/relaygate/internal/domain/subscriber"
	vo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/models"
)

func SubscriberToModel(s *subscriber.Subscriber) *models.SubscriberModel {
	return &models.SubscriberModel{
		ID:                  s.ID(),
		ExternalID:          s.ExternalID(),
		Username:            s.Username(),
		Role:                s.Role().String(),
		ExpiresAt:           s.ExpiresAt(),
		TrafficLimitGB:      s.TrafficLimitGB(),
		UsedTrafficGB:       s.UsedTrafficGB(),
		DeviceLimit:         s.DeviceLimit(),
		AssignedNode:        s.AssignedNode(),
		Source:              s.Source().String(),
		ProvisioningPending: s.ProvisioningPending(),
		ProvisioningError:   truncate(s.ProvisioningError(), 500),
		Version:             s.Version(),
		CreatedAt:           s.CreatedAt(),
		UpdatedAt:           s.UpdatedAt(),
	}
}

func SubscriberToDomain(m *models.SubscriberModel) (*subscriber.Subscriber, error) {
	role := vo.Role(m.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid subscriber role: %s", m.Role)
	}
	source := vo.Source(m.Source)
	if !source.IsValid() {
		return nil, fmt.Errorf("invalid entitlement source: %s", m.Source)
	}
	return subscriber.ReconstructSubscriber(subscriber.ReconstructParams{
		ID:                  m.ID,
		ExternalID:          m.ExternalID,
		Username:            m.Username,
		Role:                role,
		ExpiresAt:           m.ExpiresAt,
		TrafficLimitGB:      m.TrafficLimitGB,
		UsedTrafficGB:       m.UsedTrafficGB,
		DeviceLimit:         m.DeviceLimit,
		AssignedNode:        m.AssignedNode,
		Source:              source,
		ProvisioningPending: m.ProvisioningPending,
		ProvisioningError:   m.ProvisioningError,
		Version:             m.Version,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}), nil
}

func SubscribersToDomain(ms []models.SubscriberModel) ([]*subscriber.Subscriber, error) {
	out := make([]*subscriber.Subscriber, 0, len(ms))
	for i := range ms {
		s, err := SubscriberToDomain(&ms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
