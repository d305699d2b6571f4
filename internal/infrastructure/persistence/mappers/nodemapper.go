package mappers

import (
	"github.com/relaygate/relaygate/internal/domain/node"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/models"
)

func NodeToModel(n *node.Node) *models.NodeModel {
	return &models.NodeModel{
		ID:            n.ID(),
		NodeID:        n.NodeID(),
		Name:          n.Name(),
		Endpoint:      n.Endpoint(),
		Username:      n.Username(),
		Password:      n.Password(),
		IsActive:      n.IsActive(),
		Capacity:      n.Capacity(),
		LastLoad:      n.LastLoad(),
		LastCheckedAt: n.LastCheckedAt(),
		CreatedAt:     n.CreatedAt(),
		UpdatedAt:     n.UpdatedAt(),
	}
}

func NodeToDomain(m *models.NodeModel) *node.Node {
	return node.ReconstructNode(node.ReconstructParams{
		ID: m.ID,
		Spec: node.Spec{
			NodeID:   m.NodeID,
			Name:     m.Name,
			Endpoint: m.Endpoint,
			Username: m.Username,
			Password: m.Password,
			Capacity: m.Capacity,
		},
		IsActive:      m.IsActive,
		LastLoad:      m.LastLoad,
		LastCheckedAt: m.LastCheckedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	})
}
