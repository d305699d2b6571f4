package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/relaygate/relaygate/internal/domain/node"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/mappers"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/models"
	"github.com/relaygate/relaygate/internal/shared/db"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
)

type NodeRepository struct {
	db *gorm.DB
}

func NewNodeRepository(db *gorm.DB) *NodeRepository {
	return &NodeRepository{db: db}
}

func (r *NodeRepository) Create(ctx context.Context, n *node.Node) error {
	model := mappers.NodeToModel(n)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return node.ErrNodeExists
		}
		return fmt.Errorf("failed to create node: %w", err)
	}
	n.SetID(model.ID)
	return nil
}

func (r *NodeRepository) Update(ctx context.Context, n *node.Node) error {
	model := mappers.NodeToModel(n)
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.NodeModel{}).
		Where("node_id = ?", model.NodeID).
		Updates(map[string]interface{}{
			"name":            model.Name,
			"endpoint":        model.Endpoint,
			"username":        model.Username,
			"password":        model.Password,
			"is_active":       model.IsActive,
			"capacity":        model.Capacity,
			"last_load":       model.LastLoad,
			"last_checked_at": model.LastCheckedAt,
			"updated_at":      model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update node: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return node.ErrNodeNotFound
	}
	return nil
}

func (r *NodeRepository) GetByNodeID(ctx context.Context, nodeID string) (*node.Node, error) {
	var model models.NodeModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("node_id = ?", nodeID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return mappers.NodeToDomain(&model), nil
}

func (r *NodeRepository) ListActive(ctx context.Context) ([]*node.Node, error) {
	return r.list(ctx, db.ActiveOnly())
}

func (r *NodeRepository) List(ctx context.Context) ([]*node.Node, error) {
	return r.list(ctx)
}

func (r *NodeRepository) list(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) ([]*node.Node, error) {
	var ms []models.NodeModel
	if err := db.GetTxFromContext(ctx, r.db).
		Scopes(scopes...).
		Order("node_id ASC").
		Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	out := make([]*node.Node, 0, len(ms))
	for i := range ms {
		out = append(out, mappers.NodeToDomain(&ms[i]))
	}
	return out, nil
}

func (r *NodeRepository) UpdateLoad(ctx context.Context, nodeID string, currentUsers int, at time.Time) error {
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.NodeModel{}).
		Where("node_id = ?", nodeID).
		Updates(map[string]interface{}{
			"last_load":       currentUsers,
			"last_checked_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record node load: %w", result.Error)
	}
	return nil
}

func (r *NodeRepository) Delete(ctx context.Context, nodeID string) error {
	result := db.GetTxFromContext(ctx, r.db).
		Where("node_id = ?", nodeID).
		Delete(&models.NodeModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete node: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return node.ErrNodeNotFound
	}
	return nil
}
