package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/relaygate/relaygate/internal/domain/shared"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	vo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/mappers"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/models"
	"github.com/relaygate/relaygate/internal/shared/db"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
)

type SubscriberRepository struct {
	db *gorm.DB
}

func NewSubscriberRepository(db *gorm.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

func (r *SubscriberRepository) Create(ctx context.Context, s *subscriber.Subscriber) error {
	model := mappers.SubscriberToModel(s)
	model.Version = 1

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return subscriber.ErrSubscriberExists
		}
		return fmt.Errorf("failed to create subscriber: %w", err)
	}

	s.SetID(model.ID)
	s.SetVersion(model.Version)
	return nil
}

func (r *SubscriberRepository) Update(ctx context.Context, s *subscriber.Subscriber) error {
	model := mappers.SubscriberToModel(s)

	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.SubscriberModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]interface{}{
			"username":             model.Username,
			"role":                 model.Role,
			"expires_at":           model.ExpiresAt,
			"traffic_limit_gb":     model.TrafficLimitGB,
			"used_traffic_gb":      model.UsedTrafficGB,
			"device_limit":         model.DeviceLimit,
			"assigned_node":        model.AssignedNode,
			"source":               model.Source,
			"provisioning_pending": model.ProvisioningPending,
			"provisioning_error":   model.ProvisioningError,
			"version":              model.Version + 1,
			"updated_at":           model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update subscriber: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrentModification
	}

	s.SetVersion(model.Version + 1)
	return nil
}

func (r *SubscriberRepository) GetByID(ctx context.Context, id uint) (*subscriber.Subscriber, error) {
	var model models.SubscriberModel
	if err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return mappers.SubscriberToDomain(&model)
}

func (r *SubscriberRepository) GetByExternalID(ctx context.Context, externalID int64) (*subscriber.Subscriber, error) {
	var model models.SubscriberModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("external_id = ?", externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscriber by external id: %w", err)
	}
	return mappers.SubscriberToDomain(&model)
}

func (r *SubscriberRepository) ListPendingProvisioning(ctx context.Context, limit int) ([]*subscriber.Subscriber, error) {
	var ms []models.SubscriberModel
	if err := db.GetTxFromContext(ctx, r.db).
		Scopes(db.Limit(limit)).
		Where("provisioning_pending = ?", true).
		Order("updated_at ASC").
		Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending subscribers: %w", err)
	}
	return mappers.SubscribersToDomain(ms)
}

func (r *SubscriberRepository) ListProvisioned(ctx context.Context, limit int) ([]*subscriber.Subscriber, error) {
	var ms []models.SubscriberModel
	if err := db.GetTxFromContext(ctx, r.db).
		Scopes(db.Limit(limit)).
		Where("assigned_node <> '' AND role <> ?", vo.RoleBanned.String()).
		Order("id ASC").
		Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("failed to list provisioned subscribers: %w", err)
	}
	return mappers.SubscribersToDomain(ms)
}

func (r *SubscriberRepository) CountByAssignedNode(ctx context.Context, nodeID string) (int64, error) {
	var count int64
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.SubscriberModel{}).
		Where("assigned_node = ?", nodeID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count subscribers on node: %w", err)
	}
	return count, nil
}
