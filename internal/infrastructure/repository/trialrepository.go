package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/relaygate/relaygate/internal/domain/trial"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/mappers"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/models"
	"github.com/relaygate/relaygate/internal/shared/db"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
)

type TrialRepository struct {
	db *gorm.DB
}

func NewTrialRepository(db *gorm.DB) *TrialRepository {
	return &TrialRepository{db: db}
}

// Create maps a collision on the active_subscriber_id unique index to ErrActiveGrantExists.
func (r *TrialRepository) Create(ctx context.Context, g *trial.Grant) error {
	model := mappers.TrialGrantToModel(g)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return trial.ErrActiveGrantExists
		}
		return fmt.Errorf("failed to create trial grant: %w", err)
	}
	g.SetID(model.ID)
	return nil
}

func (r *TrialRepository) GetActive(ctx context.Context, subscriberID uint) (*trial.Grant, error) {
	var model models.TrialGrantModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("active_subscriber_id = ?", subscriberID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active trial grant: %w", err)
	}
	return mappers.TrialGrantToDomain(&model), nil
}

func (r *TrialRepository) CountBySubscriber(ctx context.Context, subscriberID uint) (int64, error) {
	var count int64
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.TrialGrantModel{}).
		Where("subscriber_id = ?", subscriberID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count trial grants: %w", err)
	}
	return count, nil
}

func (r *TrialRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.TrialGrantModel{}).
		Where("active = ? AND expires_at <= ?", true, now).
		Updates(map[string]interface{}{
			"active":               false,
			"active_subscriber_id": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire trial grants: %w", result.Error)
	}
	return result.RowsAffected, nil
}
