package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/relaygate/relaygate/internal/domain/plan"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/mappers"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/models"
	"github.com/relaygate/relaygate/internal/shared/db"
)

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(ctx context.Context, p *plan.Plan) error {
	model := mappers.PlanToModel(p)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	p.SetID(model.ID)
	return nil
}

func (r *PlanRepository) Update(ctx context.Context, p *plan.Plan) error {
	model := mappers.PlanToModel(p)
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.PlanModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"name":             model.Name,
			"duration_days":    model.DurationDays,
			"traffic_limit_gb": model.TrafficLimitGB,
			"device_limit":     model.DeviceLimit,
			"price":            model.Price,
			"currency":         model.Currency,
			"is_active":        model.IsActive,
			"sort_order":       model.SortOrder,
			"updated_at":       model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update plan: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return plan.ErrPlanNotFound
	}
	return nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id uint) (*plan.Plan, error) {
	var model models.PlanModel
	if err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return mappers.PlanToDomain(&model), nil
}

func (r *PlanRepository) ListActive(ctx context.Context) ([]*plan.Plan, error) {
	var ms []models.PlanModel
	if err := db.GetTxFromContext(ctx, r.db).
		Scopes(db.ActiveOnly()).
		Order("sort_order ASC, id ASC").
		Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	out := make([]*plan.Plan, 0, len(ms))
	for i := range ms {
		out = append(out, mappers.PlanToDomain(&ms[i]))
	}
	return out, nil
}

func (r *PlanRepository) List(ctx context.Context) ([]*plan.Plan, error) {
	var ms []models.PlanModel
	if err := db.GetTxFromContext(ctx, r.db).
		Order("sort_order ASC, id ASC").
		Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	out := make([]*plan.Plan, 0, len(ms))
	for i := range ms {
		out = append(out, mappers.PlanToDomain(&ms[i]))
	}
	return out, nil
}
