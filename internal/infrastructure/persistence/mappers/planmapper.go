package mappers

import (
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/domain/plan"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/models"
)

func PlanToModel(p *plan.Plan) *models.PlanModel {
	return &models.PlanModel{
		ID:             p.ID(),
		Name:           p.Name(),
		DurationDays:   p.DurationDays(),
		TrafficLimitGB: p.TrafficLimitGB(),
		DeviceLimit:    p.DeviceLimit(),
		Price:          p.Price().AmountMinor(),
		Currency:       p.Price().Currency(),
		IsActive:       p.IsActive(),
		SortOrder:      p.SortOrder(),
		CreatedAt:      p.CreatedAt(),
		UpdatedAt:      p.UpdatedAt(),
	}
}

func PlanToDomain(m *models.PlanModel) *plan.Plan {
	return plan.ReconstructPlan(m.ID, plan.Terms{
		Name:           m.Name,
		DurationDays:   m.DurationDays,
		TrafficLimitGB: m.TrafficLimitGB,
		DeviceLimit:    m.DeviceLimit,
		Price:          vo.NewMoney(m.Price, m.Currency),
	}, m.IsActive, m.SortOrder, m.CreatedAt, m.UpdatedAt)
}
