package dto

import "github.com/relaygate/relaygate/internal/domain/plan"

type PlanDTO struct {
	ID             uint    `json:"id"`
	Name           string  `json:"name"`
	DurationDays   int     `json:"duration_days"`
	TrafficLimitGB float64 `json:"traffic_limit_gb"`
	DeviceLimit    int     `json:"device_limit"`
	Price          string  `json:"price"`
	Currency       string  `json:"currency"`
	IsActive       bool    `json:"is_active"`
}

func ToPlanDTO(p *plan.Plan) PlanDTO {
	return PlanDTO{
		ID:             p.ID(),
		Name:           p.Name(),
		DurationDays:   p.DurationDays(),
		TrafficLimitGB: p.TrafficLimitGB(),
		DeviceLimit:    p.DeviceLimit(),
		Price:          p.Price().Decimal(),
		Currency:       p.Price().Currency(),
		IsActive:       p.IsActive(),
	}
}

func ToPlanDTOs(plans []*plan.Plan) []PlanDTO {
	out := make([]PlanDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, ToPlanDTO(p))
	}
	return out
}
