package usecases

import (
	"context"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/plan/dto"
	"github.com/relaygate/relaygate/internal/domain/plan"
)

// ListPlansUseCase lists the plans a subscriber can buy.
type ListPlansUseCase struct {
	planRepo plan.Repository
}

func NewListPlansUseCase(planRepo plan.Repository) *ListPlansUseCase {
	return &ListPlansUseCase{planRepo: planRepo}
}

func (uc *ListPlansUseCase) Execute(ctx context.Context) ([]dto.PlanDTO, error) {
	plans, err := uc.planRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return dto.ToPlanDTOs(plans), nil
}
