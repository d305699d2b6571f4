package usecases

import (
	"context"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/plan/dto"
	"github.com/relaygate/relaygate/internal/domain/plan"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// SetPlanActiveUseCase hides or re-lists a plan. Existing payments are unaffected.
type SetPlanActiveUseCase struct {
	planRepo plan.Repository
	now      biztime.Clock
	logger   logger.Interface
}

func NewSetPlanActiveUseCase(planRepo plan.Repository, logger logger.Interface) *SetPlanActiveUseCase {
	return &SetPlanActiveUseCase{
		planRepo: planRepo,
		now:      biztime.SystemClock,
		logger:   logger,
	}
}

func (uc *SetPlanActiveUseCase) Execute(ctx context.Context, planID uint, active bool) (*dto.PlanDTO, error) {
	p, err := uc.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if p == nil {
		return nil, apperrors.NewNotFoundError("plan not found")
	}

	if p.IsActive() != active {
		if active {
			p.Activate(uc.now())
		} else {
			p.Deactivate(uc.now())
		}
		if err := uc.planRepo.Update(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to update plan: %w", err)
		}
		uc.logger.Infow("plan visibility changed", "plan_id", planID, "active", active)
	}

	out := dto.ToPlanDTO(p)
	return &out, nil
}

// ListAllPlansUseCase lists every plan, inactive ones included, for administration.
type ListAllPlansUseCase struct {
	planRepo plan.Repository
}

func NewListAllPlansUseCase(planRepo plan.Repository) *ListAllPlansUseCase {
	return &ListAllPlansUseCase{planRepo: planRepo}
}

func (uc *ListAllPlansUseCase) Execute(ctx context.Context) ([]dto.PlanDTO, error) {
	plans, err := uc.planRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return dto.ToPlanDTOs(plans), nil
}
