package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/plan/dto"
	"github.com/relaygate/relaygate/internal/domain/plan"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/db"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// UpdatePlanUseCase revises plan terms. Terms are frozen once any payment
// references the plan; such a plan must be replaced by a new one.
type UpdatePlanUseCase struct {
	planRepo plan.Repository
	refs     PlanReferences
	txMgr    db.Transactor
	now      biztime.Clock
	logger   logger.Interface
}

func NewUpdatePlanUseCase(planRepo plan.Repository, refs PlanReferences, txMgr db.Transactor, logger logger.Interface) *UpdatePlanUseCase {
	return &UpdatePlanUseCase{
		planRepo: planRepo,
		refs:     refs,
		txMgr:    txMgr,
		now:      biztime.SystemClock,
		logger:   logger,
	}
}

func (uc *UpdatePlanUseCase) Execute(ctx context.Context, planID uint, in PlanTermsInput) (*dto.PlanDTO, error) {
	terms, err := in.toTerms()
	if err != nil {
		return nil, err
	}

	var updated *plan.Plan
	err = uc.txMgr.RunInTransaction(ctx, func(txCtx context.Context) error {
		p, err := uc.planRepo.GetByID(txCtx, planID)
		if err != nil {
			return fmt.Errorf("failed to get plan: %w", err)
		}
		if p == nil {
			return apperrors.NewNotFoundError("plan not found")
		}

		count, err := uc.refs.CountByPlanID(txCtx, planID)
		if err != nil {
			return fmt.Errorf("failed to check plan usage: %w", err)
		}
		if err := p.Revise(terms, count > 0, uc.now()); err != nil {
			if errors.Is(err, plan.ErrPlanReferenced) {
				return apperrors.NewConflictError(
					fmt.Sprintf("cannot change plan: %d payments reference it", count),
				)
			}
			return apperrors.NewValidationError(err.Error())
		}
		if err := uc.planRepo.Update(txCtx, p); err != nil {
			return fmt.Errorf("failed to update plan: %w", err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Infow("plan updated", "plan_id", planID)
	out := dto.ToPlanDTO(updated)
	return &out, nil
}
