package usecases

import (
	"context"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/plan/dto"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/domain/plan"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/sanitize"
)

// PlanTermsInput carries terms as they arrive from HTTP or the CLI. Price is a
// decimal string in major units.
type PlanTermsInput struct {
	Name           string  `json:"name" binding:"required"`
	DurationDays   int     `json:"duration_days" binding:"required"`
	TrafficLimitGB float64 `json:"traffic_limit_gb"`
	DeviceLimit    int     `json:"device_limit"`
	Price          string  `json:"price" binding:"required"`
	Currency       string  `json:"currency" binding:"required"`
}

func (in PlanTermsInput) toTerms() (plan.Terms, error) {
	price, err := vo.ParseMoney(in.Price, in.Currency)
	if err != nil {
		return plan.Terms{}, apperrors.NewValidationError("invalid price", err.Error())
	}
	return plan.Terms{
		Name:           sanitize.PlainText(in.Name),
		DurationDays:   in.DurationDays,
		TrafficLimitGB: in.TrafficLimitGB,
		DeviceLimit:    in.DeviceLimit,
		Price:          price,
	}, nil
}

type CreatePlanUseCase struct {
	planRepo plan.Repository
	now      biztime.Clock
	logger   logger.Interface
}

func NewCreatePlanUseCase(planRepo plan.Repository, logger logger.Interface) *CreatePlanUseCase {
	return &CreatePlanUseCase{
		planRepo: planRepo,
		now:      biztime.SystemClock,
		logger:   logger,
	}
}

func (uc *CreatePlanUseCase) Execute(ctx context.Context, in PlanTermsInput) (*dto.PlanDTO, error) {
	terms, err := in.toTerms()
	if err != nil {
		return nil, err
	}
	p, err := plan.NewPlan(terms, uc.now())
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := uc.planRepo.Create(ctx, p); err != nil {
		uc.logger.Errorw("failed to create plan", "error", err, "name", in.Name)
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	uc.logger.Infow("plan created", "plan_id", p.ID(), "name", p.Name(), "price", p.Price().String())
	out := dto.ToPlanDTO(p)
	return &out, nil
}
