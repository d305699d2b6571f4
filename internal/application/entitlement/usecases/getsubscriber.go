package usecases

import (
	"context"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/entitlement/dto"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
)

type GetSubscriberUseCase struct {
	subscriberRepo subscriber.Repository
	now            biztime.Clock
}

func NewGetSubscriberUseCase(subscriberRepo subscriber.Repository) *GetSubscriberUseCase {
	return &GetSubscriberUseCase{subscriberRepo: subscriberRepo, now: biztime.SystemClock}
}

func (uc *GetSubscriberUseCase) Execute(ctx context.Context, externalID int64) (*dto.SubscriberDTO, error) {
	sub, err := uc.subscriberRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriber: %w", err)
	}
	if sub == nil {
		return nil, apperrors.NewNotFoundError("subscriber not found")
	}
	return dto.ToSubscriberDTO(sub, uc.now()), nil
}
