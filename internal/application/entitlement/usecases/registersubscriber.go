package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/entitlement/dto"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	subvo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

type RegisterSubscriberCommand struct {
	ExternalID int64
	Username   string
}

// RegisterSubscriberUseCase is an idempotent upsert keyed by external id. Ids listed
// as administrators are promoted on registration.
type RegisterSubscriberUseCase struct {
	subscriberRepo subscriber.Repository
	adminIDs       map[int64]struct{}
	now            biztime.Clock
	logger         logger.Interface
}

func NewRegisterSubscriberUseCase(subscriberRepo subscriber.Repository, adminIDs []int64, logger logger.Interface) *RegisterSubscriberUseCase {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &RegisterSubscriberUseCase{
		subscriberRepo: subscriberRepo,
		adminIDs:       admins,
		now:            biztime.SystemClock,
		logger:         logger,
	}
}

func (uc *RegisterSubscriberUseCase) WithClock(c biztime.Clock) *RegisterSubscriberUseCase {
	uc.now = c
	return uc
}

func (uc *RegisterSubscriberUseCase) Execute(ctx context.Context, cmd RegisterSubscriberCommand) (*dto.SubscriberDTO, bool, error) {
	now := uc.now()
	sub, err := uc.subscriberRepo.GetByExternalID(ctx, cmd.ExternalID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load subscriber: %w", err)
	}

	if sub != nil {
		changed := false
		if cmd.Username != "" && cmd.Username != sub.Username() {
			sub.SetUsername(cmd.Username)
			changed = true
		}
		if uc.isAdmin(sub.ExternalID()) && sub.Role() != subvo.RoleAdmin {
			sub.PromoteToAdmin(now)
			changed = true
		}
		if changed {
			if err := uc.subscriberRepo.Update(ctx, sub); err != nil {
				return nil, false, fmt.Errorf("failed to update subscriber: %w", err)
			}
		}
		return dto.ToSubscriberDTO(sub, now), false, nil
	}

	sub, err = subscriber.NewSubscriber(cmd.ExternalID, cmd.Username, now)
	if err != nil {
		return nil, false, apperrors.NewValidationError(err.Error())
	}
	if uc.isAdmin(cmd.ExternalID) {
		sub.PromoteToAdmin(now)
	}
	if err := uc.subscriberRepo.Create(ctx, sub); err != nil {
		if errors.Is(err, subscriber.ErrSubscriberExists) {
			existing, gerr := uc.subscriberRepo.GetByExternalID(ctx, cmd.ExternalID)
			if gerr == nil && existing != nil {
				return dto.ToSubscriberDTO(existing, now), false, nil
			}
		}
		return nil, false, fmt.Errorf("failed to register subscriber: %w", err)
	}

	uc.logger.Infow("subscriber registered",
		"external_id", cmd.ExternalID,
		"role", sub.Role(),
	)
	return dto.ToSubscriberDTO(sub, now), true, nil
}

func (uc *RegisterSubscriberUseCase) isAdmin(externalID int64) bool {
	_, ok := uc.adminIDs[externalID]
	return ok
}
