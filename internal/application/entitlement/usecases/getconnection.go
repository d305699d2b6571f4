package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/entitlement/dto"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// GetConnectionUseCase hands out the connection descriptor to subscribers allowed to connect.
type GetConnectionUseCase struct {
	subscriberRepo subscriber.Repository
	provisioner    Provisioner
	now            biztime.Clock
	logger         logger.Interface
}

func NewGetConnectionUseCase(subscriberRepo subscriber.Repository, provisioner Provisioner, logger logger.Interface) *GetConnectionUseCase {
	return &GetConnectionUseCase{
		subscriberRepo: subscriberRepo,
		provisioner:    provisioner,
		now:            biztime.SystemClock,
		logger:         logger,
	}
}

func (uc *GetConnectionUseCase) WithClock(c biztime.Clock) *GetConnectionUseCase {
	uc.now = c
	return uc
}

func (uc *GetConnectionUseCase) Execute(ctx context.Context, externalID int64) (*dto.ConnectionDTO, error) {
	sub, err := uc.subscriberRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriber: %w", err)
	}
	if sub == nil {
		return nil, apperrors.NewNotFoundError("subscriber not found")
	}

	if err := sub.CanConnect(uc.now()); err != nil {
		switch {
		case errors.Is(err, subscriber.ErrSubscriberBanned):
			return nil, apperrors.NewForbiddenError("access has been revoked")
		case errors.Is(err, subscriber.ErrAccessExpired):
			return nil, apperrors.NewForbiddenError("access expired")
		case errors.Is(err, subscriber.ErrTrafficExceeded):
			return nil, apperrors.NewForbiddenError("traffic limit exceeded")
		}
		return nil, err
	}

	desc, err := uc.provisioner.ConnectionDescriptor(ctx, sub)
	if errors.Is(err, subscriber.ErrNotProvisioned) {
		return nil, apperrors.NewConflictError("access is being prepared, try again shortly")
	}
	if err != nil {
		uc.logger.Warnw("failed to fetch connection descriptor",
			"external_id", externalID,
			"node_id", sub.AssignedNode(),
			"error", err,
		)
		return nil, apperrors.NewUnavailableError("connection details are temporarily unavailable")
	}
	return &dto.ConnectionDTO{
		Descriptor: desc,
		NodeID:     sub.AssignedNode(),
		ExpiresAt:  sub.ExpiresAt(),
	}, nil
}
