package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/entitlement/dto"
	"github.com/relaygate/relaygate/internal/domain/shared"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	subvo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/db"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

const maxTxAttempts = 3

type GrantAccessCommand struct {
	ExternalID  int64
	Days        int
	TrafficGB   float64
	DeviceLimit int
}

type GrantAccessResult struct {
	Subscriber          *dto.SubscriberDTO `json:"subscriber"`
	ProvisioningPending bool               `json:"provisioning_pending"`
}

// GrantAccessUseCase applies a manual entitlement. It also lifts a ban.
type GrantAccessUseCase struct {
	subscriberRepo subscriber.Repository
	txMgr          db.Transactor
	provisioner    Provisioner
	stack          bool
	deviceLimit    int
	now            biztime.Clock
	logger         logger.Interface
}

func NewGrantAccessUseCase(
	subscriberRepo subscriber.Repository,
	txMgr db.Transactor,
	provisioner Provisioner,
	stackRenewals bool,
	logger logger.Interface,
) *GrantAccessUseCase {
	return &GrantAccessUseCase{
		subscriberRepo: subscriberRepo,
		txMgr:          txMgr,
		provisioner:    provisioner,
		stack:          stackRenewals,
		now:            biztime.SystemClock,
		logger:         logger,
	}
}

func (uc *GrantAccessUseCase) WithClock(c biztime.Clock) *GrantAccessUseCase {
	uc.now = c
	return uc
}

// WithDefaultDeviceLimit sets the device limit used when a grant names none.
func (uc *GrantAccessUseCase) WithDefaultDeviceLimit(n int) *GrantAccessUseCase {
	uc.deviceLimit = n
	return uc
}

func (uc *GrantAccessUseCase) Execute(ctx context.Context, cmd GrantAccessCommand) (*GrantAccessResult, error) {
	if cmd.DeviceLimit == 0 {
		cmd.DeviceLimit = uc.deviceLimit
	}
	if cmd.Days <= 0 {
		return nil, apperrors.NewValidationError("days must be positive")
	}
	if cmd.TrafficGB < 0 {
		return nil, apperrors.NewValidationError("traffic cannot be negative")
	}

	var sub *subscriber.Subscriber
	err := withConflictRetry(func() error {
		return uc.txMgr.RunInTransaction(ctx, func(txCtx context.Context) error {
			now := uc.now()
			s, err := uc.subscriberRepo.GetByExternalID(txCtx, cmd.ExternalID)
			if err != nil {
				return err
			}
			if s == nil {
				if s, err = subscriber.NewSubscriber(cmd.ExternalID, "", now); err != nil {
					return apperrors.NewValidationError(err.Error())
				}
				if err := uc.subscriberRepo.Create(txCtx, s); err != nil {
					return err
				}
			}
			if err := s.ApplyEntitlement(subscriber.Entitlement{
				Days:           cmd.Days,
				TrafficLimitGB: cmd.TrafficGB,
				DeviceLimit:    cmd.DeviceLimit,
				Source:         subvo.SourceManual,
				Stack:          uc.stack,
			}, now); err != nil {
				return apperrors.NewValidationError(err.Error())
			}
			if err := uc.subscriberRepo.Update(txCtx, s); err != nil {
				return err
			}
			sub = s
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Infow("access granted",
		"external_id", cmd.ExternalID,
		"days", cmd.Days,
		"traffic_gb", cmd.TrafficGB,
		"expires_at", sub.ExpiresAt(),
	)

	result := &GrantAccessResult{}
	if _, err := uc.provisioner.Sync(ctx, sub.ID()); err != nil {
		uc.logger.Errorw("provisioning after grant failed, left pending for retry",
			"external_id", cmd.ExternalID,
			"error", err,
		)
		result.ProvisioningPending = true
	}
	if fresh, err := uc.subscriberRepo.GetByID(ctx, sub.ID()); err == nil && fresh != nil {
		sub = fresh
	}
	result.Subscriber = dto.ToSubscriberDTO(sub, uc.now())
	return result, nil
}

func withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, shared.ErrConcurrentModification) {
			return err
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", maxTxAttempts, err)
}
