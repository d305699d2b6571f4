package usecases

import (
	"context"

	"github.com/relaygate/relaygate/internal/domain/subscriber"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/db"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

type RevokeAccessResult struct {
	ExternalID int64 `json:"external_id"`
	// DeprovisionPending is true when the remote account could not be removed yet.
	DeprovisionPending bool `json:"deprovision_pending"`
}

// RevokeAccessUseCase bans a subscriber and removes the remote account.
type RevokeAccessUseCase struct {
	subscriberRepo subscriber.Repository
	txMgr          db.Transactor
	provisioner    Provisioner
	now            biztime.Clock
	logger         logger.Interface
}

func NewRevokeAccessUseCase(
	subscriberRepo subscriber.Repository,
	txMgr db.Transactor,
	provisioner Provisioner,
	logger logger.Interface,
) *RevokeAccessUseCase {
	return &RevokeAccessUseCase{
		subscriberRepo: subscriberRepo,
		txMgr:          txMgr,
		provisioner:    provisioner,
		now:            biztime.SystemClock,
		logger:         logger,
	}
}

func (uc *RevokeAccessUseCase) Execute(ctx context.Context, externalID int64) (*RevokeAccessResult, error) {
	var subscriberID uint
	err := withConflictRetry(func() error {
		return uc.txMgr.RunInTransaction(ctx, func(txCtx context.Context) error {
			s, err := uc.subscriberRepo.GetByExternalID(txCtx, externalID)
			if err != nil {
				return err
			}
			if s == nil {
				return apperrors.NewNotFoundError("subscriber not found")
			}
			s.Revoke(uc.now())
			subscriberID = s.ID()
			return uc.subscriberRepo.Update(txCtx, s)
		})
	})
	if err != nil {
		return nil, err
	}
	uc.logger.Infow("access revoked", "external_id", externalID)

	result := &RevokeAccessResult{ExternalID: externalID}
	if _, err := uc.provisioner.Sync(ctx, subscriberID); err != nil {
		uc.logger.Errorw("deprovisioning failed, left pending for retry",
			"external_id", externalID,
			"error", err,
		)
		result.DeprovisionPending = true
	}
	return result, nil
}
