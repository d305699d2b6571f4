package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/provisioning"
	"github.com/relaygate/relaygate/internal/domain/shared"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

const usageBatchSize = 500

// SyncUsageUseCase copies used traffic from node accounts onto subscribers.
type SyncUsageUseCase struct {
	subscriberRepo subscriber.Repository
	provisioner    Provisioner
	now            biztime.Clock
	logger         logger.Interface
}

func NewSyncUsageUseCase(subscriberRepo subscriber.Repository, provisioner Provisioner, logger logger.Interface) *SyncUsageUseCase {
	return &SyncUsageUseCase{
		subscriberRepo: subscriberRepo,
		provisioner:    provisioner,
		now:            biztime.SystemClock,
		logger:         logger,
	}
}

// Execute returns how many subscribers had their usage raised.
func (uc *SyncUsageUseCase) Execute(ctx context.Context) (int, error) {
	subs, err := uc.subscriberRepo.ListProvisioned(ctx, usageBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list provisioned subscribers: %w", err)
	}

	updated := 0
	for _, s := range subs {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		acc, err := uc.provisioner.Account(ctx, s)
		if err != nil {
			uc.logger.Warnw("failed to read account usage",
				"subscriber_id", s.ID(),
				"node_id", s.AssignedNode(),
				"error", err,
			)
			continue
		}
		if acc == nil {
			continue
		}

		usedGB := provisioning.BytesToGB(acc.UsedTrafficBytes)
		changed, err := uc.record(ctx, s, usedGB)
		if err != nil {
			uc.logger.Warnw("failed to record usage", "subscriber_id", s.ID(), "error", err)
			continue
		}
		if changed {
			updated++
		}
	}
	if updated > 0 {
		uc.logger.Infow("traffic usage synced", "updated", updated, "checked", len(subs))
	}
	return updated, nil
}

func (uc *SyncUsageUseCase) record(ctx context.Context, s *subscriber.Subscriber, usedGB float64) (bool, error) {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if !s.RecordUsage(usedGB, uc.now()) {
			return false, nil
		}
		err := uc.subscriberRepo.Update(ctx, s)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, shared.ErrConcurrentModification) {
			return false, err
		}
		fresh, err := uc.subscriberRepo.GetByID(ctx, s.ID())
		if err != nil || fresh == nil {
			return false, err
		}
		s = fresh
	}
	return false, shared.ErrConcurrentModification
}
