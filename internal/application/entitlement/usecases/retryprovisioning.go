package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/relaygate/relaygate/internal/domain/subscriber"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/retry"
)

const retryBatchSize = 50

type RetryProvisioningResult struct {
	Pending   int
	Succeeded int
}

// RetryProvisioningUseCase drains subscribers left pending by a failed or
// interrupted provisioning call.
type RetryProvisioningUseCase struct {
	subscriberRepo subscriber.Repository
	provisioner    Provisioner
	maxAttempts    int
	baseDelay      time.Duration
	logger         logger.Interface
}

func NewRetryProvisioningUseCase(
	subscriberRepo subscriber.Repository,
	provisioner Provisioner,
	maxAttempts int,
	baseDelay time.Duration,
	logger logger.Interface,
) *RetryProvisioningUseCase {
	return &RetryProvisioningUseCase{
		subscriberRepo: subscriberRepo,
		provisioner:    provisioner,
		maxAttempts:    maxAttempts,
		baseDelay:      baseDelay,
		logger:         logger,
	}
}

func (uc *RetryProvisioningUseCase) Execute(ctx context.Context) (*RetryProvisioningResult, error) {
	pending, err := uc.subscriberRepo.ListPendingProvisioning(ctx, retryBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending subscribers: %w", err)
	}
	res := &RetryProvisioningResult{Pending: len(pending)}
	if len(pending) == 0 {
		return res, nil
	}

	for _, s := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		err := retry.Do(ctx, uc.maxAttempts, uc.baseDelay, func() error {
			_, err := uc.provisioner.Sync(ctx, s.ID())
			return err
		})
		if err != nil {
			uc.logger.Warnw("provisioning retry failed",
				"subscriber_id", s.ID(),
				"external_id", s.ExternalID(),
				"error", err,
			)
			continue
		}
		res.Succeeded++
	}

	uc.logger.Infow("pending provisioning retried",
		"pending", res.Pending,
		"succeeded", res.Succeeded,
	)
	return res, nil
}
