package usecases

import (
	"context"
	"fmt"

	"github.com/relaygate/relaygate/internal/domain/trial"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// ExpireTrialsUseCase closes grants past their expiry so the active-grant slot frees up.
// The subscriber's access already lapses on its own expiry; this only updates grant state.
type ExpireTrialsUseCase struct {
	trialRepo trial.Repository
	now       biztime.Clock
	logger    logger.Interface
}

func NewExpireTrialsUseCase(trialRepo trial.Repository, logger logger.Interface) *ExpireTrialsUseCase {
	return &ExpireTrialsUseCase{
		trialRepo: trialRepo,
		now:       biztime.SystemClock,
		logger:    logger,
	}
}

func (uc *ExpireTrialsUseCase) WithClock(c biztime.Clock) *ExpireTrialsUseCase {
	uc.now = c
	return uc
}

func (uc *ExpireTrialsUseCase) Execute(ctx context.Context) (int64, error) {
	n, err := uc.trialRepo.ExpireDue(ctx, uc.now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire trials: %w", err)
	}
	if n > 0 {
		uc.logger.Infow("trial grants expired", "count", n)
	}
	return n, nil
}
