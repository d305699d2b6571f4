package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/relaygate/relaygate/internal/domain/subscriber"
	subvo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
	"github.com/relaygate/relaygate/internal/domain/trial"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

type EligibilityResult struct {
	Eligible     bool       `json:"eligible"`
	ActiveUntil  *time.Time `json:"active_until,omitempty"`
	TotalGrants  int64      `json:"total_grants"`
	DurationDays int        `json:"duration_days"`
	TrafficGB    float64    `json:"traffic_gb"`
}

type CheckEligibilityUseCase struct {
	subscriberRepo subscriber.Repository
	trialRepo      trial.Repository
	policy         trial.Policy
	settings       Settings
	now            biztime.Clock
	logger         logger.Interface
}

func NewCheckEligibilityUseCase(
	subscriberRepo subscriber.Repository,
	trialRepo trial.Repository,
	policy trial.Policy,
	settings Settings,
	logger logger.Interface,
) *CheckEligibilityUseCase {
	return &CheckEligibilityUseCase{
		subscriberRepo: subscriberRepo,
		trialRepo:      trialRepo,
		policy:         policy,
		settings:       settings,
		now:            biztime.SystemClock,
		logger:         logger,
	}
}

func (uc *CheckEligibilityUseCase) WithClock(c biztime.Clock) *CheckEligibilityUseCase {
	uc.now = c
	return uc
}

// Execute never registers the subscriber; unknown users are eligible.
func (uc *CheckEligibilityUseCase) Execute(ctx context.Context, externalID int64) (*EligibilityResult, error) {
	res := &EligibilityResult{
		DurationDays: uc.settings.DurationDays,
		TrafficGB:    uc.settings.TrafficGB,
	}
	sub, err := uc.subscriberRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriber: %w", err)
	}
	if sub == nil {
		res.Eligible = true
		return res, nil
	}
	if !canHoldTrial(sub, uc.now()) {
		return res, nil
	}

	history, active, err := loadHistory(ctx, uc.trialRepo, sub.ID(), uc.now())
	if err != nil {
		return nil, err
	}
	if active != nil {
		until := active.ExpiresAt()
		res.ActiveUntil = &until
	}
	res.TotalGrants = history.TotalGrants
	res.Eligible = uc.policy.IsEligible(history)
	return res, nil
}

// canHoldTrial excludes banned and admin subscribers and anyone whose paid or
// manual access is still running.
func canHoldTrial(sub *subscriber.Subscriber, now time.Time) bool {
	switch sub.Role() {
	case subvo.RoleBanned, subvo.RoleAdmin:
		return false
	}
	if sub.Source() != subvo.SourceTrial && !sub.IsExpired(now) {
		return false
	}
	return true
}

// loadHistory treats an active grant past its expiry as already ended.
func loadHistory(ctx context.Context, repo trial.Repository, subscriberID uint, now time.Time) (trial.History, *trial.Grant, error) {
	active, err := repo.GetActive(ctx, subscriberID)
	if err != nil {
		return trial.History{}, nil, fmt.Errorf("failed to load active trial: %w", err)
	}
	if active != nil && !active.IsActiveAt(now) {
		active = nil
	}
	total, err := repo.CountBySubscriber(ctx, subscriberID)
	if err != nil {
		return trial.History{}, nil, fmt.Errorf("failed to count trials: %w", err)
	}
	return trial.History{HasActiveGrant: active != nil, TotalGrants: total}, active, nil
}
