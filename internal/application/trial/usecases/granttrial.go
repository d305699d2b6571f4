package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relaygate/relaygate/internal/domain/subscriber"
	subvo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
	"github.com/relaygate/relaygate/internal/domain/trial"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/db"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/metrics"
)

type GrantTrialCommand struct {
	ExternalID int64
	Username   string
	// DurationDays and TrafficGB override the configured defaults when positive.
	DurationDays int
	TrafficGB    float64
}

type GrantTrialResult struct {
	GrantID   uint      `json:"grant_id"`
	ExpiresAt time.Time `json:"expires_at"`
	TrafficGB float64   `json:"traffic_gb"`
	// Created is false when an active grant already existed (a repeated request).
	Created bool `json:"created"`
	// ProvisioningPending is true when the account could not be created yet.
	ProvisioningPending bool `json:"provisioning_pending"`
}

type GrantTrialUseCase struct {
	subscriberRepo subscriber.Repository
	trialRepo      trial.Repository
	txMgr          db.Transactor
	provisioner    Provisioner
	policy         trial.Policy
	settings       Settings
	now            biztime.Clock
	logger         logger.Interface
}

func NewGrantTrialUseCase(
	subscriberRepo subscriber.Repository,
	trialRepo trial.Repository,
	txMgr db.Transactor,
	provisioner Provisioner,
	policy trial.Policy,
	settings Settings,
	logger logger.Interface,
) *GrantTrialUseCase {
	return &GrantTrialUseCase{
		subscriberRepo: subscriberRepo,
		trialRepo:      trialRepo,
		txMgr:          txMgr,
		provisioner:    provisioner,
		policy:         policy,
		settings:       settings,
		now:            biztime.SystemClock,
		logger:         logger,
	}
}

func (uc *GrantTrialUseCase) WithClock(c biztime.Clock) *GrantTrialUseCase {
	uc.now = c
	return uc
}

func (uc *GrantTrialUseCase) Execute(ctx context.Context, cmd GrantTrialCommand) (*GrantTrialResult, error) {
	days, gb := uc.settings.DurationDays, uc.settings.TrafficGB
	if cmd.DurationDays > 0 {
		days = cmd.DurationDays
	}
	if cmd.TrafficGB > 0 {
		gb = cmd.TrafficGB
	}

	var (
		result       *GrantTrialResult
		subscriberID uint
	)
	err := uc.txMgr.RunInTransaction(ctx, func(txCtx context.Context) error {
		now := uc.now()
		sub, err := uc.registered(txCtx, cmd, now)
		if err != nil {
			return err
		}
		subscriberID = sub.ID()
		if sub.Role() == subvo.RoleBanned || sub.Role() == subvo.RoleAdmin {
			return trial.ErrTrialNotEligible
		}

		if _, err := uc.trialRepo.ExpireDue(txCtx, now); err != nil {
			return fmt.Errorf("failed to expire trials: %w", err)
		}
		history, active, err := loadHistory(txCtx, uc.trialRepo, sub.ID(), now)
		if err != nil {
			return err
		}
		if active != nil {
			result = replay(active)
			return nil
		}
		if !canHoldTrial(sub, now) || !uc.policy.IsEligible(history) {
			return trial.ErrTrialNotEligible
		}

		grant, err := trial.NewGrant(sub.ID(), days, gb, now)
		if err != nil {
			return err
		}
		if err := uc.trialRepo.Create(txCtx, grant); err != nil {
			if errors.Is(err, trial.ErrActiveGrantExists) {
				existing, gerr := uc.trialRepo.GetActive(txCtx, sub.ID())
				if gerr == nil && existing != nil {
					result = replay(existing)
					return nil
				}
			}
			return err
		}
		if err := sub.ApplyEntitlement(grant.Entitlement(), now); err != nil {
			return err
		}
		if err := uc.subscriberRepo.Update(txCtx, sub); err != nil {
			return err
		}
		result = &GrantTrialResult{
			GrantID:   grant.ID(),
			ExpiresAt: grant.ExpiresAt(),
			TrafficGB: grant.TrafficGB(),
			Created:   true,
		}
		return nil
	})
	if err != nil {
		metrics.TrialGrantsTotal.WithLabelValues(trialResultLabel(err)).Inc()
		return nil, err
	}

	if !result.Created {
		metrics.TrialGrantsTotal.WithLabelValues("replayed").Inc()
		return result, nil
	}
	metrics.TrialGrantsTotal.WithLabelValues("granted").Inc()
	uc.logger.Infow("trial granted",
		"external_id", cmd.ExternalID,
		"grant_id", result.GrantID,
		"expires_at", result.ExpiresAt,
	)

	if uc.provisioner != nil {
		if _, err := uc.provisioner.Sync(ctx, subscriberID); err != nil {
			uc.logger.Errorw("trial provisioning failed, left pending for retry",
				"external_id", cmd.ExternalID,
				"error", err,
			)
			result.ProvisioningPending = true
		}
	}
	return result, nil
}

func (uc *GrantTrialUseCase) registered(ctx context.Context, cmd GrantTrialCommand, now time.Time) (*subscriber.Subscriber, error) {
	sub, err := uc.subscriberRepo.GetByExternalID(ctx, cmd.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriber: %w", err)
	}
	if sub != nil {
		return sub, nil
	}
	sub, err = subscriber.NewSubscriber(cmd.ExternalID, cmd.Username, now)
	if err != nil {
		return nil, err
	}
	if err := uc.subscriberRepo.Create(ctx, sub); err != nil {
		if !errors.Is(err, subscriber.ErrSubscriberExists) {
			return nil, fmt.Errorf("failed to register subscriber: %w", err)
		}
		// Registered concurrently; continue with the stored row.
		existing, gerr := uc.subscriberRepo.GetByExternalID(ctx, cmd.ExternalID)
		if gerr != nil {
			return nil, fmt.Errorf("failed to load subscriber: %w", gerr)
		}
		if existing == nil {
			return nil, err
		}
		return existing, nil
	}
	return sub, nil
}

func replay(g *trial.Grant) *GrantTrialResult {
	return &GrantTrialResult{
		GrantID:   g.ID(),
		ExpiresAt: g.ExpiresAt(),
		TrafficGB: g.TrafficGB(),
		Created:   false,
	}
}

func trialResultLabel(err error) string {
	if errors.Is(err, trial.ErrTrialNotEligible) {
		return "not_eligible"
	}
	return "error"
}
