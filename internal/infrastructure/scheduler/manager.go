// Package scheduler runs the background reconciliation passes using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// BatchJob processes one batch and returns the number of items it changed.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// BatchFunc adapts a function to BatchJob.
type BatchFunc func(ctx context.Context) (int, error)

func (f BatchFunc) Execute(ctx context.Context) (int, error) {
	return f(ctx)
}

// NodeRefresher re-polls node load.
type NodeRefresher interface {
	Refresh(ctx context.Context) error
}

// SchedulerManager owns the single gocron scheduler all jobs are registered on.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	started   bool
	startedMu sync.RWMutex
}

func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		logger:    log,
	}, nil
}

// ========================================
// Provisioning Jobs
// ========================================

// RegisterProvisioningJobs registers:
// - retry of subscribers left provisioning_pending
// - usage sync from node accounts
// A zero interval leaves the job unregistered.
func (m *SchedulerManager) RegisterProvisioningJobs(
	retryJob BatchJob,
	retryInterval time.Duration,
	usageJob BatchJob,
	usageInterval time.Duration,
) error {
	if err := m.registerBatch("provisioning-retry", retryJob, retryInterval, true, "provisioning", "retry"); err != nil {
		return err
	}
	return m.registerBatch("usage-sync", usageJob, usageInterval, false, "provisioning", "usage")
}

// ========================================
// Payment Jobs
// ========================================

// RegisterPaymentJobs registers:
// - the pending payment poll, settling or cancelling payments without a notification
// - release of on-chain amount reservations past their cooldown
func (m *SchedulerManager) RegisterPaymentJobs(
	syncJob BatchJob,
	interval time.Duration,
	suffixCleanupJob BatchJob,
	cleanupInterval time.Duration,
) error {
	if err := m.registerBatch("payment-sync", syncJob, interval, true, "payment", "sync"); err != nil {
		return err
	}
	return m.registerBatch("onchain-suffix-cleanup", suffixCleanupJob, cleanupInterval, false, "payment", "onchain")
}

// ========================================
// Trial Jobs
// ========================================

// RegisterTrialJobs registers deactivation of expired trial grants.
func (m *SchedulerManager) RegisterTrialJobs(expireJob BatchJob, interval time.Duration) error {
	return m.registerBatch("trial-expiry", expireJob, interval, true, "trial", "expire")
}

// ========================================
// Node Jobs
// ========================================

// RegisterNodeJobs keeps the allocator snapshot warm so request paths rarely
// pay for a full poll.
func (m *SchedulerManager) RegisterNodeJobs(refresher NodeRefresher, interval time.Duration) error {
	if refresher == nil || interval <= 0 {
		return nil
	}
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout(interval))
			defer cancel()
			m.refreshNodes(ctx, refresher)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("node", "refresh"),
		gocron.WithName("node-refresh"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered node jobs", "interval", interval.String())
	return nil
}

func (m *SchedulerManager) refreshNodes(ctx context.Context, refresher NodeRefresher) {
	startTime := biztime.NowUTC()
	if err := refresher.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Warnw("node load refresh failed",
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}
	m.logger.Debugw("node load refreshed", "duration", time.Since(startTime))
}

func (m *SchedulerManager) registerBatch(name string, job BatchJob, interval time.Duration, immediate bool, tags ...string) error {
	if job == nil || interval <= 0 {
		return nil
	}

	opts := []gocron.JobOption{
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags(tags...),
		gocron.WithName(name),
	}
	if immediate {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout(interval))
			defer cancel()
			m.runBatch(ctx, name, job)
		}),
		opts...,
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered job", "name", name, "interval", interval.String())
	return nil
}

func (m *SchedulerManager) runBatch(ctx context.Context, name string, job BatchJob) {
	m.logger.Debugw("job started", "name", name)

	startTime := biztime.NowUTC()
	count, err := job.Execute(ctx)
	if err != nil {
		// Shutdown cancels the context; not worth an error line.
		if ctx.Err() != nil {
			return
		}
		m.logger.Errorw("job failed",
			"name", name,
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}
	if count > 0 {
		m.logger.Infow("job processed items",
			"name", name,
			"count", count,
			"duration", time.Since(startTime),
		)
	}
}

// jobTimeout bounds one run to its interval, capped at five minutes.
func jobTimeout(interval time.Duration) time.Duration {
	if interval > 5*time.Minute {
		return 5 * time.Minute
	}
	return interval
}

// ========================================
// Scheduler Lifecycle Methods
// ========================================

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop waits for running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
