package http

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	nodeServices "github.com/relaygate/relaygate/internal/application/node/services"
	"github.com/relaygate/relaygate/internal/application/provisioning"
	"github.com/relaygate/relaygate/internal/infrastructure/config"
	"github.com/relaygate/relaygate/internal/infrastructure/marzban"
	"github.com/relaygate/relaygate/internal/infrastructure/payment"
	"github.com/relaygate/relaygate/internal/infrastructure/pubsub"
	"github.com/relaygate/relaygate/internal/infrastructure/ratelimit"
	"github.com/relaygate/relaygate/internal/infrastructure/scheduler"
	"github.com/relaygate/relaygate/internal/interfaces/http/middleware"
	"github.com/relaygate/relaygate/internal/shared/db"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// ============================================================
// Section 1: Infrastructure - Redis, Repositories, Middlewares
// ============================================================

func (c *Container) initInfrastructure() error {
	cfg := c.cfg
	log := c.log

	if cfg.Redis.Enabled {
		client, err := initRedis(cfg, log)
		if err != nil {
			return err
		}
		c.redis = client
	}

	c.repos = newRepositories(c.db)
	c.txMgr = db.NewTransactionManager(c.db)
	if cfg.Database.Driver == "mysql" {
		c.txMgr.WithIsolation(sql.LevelReadCommitted)
	}

	c.apiKeyMiddleware = middleware.NewAPIKeyMiddleware(cfg.API.Key, log)
	if c.redis != nil {
		c.rateLimiter = middleware.NewRateLimiter(
			ratelimit.NewRedisRateLimiter(c.redis),
			cfg.API.RateLimit,
			cfg.API.RateLimitWindow,
			log,
		)
	} else if cfg.API.RateLimit > 0 {
		log.Warnw("rate limiting configured but redis is disabled, routes are unlimited")
	}
	return nil
}

// initRedis creates and tests the Redis client connection.
func initRedis(cfg *config.Config, log logger.Interface) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.GetAddr(), err)
	}
	log.Infow("Redis connection established successfully", "addr", cfg.Redis.GetAddr())

	return redisClient, nil
}

// ============================================================
// Section 2: Nodes - Registry, Allocator, Provisioning
// ============================================================

func (c *Container) initNodes() error {
	cfg := c.cfg
	log := c.log

	registry, err := nodeServices.NewNodeRegistry(c.repos.nodeRepo, cfg.NodeSpecs(), log.Named("nodes"))
	if err != nil {
		return fmt.Errorf("failed to load node registry: %w", err)
	}
	c.nodeRegistry = registry

	clients := marzban.NewClientFactory(cfg.Provisioning.Timeout, log.Named("marzban"))

	c.allocator = nodeServices.NewAllocator(registry, clients, registry, nodeServices.AllocatorConfig{
		CacheTTL:     cfg.Allocator.CacheTTL,
		PollTimeout:  cfg.Allocator.PollTimeout,
		PollParallel: cfg.Allocator.PollParallel,
	}, log.Named("allocator"))

	c.loadCache = c.allocator
	if c.redis != nil {
		c.nodeEvents = pubsub.NewRedisNodeEventBus(c.redis, log.Named("node-events"))
		c.loadCache = nodeServices.NewSharedLoadCache(c.allocator, c.nodeEvents, log)
	}

	c.provisioner = provisioning.NewService(
		c.repos.subscriberRepo,
		c.txMgr,
		c.allocator,
		registry,
		clients,
		cfg.Provisioning.Timeout,
		log.Named("provisioning"),
	)

	log.Infow("node allocation initialized", "source", registry.Source(context.Background()))
	return nil
}

// ============================================================
// Section 3: Payments - Gateway registry
// ============================================================

const suffixCleanupInterval = 10 * time.Minute

func (c *Container) initPayments() error {
	stores := payment.OnchainStores{TxRefs: c.repos.paymentRepo}
	if c.cfg.Payment.Onchain.Enabled {
		c.suffixes = payment.NewSuffixAllocator(c.db, c.log.Named("onchain-suffix"))
		stores.Suffixes = c.suffixes
	}
	gateways, err := payment.BuildRegistry(c.cfg.Payment, stores, c.log.Named("payment"))
	if err != nil {
		return fmt.Errorf("failed to initialize payment gateways: %w", err)
	}
	c.gateways = gateways
	return nil
}

// ============================================================
// Section 6: Scheduler - Background reconciliation
// ============================================================

func (c *Container) initScheduler() error {
	cfg := c.cfg
	ucs := c.ucs

	manager, err := scheduler.NewSchedulerManager(c.log.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	c.schedulerManager = manager

	retryJob := scheduler.BatchFunc(func(ctx context.Context) (int, error) {
		res, err := ucs.RetryProvisioning.Execute(ctx)
		if err != nil {
			return 0, err
		}
		return res.Succeeded, nil
	})
	if err := manager.RegisterProvisioningJobs(
		retryJob, cfg.Provisioning.RetryInterval,
		ucs.SyncUsage, cfg.Provisioning.UsageSyncInterval,
	); err != nil {
		return err
	}

	paymentJob := scheduler.BatchFunc(func(ctx context.Context) (int, error) {
		res, err := ucs.SyncPendingPayments.Execute(ctx)
		if err != nil {
			return 0, err
		}
		return res.Settled + res.Cancelled, nil
	})
	var suffixJob scheduler.BatchJob
	if c.suffixes != nil {
		suffixJob = scheduler.BatchFunc(func(ctx context.Context) (int, error) {
			n, err := c.suffixes.CleanupExpired(ctx)
			return int(n), err
		})
	}
	if err := manager.RegisterPaymentJobs(paymentJob, cfg.Payment.SyncInterval, suffixJob, suffixCleanupInterval); err != nil {
		return err
	}

	trialJob := scheduler.BatchFunc(func(ctx context.Context) (int, error) {
		n, err := ucs.ExpireTrials.Execute(ctx)
		return int(n), err
	})
	if err := manager.RegisterTrialJobs(trialJob, cfg.Trial.ExpireEvery); err != nil {
		return err
	}

	return manager.RegisterNodeJobs(c.allocator, cfg.Allocator.CacheTTL)
}
