package http

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	nodeServices "github.com/relaygate/relaygate/internal/application/node/services"
	nodeUsecases "github.com/relaygate/relaygate/internal/application/node/usecases"
	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	"github.com/relaygate/relaygate/internal/application/provisioning"
	"github.com/relaygate/relaygate/internal/infrastructure/config"
	"github.com/relaygate/relaygate/internal/infrastructure/payment"
	"github.com/relaygate/relaygate/internal/infrastructure/pubsub"
	"github.com/relaygate/relaygate/internal/infrastructure/scheduler"
	"github.com/relaygate/relaygate/internal/interfaces/http/middleware"
	"github.com/relaygate/relaygate/internal/shared/db"
	"github.com/relaygate/relaygate/internal/shared/goroutine"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// Container holds all infrastructure components, repositories, use cases, handlers,
// and background services. It is responsible for wiring everything together and
// providing a Shutdown() method for graceful termination.
type Container struct {
	// Core infrastructure
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	log    logger.Interface
	redis  *redis.Client // nil when redis is disabled
	txMgr  *db.TransactionManager

	// Repositories
	repos *repositories

	// Use cases
	ucs *UseCases

	// Handlers
	hdlrs *allHandlers

	// Middlewares
	apiKeyMiddleware *middleware.APIKeyMiddleware
	rateLimiter      *middleware.RateLimiter

	// Node allocation and provisioning
	gateways     *paymentgateway.Registry
	suffixes     *payment.SuffixAllocator
	nodeRegistry *nodeServices.NodeRegistry
	allocator    *nodeServices.Allocator
	loadCache    nodeUsecases.LoadCache
	provisioner  *provisioning.Service

	// Background jobs
	schedulerManager *scheduler.SchedulerManager

	// Cross-instance node cache invalidation; nil without redis
	nodeEvents       *pubsub.RedisNodeEventBus
	nodeEventsCancel context.CancelFunc
	nodeEventsMu     sync.Mutex
}

// NewContainer creates a new Container with all dependencies wired together.
// Sections run in dependency order: infrastructure, nodes, payments, use cases,
// handlers, then background jobs.
func NewContainer(db *gorm.DB, cfg *config.Config, log logger.Interface) (*Container, error) {
	c := &Container{
		engine: gin.New(),
		db:     db,
		cfg:    cfg,
		log:    log,
	}
	if err := c.engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	// Section 1: Infrastructure - Redis, Repositories, Middlewares
	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}

	// Section 2: Nodes - Registry, Allocator, Provisioning
	if err := c.initNodes(); err != nil {
		c.closeRedis()
		return nil, err
	}

	// Section 3: Payments - Gateway registry
	if err := c.initPayments(); err != nil {
		c.closeRedis()
		return nil, err
	}

	// Section 4: Use cases
	c.ucs = newUseCases(c)

	// Section 5: Handlers
	c.hdlrs = newHandlers(c)

	// Section 6: Scheduler jobs
	if err := c.initScheduler(); err != nil {
		c.closeRedis()
		return nil, err
	}

	return c, nil
}

// UseCases exposes the wired use cases to the CLI commands.
func (c *Container) UseCases() *UseCases {
	return c.ucs
}

// Engine returns the Gin engine.
func (c *Container) Engine() *gin.Engine {
	return c.engine
}

// StartBackground starts the scheduler and the node event subscriber. The
// server calls it; one-shot CLI commands do not.
func (c *Container) StartBackground() {
	c.schedulerManager.Start()

	if c.nodeEvents == nil {
		return
	}
	c.nodeEventsMu.Lock()
	defer c.nodeEventsMu.Unlock()
	if c.nodeEventsCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.nodeEventsCancel = cancel
	goroutine.SafeGo(c.log, "node-event-subscriber", func() {
		err := c.nodeEvents.SubscribeNodesChanged(ctx, func(e pubsub.NodesChangedEvent) {
			c.log.Debugw("peer changed nodes, dropping load snapshot", "node_id", e.NodeID)
			c.allocator.Invalidate()
		})
		if err != nil && ctx.Err() == nil {
			c.log.Errorw("node event subscriber exited", "error", err)
		}
	})
}

// Shutdown gracefully stops background jobs and releases connections.
// The database is owned by the caller.
func (c *Container) Shutdown(ctx context.Context) {
	c.nodeEventsMu.Lock()
	if c.nodeEventsCancel != nil {
		c.nodeEventsCancel()
		c.nodeEventsCancel = nil
	}
	c.nodeEventsMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.schedulerManager.Stop(); err != nil {
			c.log.Warnw("scheduler stop failed", "error", err)
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		c.log.Warnw("shutdown deadline reached before background jobs finished")
	}

	c.closeRedis()
}

func (c *Container) closeRedis() {
	if c.redis == nil {
		return
	}
	if err := c.redis.Close(); err != nil {
		c.log.Warnw("failed to close redis client", "error", err)
	}
	c.redis = nil
}
