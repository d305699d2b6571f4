package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relaygate/relaygate/internal/infrastructure/ratelimit"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/utils"
)

// KeyFunc derives the bucket a request is counted in.
type KeyFunc func(c *gin.Context) string

// ByClientIP counts requests per remote address and route.
func ByClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP() + ":" + c.FullPath()
}

// ByExternalID counts requests per subscriber, falling back to the client address.
func ByExternalID(param string) KeyFunc {
	return func(c *gin.Context) string {
		if id := c.Param(param); id != "" {
			return "sub:" + id + ":" + c.FullPath()
		}
		return ByClientIP(c)
	}
}

// RateLimiter enforces a sliding window per key on top of a shared limiter.
type RateLimiter struct {
	limiter ratelimit.RateLimiter
	rule    ratelimit.Rule
	logger  logger.Interface
}

func NewRateLimiter(limiter ratelimit.RateLimiter, limit int, window time.Duration, log logger.Interface) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		rule:    ratelimit.Rule{Limit: limit, Window: window},
		logger:  log,
	}
}

// Limit returns a middleware counting requests under key. Limiter failures let the
// request through; a broken redis must not take payments down with it.
func (rl *RateLimiter) Limit(key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.limiter == nil || rl.rule.Limit <= 0 {
			c.Next()
			return
		}

		k := key(c)
		allowed, err := rl.limiter.Allow(c.Request.Context(), k, rl.rule)
		if err != nil {
			rl.logger.Warnw("rate limiter unavailable, allowing request",
				"key", k,
				"error", err,
			)
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(rl.rule.Window.Seconds())))
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
