package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relaygate/relaygate/internal/shared/logger"
)

// quietPaths are polled by probes and scrapers and only logged at debug.
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Logger writes one structured line per request. The level follows the response status.
func Logger(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		args := []any{
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
		}
		if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
			args = append(args, "request_id", requestID)
		}
		if provider := c.Param("provider"); provider != "" {
			args = append(args, "provider", provider)
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Errorw("HTTP request completed with server error", args...)
		case status >= 400:
			log.Warnw("HTTP request completed with client error", args...)
		case quietPaths[c.Request.URL.Path]:
			log.Debugw("HTTP probe served", args...)
		default:
			log.Infow("HTTP request completed", args...)
		}
	}
}
