package middleware

import (
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/utils"
)

// sensitiveHeaders are masked before a request dump is logged.
var sensitiveHeaders = map[string]bool{
	"authorization":                   true,
	"x-api-key":                       true,
	"stripe-signature":                true,
	"x-telegram-bot-api-secret-token": true,
}

// Recovery turns a handler panic into a 500 and logs the request with secrets masked.
func Recovery(log logger.Interface) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		if isBrokenConnection(recovered) {
			log.Warnw("connection broken during request",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", recovered,
			)
			c.Abort()
			return
		}

		log.Errorw("panic recovered",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"headers", maskedHeaders(c.Request),
			"error", recovered,
			"stack", string(debug.Stack()),
		)

		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error occurred")
		c.Abort()
	})
}

func maskedHeaders(r *http.Request) []string {
	dump, _ := httputil.DumpRequest(r, false)
	lines := strings.Split(string(dump), "\r\n")
	for i, line := range lines {
		name, _, found := strings.Cut(line, ":")
		if found && sensitiveHeaders[strings.ToLower(strings.TrimSpace(name))] {
			lines[i] = name + ": *"
		}
	}
	return lines
}

func isBrokenConnection(recovered any) bool {
	err, ok := recovered.(error)
	if !ok {
		return false
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !errors.As(opErr.Err, &sysErr) {
		return false
	}
	msg := strings.ToLower(sysErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}

// ErrorHandler renders the last error a handler attached with c.Error, if nothing was written yet.
func ErrorHandler(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		log.Errorw("handler error occurred",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", err,
		)
		utils.ErrorResponseWithError(c, err)
	}
}
