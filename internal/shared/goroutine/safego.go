// Package goroutine launches background work that must never take the process down.
package goroutine

import (
	"fmt"
	"runtime/debug"

	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/metrics"
)

// SafeGo runs fn on its own goroutine. A panic is logged with its stack and
// counted under name instead of crashing the process.
func SafeGo(log logger.Interface, name string, fn func()) {
	go Run(log, name, fn)
}

// Run calls fn on the current goroutine with the same recovery as SafeGo and
// reports whether fn returned normally.
func Run(log logger.Interface, name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			metrics.BackgroundPanicsTotal.WithLabelValues(name).Inc()
			log.Errorw("goroutine panicked",
				"goroutine", name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
	return true
}
