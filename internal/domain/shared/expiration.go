package shared

import (
	"errors"
	"time"
)

// ErrConcurrentModification is returned by repositories when an optimistic version
// check fails. Callers retry the whole transaction a bounded number of times.
var ErrConcurrentModification = errors.New("concurrent modification")

// IsExpiredAt reports whether expiresAt is unset or not after now.
// Callers that treat a nil expiry as unlimited check that before calling.
func IsExpiredAt(expiresAt *time.Time, now time.Time) bool {
	if expiresAt == nil {
		return true
	}
	return !now.Before(*expiresAt)
}

// ExtendFrom returns the new expiry for a grant of days. With stack set and a
// current expiry still in the future, the remaining time is kept.
func ExtendFrom(current *time.Time, now time.Time, days int, stack bool) time.Time {
	base := now
	if stack && current != nil && current.After(now) {
		base = *current
	}
	return base.Add(time.Duration(days) * 24 * time.Hour)
}
