// Package biztime centralizes wall-clock access. All storage and transport use UTC.
package biztime

import "time"

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Clock is the injectable time source used by use cases and the node allocator.
type Clock func() time.Time

// SystemClock is the production Clock.
var SystemClock Clock = NowUTC
