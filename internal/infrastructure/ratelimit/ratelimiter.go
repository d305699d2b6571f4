// Package ratelimit implements sliding-window request limits shared across instances.
package ratelimit

import (
	"context"
	"time"
)

// Rule allows Limit requests per Window. A non-positive Limit disables the rule.
type Rule struct {
	Limit  int
	Window time.Duration
}

type RateLimiter interface {
	// Allow records one request for key and reports whether every rule still admits it.
	Allow(ctx context.Context, key string, rules ...Rule) (bool, error)
	// Used returns how many requests key made inside window.
	Used(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
}
