package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsExpiredAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	assert.True(t, IsExpiredAt(nil, now))
	assert.True(t, IsExpiredAt(&past, now))
	assert.True(t, IsExpiredAt(&now, now))
	assert.False(t, IsExpiredAt(&future, now))
}

func TestExtendFrom(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	remaining := now.Add(10 * 24 * time.Hour)
	lapsed := now.Add(-24 * time.Hour)

	tests := []struct {
		name    string
		current *time.Time
		stack   bool
		want    time.Time
	}{
		{"reset ignores remaining time", &remaining, false, now.Add(30 * 24 * time.Hour)},
		{"stack keeps remaining time", &remaining, true, remaining.Add(30 * 24 * time.Hour)},
		{"stack from lapsed expiry starts now", &lapsed, true, now.Add(30 * 24 * time.Hour)},
		{"no previous expiry", nil, true, now.Add(30 * 24 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtendFrom(tt.current, now, 30, tt.stack))
		})
	}
}
