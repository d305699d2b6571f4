package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "***", MaskSecret("abc"))
	assert.Equal(t, "sk***ef", MaskSecret("sk_live_abcdef"))
}

func TestTruncateForLog(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short", "ok", 10, "ok"},
		{"cut", `{"event":"payment.succeeded"}`, 8, `{"event"...`},
		{"rune boundary", "оплата", 3, "о..."},
		{"non positive", "abc", 0, "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateForLog(tt.in, tt.maxLen))
		})
	}
}
