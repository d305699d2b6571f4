package provisioning

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "refused", 10, "refused"},
		{"ascii cut", "connection refused", 10, "connection"},
		{"cut inside cyrillic rune", "ошибка", 5, "ош"},
		{"cut on rune boundary", "ошибка", 4, "ош"},
		{"cut inside four byte rune", "ab😀", 4, "ab"},
		{"zero", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len(got), tt.n)
		})
	}

	long := strings.Repeat("ё", 400)
	got := truncate(long, 500)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 250, utf8.RuneCountInString(got))
}
