package server

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMapEnvToGinMode(t *testing.T) {
	tests := []struct {
		env, want string
	}{
		{"production", gin.ReleaseMode},
		{"prod", gin.ReleaseMode},
		{"release", gin.ReleaseMode},
		{"test", gin.TestMode},
		{"development", gin.DebugMode},
		{"staging", gin.DebugMode},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapEnvToGinMode(tt.env), tt.env)
	}
}
