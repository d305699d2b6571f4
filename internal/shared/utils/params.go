package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/relaygate/relaygate/internal/shared/errors"
)

// ParseExternalIDParam parses the subscriber's external (messenger) id from a path parameter.
func ParseExternalIDParam(c *gin.Context, paramName string) (int64, error) {
	raw := c.Param(paramName)
	if raw == "" {
		return 0, errors.NewValidationError(paramName + " is required")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, errors.NewValidationError("invalid " + paramName)
	}
	return v, nil
}
