// Package errors provides application-level error types that map onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation_error"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeForbidden   ErrorType = "forbidden"
	ErrorTypeInternal    ErrorType = "internal_error"
	ErrorTypeUnavailable ErrorType = "service_unavailable"
)

// AppError represents an application error with additional context
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details string    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func newAppError(t ErrorType, code int, message string, details []string) *AppError {
	e := &AppError{Type: t, Message: message, Code: code}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

// NewValidationError reports input the caller must fix before retrying.
func NewValidationError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, details)
}

func NewNotFoundError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, details)
}

// NewConflictError reports a state clash such as a duplicate node or a referenced plan.
func NewConflictError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message, details)
}

// NewForbiddenError reports a subscriber whose entitlement does not allow the action
// (revoked, expired, over traffic, trial not eligible).
func NewForbiddenError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeForbidden, http.StatusForbidden, message, details)
}

// NewUnavailableError signals a retryable dependency failure (provider, node pool, store).
func NewUnavailableError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeUnavailable, http.StatusServiceUnavailable, message, details)
}

// GetAppError extracts AppError from error
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func isType(err error, t ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == t
}

func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsDuplicateError checks if the error is a database duplicate key error
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errStr := err.Error()
	// MySQL
	if strings.Contains(errStr, "Duplicate entry") {
		return true
	}
	// SQLite
	return strings.Contains(errStr, "UNIQUE constraint failed")
}
