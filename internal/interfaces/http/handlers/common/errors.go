// Package common holds helpers shared by the public and admin handlers.
package common

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/relaygate/relaygate/internal/domain/node"
	"github.com/relaygate/relaygate/internal/domain/plan"
	"github.com/relaygate/relaygate/internal/domain/shared"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	"github.com/relaygate/relaygate/internal/domain/trial"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/utils"
)

// RespondError renders err, translating domain sentinels that reach the handler
// unconverted. Unknown errors become a generic 500. Anything other than a
// validation, not found or conflict outcome is attached to the context so the
// request log carries the cause.
func RespondError(c *gin.Context, err error) {
	appErr := ToAppError(err)
	if !isClientOutcome(appErr) {
		_ = c.Error(err)
	}
	utils.ErrorResponseWithError(c, appErr)
}

func isClientOutcome(err error) bool {
	return apperrors.IsValidationError(err) ||
		apperrors.IsNotFoundError(err) ||
		apperrors.IsConflictError(err)
}

// ToAppError maps domain errors to their HTTP-facing form and passes AppErrors through.
func ToAppError(err error) error {
	if apperrors.GetAppError(err) != nil {
		return err
	}
	switch {
	case errors.Is(err, trial.ErrTrialNotEligible):
		return apperrors.NewForbiddenError("trial is not available for this subscriber")
	case errors.Is(err, subscriber.ErrSubscriberBanned):
		return apperrors.NewForbiddenError("access has been revoked")
	case errors.Is(err, subscriber.ErrSubscriberNotFound):
		return apperrors.NewNotFoundError("subscriber not found")
	case errors.Is(err, plan.ErrPlanNotFound):
		return apperrors.NewNotFoundError("plan not found")
	case errors.Is(err, plan.ErrPlanReferenced):
		return apperrors.NewConflictError(plan.ErrPlanReferenced.Error())
	case errors.Is(err, node.ErrNodeNotFound):
		return apperrors.NewNotFoundError("node not found")
	case errors.Is(err, node.ErrNoNodeAvailable), errors.Is(err, node.ErrNodeUnavailable):
		return apperrors.NewUnavailableError("no relay node is available, try again later")
	case errors.Is(err, shared.ErrConcurrentModification):
		return apperrors.NewConflictError("the record changed concurrently, retry the request")
	}
	return err
}
