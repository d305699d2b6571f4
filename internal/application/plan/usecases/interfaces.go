package usecases

import "context"

// PlanReferences counts payments pointing at a plan.
type PlanReferences interface {
	CountByPlanID(ctx context.Context, planID uint) (int64, error)
}
