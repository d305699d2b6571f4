package http

import (
	"gorm.io/gorm"

	"github.com/relaygate/relaygate/internal/infrastructure/repository"
)

// repositories holds all repository instances used by the application.
// Types match the return types of the repository constructors.
type repositories struct {
	subscriberRepo *repository.SubscriberRepository
	paymentRepo    *repository.PaymentRepository
	planRepo       *repository.PlanRepository
	trialRepo      *repository.TrialRepository
	nodeRepo       *repository.NodeRepository
}

// newRepositories creates all repository instances from the database connection.
func newRepositories(db *gorm.DB) *repositories {
	return &repositories{
		subscriberRepo: repository.NewSubscriberRepository(db),
		paymentRepo:    repository.NewPaymentRepository(db),
		planRepo:       repository.NewPlanRepository(db),
		trialRepo:      repository.NewTrialRepository(db),
		nodeRepo:       repository.NewNodeRepository(db),
	}
}
