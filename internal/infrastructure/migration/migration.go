package migration

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/relaygate/relaygate/internal/infrastructure/persistence/models"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// Manager handles database migrations with different strategies
type Manager struct {
	strategy Strategy
	logger   logger.Interface
}

// NewManager picks auto-migration for development and the SQL scripts everywhere else.
func NewManager(environment, driver string, log logger.Interface) (*Manager, error) {
	var strategy Strategy
	switch strings.ToLower(environment) {
	case "development", "dev":
		strategy = NewGormAutoMigrateStrategy(log)
	default:
		s, err := NewGooseStrategy(driver, log)
		if err != nil {
			return nil, err
		}
		strategy = s
	}
	return &Manager{strategy: strategy, logger: log.With("component", "migration.manager")}, nil
}

// Migrate executes the configured migration strategy
func (m *Manager) Migrate(db *gorm.DB) error {
	m.logger.Infow("starting database migration", "strategy", m.strategy.GetName())

	if err := m.strategy.Migrate(db, models.All()...); err != nil {
		m.logger.Errorw("migration failed", "strategy", m.strategy.GetName(), "error", err)
		return fmt.Errorf("migration failed with strategy %s: %w", m.strategy.GetName(), err)
	}

	m.logger.Infow("database migration completed successfully", "strategy", m.strategy.GetName())
	return nil
}

func (m *Manager) GetStrategy() Strategy {
	return m.strategy
}
