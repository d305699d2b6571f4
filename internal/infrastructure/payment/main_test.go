package payment

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/relaygate/relaygate/internal/infrastructure/database"
	"github.com/relaygate/relaygate/internal/infrastructure/migration"
	"github.com/relaygate/relaygate/internal/shared/config"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)

	strategy, err := migration.NewGooseStrategy("sqlite", logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, strategy.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
