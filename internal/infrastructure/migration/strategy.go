package migration

import (
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/relaygate/relaygate/internal/shared/logger"
)

//go:embed scripts/mysql/*.sql scripts/sqlite/*.sql
var scripts embed.FS

// goose keeps its dialect and base filesystem in package globals.
var gooseMu sync.Mutex

// Strategy defines the interface for different migration strategies
type Strategy interface {
	// Migrate executes the migration strategy
	Migrate(db *gorm.DB, models ...interface{}) error
	// GetName returns the strategy name
	GetName() string
}

// GormAutoMigrateStrategy creates tables from the model structs. Used for local development.
type GormAutoMigrateStrategy struct {
	logger logger.Interface
}

func NewGormAutoMigrateStrategy(log logger.Interface) Strategy {
	return &GormAutoMigrateStrategy{logger: log.With("component", "migration.automigrate")}
}

func (s *GormAutoMigrateStrategy) Migrate(db *gorm.DB, models ...interface{}) error {
	s.logger.Infow("starting gorm auto migration", "models_count", len(models))
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func (s *GormAutoMigrateStrategy) GetName() string {
	return "gorm_auto_migrate"
}

// GooseStrategy runs the embedded SQL scripts for one dialect.
type GooseStrategy struct {
	dialect string
	dir     string
	logger  logger.Interface
}

// NewGooseStrategy accepts "mysql" or "sqlite".
func NewGooseStrategy(driver string, log logger.Interface) (*GooseStrategy, error) {
	var dialect string
	switch driver {
	case "mysql":
		dialect = "mysql"
	case "sqlite":
		dialect = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported migration driver: %s", driver)
	}
	return &GooseStrategy{
		dialect: dialect,
		dir:     "scripts/" + driver,
		logger:  log.With("component", "migration.goose"),
	}, nil
}

func (s *GooseStrategy) GetName() string {
	return "goose"
}

// with prepares goose's globals for the embedded scripts and holds them while fn runs.
func (s *GooseStrategy) with(fsys fs.FS, fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(s.dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return fn()
}

func (s *GooseStrategy) Migrate(db *gorm.DB, _ ...interface{}) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	return s.with(scripts, func() error {
		currentVersion, err := goose.GetDBVersion(sqlDB)
		if err != nil {
			s.logger.Errorw("failed to get current version", "error", err)
			return fmt.Errorf("failed to get current version: %w", err)
		}
		s.logger.Infow("current migration status", "version", currentVersion)

		if err := goose.Up(sqlDB, s.dir); err != nil {
			s.logger.Errorw("migration failed", "error", err)
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		finalVersion, err := goose.GetDBVersion(sqlDB)
		if err != nil {
			return fmt.Errorf("failed to get final version: %w", err)
		}
		s.logger.Infow("migration completed successfully",
			"from_version", currentVersion,
			"to_version", finalVersion)
		return nil
	})
}

func (s *GooseStrategy) MigrateDown(db *gorm.DB, steps int) error {
	s.logger.Infow("starting down migration", "steps", steps)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	return s.with(scripts, func() error {
		for i := 0; i < steps; i++ {
			if err := goose.Down(sqlDB, s.dir); err != nil {
				s.logger.Errorw("down migration failed", "error", err)
				return fmt.Errorf("failed to run down migration: %w", err)
			}
		}
		s.logger.Infow("down migration completed successfully")
		return nil
	})
}

func (s *GooseStrategy) GetVersion(db *gorm.DB) (int64, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return 0, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	var version int64
	err = s.with(scripts, func() error {
		v, err := goose.GetDBVersion(sqlDB)
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

func (s *GooseStrategy) Status(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	return s.with(scripts, func() error {
		if err := goose.Status(sqlDB, s.dir); err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		return nil
	})
}

// Create writes a new timestamped SQL migration into dir on disk.
func (s *GooseStrategy) Create(dir, name string) error {
	return s.with(nil, func() error {
		if err := goose.Create(nil, dir, name, "sql"); err != nil {
			return fmt.Errorf("failed to create migration: %w", err)
		}
		s.logger.Infow("migration created successfully", "name", name, "dir", dir)
		return nil
	})
}
