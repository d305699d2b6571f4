package migrate

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/relaygate/relaygate/internal/infrastructure/config"
	"github.com/relaygate/relaygate/internal/infrastructure/database"
	"github.com/relaygate/relaygate/internal/infrastructure/migration"
	"github.com/relaygate/relaygate/internal/interfaces/cli/bootstrap"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

var (
	env   string
	name  string
	steps int
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Manage database migrations including running migrations, checking status, and creating new migration files.`,
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	cmd.AddCommand(
		newUpCommand(),
		newDownCommand(),
		newStatusCommand(),
		newCreateCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		Long:  `Apply all pending database migrations to bring the database schema up to date.`,
		RunE:  runUp,
	}
}

func newDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		Long:  `Rollback a specified number of database migrations.`,
		RunE:  runDown,
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  `Display the current migration version and status of the database.`,
		RunE:  runStatus,
	}
}

func newCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new migration",
		Long:  `Create a new SQL migration file for the configured database driver.`,
		RunE:  runCreate,
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the migration (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func initEnv() (*bootstrap.Runtime, *migration.GooseStrategy, error) {
	rt, err := bootstrap.Init(env)
	if err != nil {
		return nil, nil, err
	}
	strategy, err := migration.NewGooseStrategy(rt.Config.Database.Driver, rt.Log)
	if err != nil {
		rt.Close()
		return nil, nil, err
	}
	return rt, strategy, nil
}

func runUp(cmd *cobra.Command, args []string) error {
	rt, strategy, err := initEnv()
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Log.Infow("running up migrations", "environment", rt.Env)

	if err := strategy.Migrate(database.Get()); err != nil {
		rt.Log.Errorw("migration failed", "error", err)
		return fmt.Errorf("migration failed: %w", err)
	}

	rt.Log.Infow("migrations completed successfully")
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	rt, strategy, err := initEnv()
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Log.Infow("running down migrations", "environment", rt.Env, "steps", steps)

	if err := strategy.MigrateDown(database.Get(), steps); err != nil {
		rt.Log.Errorw("down migration failed", "error", err)
		return fmt.Errorf("down migration failed: %w", err)
	}

	rt.Log.Infow("down migration completed successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, strategy, err := initEnv()
	if err != nil {
		return err
	}
	defer rt.Close()

	version, err := strategy.GetVersion(database.Get())
	if err != nil {
		rt.Log.Errorw("failed to get migration version", "error", err)
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nMigration Status:\n")
	fmt.Fprintf(out, "  Environment:     %s\n", rt.Env)
	fmt.Fprintf(out, "  Driver:          %s\n", rt.Config.Database.Driver)
	fmt.Fprintf(out, "  Current Version: %d\n", version)

	if err := strategy.Status(database.Get()); err != nil {
		rt.Log.Errorw("failed to get detailed status", "error", err)
		return fmt.Errorf("failed to get detailed status: %w", err)
	}
	return nil
}

// runCreate needs only the driver, so it skips the database connection.
func runCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(bootstrap.ResolveEnv(env))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()
	log := logger.NewLogger()

	driver := cfg.Database.Driver
	strategy, err := migration.NewGooseStrategy(driver, log)
	if err != nil {
		return err
	}

	dir, err := filepath.Abs(filepath.Join("internal", "infrastructure", "migration", "scripts", driver))
	if err != nil {
		return fmt.Errorf("failed to get scripts path: %w", err)
	}
	if err := strategy.Create(dir, name); err != nil {
		log.Errorw("failed to create migration", "error", err)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Migration '%s' created in %s\n", name, dir)
	return nil
}
