package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/relaygate/relaygate/internal/infrastructure/database"
	"github.com/relaygate/relaygate/internal/infrastructure/migration"
	"github.com/relaygate/relaygate/internal/interfaces/cli/bootstrap"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/version"
)

var (
	env                string
	autoMigrate        bool
	skipMigrationCheck bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long:  `Start the webhook and API server together with the background reconciliation jobs.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Automatically run database migrations on startup (not recommended for production)")
	cmd.Flags().BoolVar(&skipMigrationCheck, "skip-migration-check", false, "Skip migration status check on startup")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap.Init(env)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.Config
	log := rt.Log
	cfg.Server.Mode = mapEnvToGinMode(rt.Env)

	log.Infow("starting server",
		"environment", rt.Env,
		"version", version.String(),
		"auto_migrate", autoMigrate,
	)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {}

	if err := handleMigrations(rt, log); err != nil {
		return fmt.Errorf("migration handling failed: %w", err)
	}

	container, err := rt.Container()
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	container.SetupRoutes()
	container.StartBackground()

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      container.Engine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("server starting",
			"address", cfg.Server.GetAddr(),
			"mode", cfg.Server.Mode,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serveErr:
		log.Errorw("server failed", "error", err)
		return err
	}

	log.Infow("shutting down server...")

	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

func handleMigrations(rt *bootstrap.Runtime, log logger.Interface) error {
	if skipMigrationCheck {
		log.Infow("skipping migration check")
		return nil
	}

	driver := rt.Config.Database.Driver

	if autoMigrate {
		if rt.Env == "production" {
			log.Warnw("auto-migration is enabled in production environment - this is not recommended!")
		}

		log.Infow("running auto-migration")
		manager, err := migration.NewManager(rt.Env, driver, log)
		if err != nil {
			return err
		}
		if err := manager.Migrate(database.Get()); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
		log.Infow("auto-migration completed successfully")
		return nil
	}

	log.Infow("checking migration status")

	strategy, err := migration.NewGooseStrategy(driver, log)
	if err != nil {
		return err
	}
	v, err := strategy.GetVersion(database.Get())
	if err != nil {
		log.Warnw("failed to check migration status", "error", err)
		return nil
	}
	log.Infow("current migration version", "version", v)
	return nil
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return gin.ReleaseMode
	case "test", "testing":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
