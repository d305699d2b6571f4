// Package bootstrap loads configuration, logging and the database for CLI commands.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/relaygate/relaygate/internal/infrastructure/config"
	"github.com/relaygate/relaygate/internal/infrastructure/database"
	httpRouter "github.com/relaygate/relaygate/internal/interfaces/http"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// CommandTimeout bounds one-shot admin commands.
const CommandTimeout = 2 * time.Minute

// Runtime is a loaded configuration with an open database and initialized logger.
type Runtime struct {
	Env    string
	Config *config.Config
	Log    logger.Interface

	container *httpRouter.Container
}

// ResolveEnv lets the ENV variable override the --env flag.
func ResolveEnv(flag string) string {
	if v := os.Getenv("ENV"); v != "" {
		return v
	}
	return flag
}

// Init loads config for env, then initializes the logger and the database.
func Init(env string) (*Runtime, error) {
	env = ResolveEnv(env)

	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := database.Init(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Runtime{
		Env:    env,
		Config: cfg,
		Log:    logger.NewLogger(),
	}, nil
}

// Container builds the application container once. Background jobs are not started.
func (r *Runtime) Container() (*httpRouter.Container, error) {
	if r.container != nil {
		return r.container, nil
	}
	c, err := httpRouter.NewContainer(database.Get(), r.Config, r.Log)
	if err != nil {
		return nil, err
	}
	r.container = c
	return c, nil
}

// Close releases the container, the database and flushes the logger.
func (r *Runtime) Close() {
	if r.container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		r.container.Shutdown(ctx)
		cancel()
	}
	if err := database.Close(); err != nil {
		r.Log.Warnw("failed to close database", "error", err)
	}
	_ = logger.Sync()
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
