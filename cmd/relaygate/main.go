package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/relaygate/relaygate/internal/interfaces/cli/admin"
	"github.com/relaygate/relaygate/internal/interfaces/cli/migrate"
	"github.com/relaygate/relaygate/internal/interfaces/cli/nodes"
	"github.com/relaygate/relaygate/internal/interfaces/cli/plans"
	"github.com/relaygate/relaygate/internal/interfaces/cli/server"
	"github.com/relaygate/relaygate/internal/interfaces/cli/version"
)

// @title						Relaygate API
// @version					1.0
// @description				Payment reconciliation, subscriber entitlements and relay node allocation.
// @BasePath					/
// @securityDefinitions.apikey	ApiKeyAuth
// @in							header
// @name						X-API-Key
func main() {
	rootCmd := &cobra.Command{
		Use:   "relaygate",
		Short: "Relaygate - paid access reconciliation and relay node allocation",
		Long: `Relaygate turns payment provider notifications into subscriber entitlements
and provisions accounts on the least loaded relay node.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		admin.NewCommand(),
		nodes.NewCommand(),
		plans.NewCommand(),
		version.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
