// Package admin holds operator commands that act on subscriber entitlements.
package admin

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	entitlementUsecases "github.com/relaygate/relaygate/internal/application/entitlement/usecases"
	"github.com/relaygate/relaygate/internal/interfaces/cli/bootstrap"
)

var (
	env       string
	days      int
	trafficGB float64
	devices   int
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Subscriber administration",
		Long:  `Grant or revoke access manually and run reconciliation passes on demand.`,
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	cmd.AddCommand(
		newGrantCommand(),
		newRevokeCommand(),
		newShowCommand(),
		newRetryCommand(),
		newSyncPaymentsCommand(),
	)
	return cmd
}

func newGrantCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant <external_id>",
		Short: "Grant paid access for a number of days",
		Args:  cobra.ExactArgs(1),
		RunE:  runGrant,
	}
	cmd.Flags().IntVarP(&days, "days", "d", 30, "Days of access")
	cmd.Flags().Float64VarP(&trafficGB, "traffic", "t", -1, "Traffic limit in GB, 0 for unlimited (default: entitlement.default_traffic_gb)")
	cmd.Flags().IntVar(&devices, "devices", 0, "Device limit (default: entitlement.device_limit)")
	return cmd
}

func newRevokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <external_id>",
		Short: "Ban a subscriber and remove the node account",
		Args:  cobra.ExactArgs(1),
		RunE:  runRevoke,
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <external_id>",
		Short: "Print a subscriber's entitlement",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
}

func newRetryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-provisioning",
		Short: "Retry subscribers left pending provisioning",
		Args:  cobra.NoArgs,
		RunE:  runRetry,
	}
}

func newSyncPaymentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-payments",
		Short: "Poll providers for pending payments",
		Args:  cobra.NoArgs,
		RunE:  runSyncPayments,
	}
}

func parseExternalID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid external id %q", s)
	}
	return id, nil
}

// withUseCases runs fn against a freshly wired container.
func withUseCases(cmd *cobra.Command, fn func(ctx context.Context, rt *bootstrap.Runtime) error) error {
	rt, err := bootstrap.Init(env)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), bootstrap.CommandTimeout)
	defer cancel()
	return fn(ctx, rt)
}

func runGrant(cmd *cobra.Command, args []string) error {
	externalID, err := parseExternalID(args[0])
	if err != nil {
		return err
	}
	return withUseCases(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
		c, err := rt.Container()
		if err != nil {
			return err
		}
		traffic := trafficGB
		if traffic < 0 {
			traffic = rt.Config.Entitlement.DefaultTrafficGB
		}
		res, err := c.UseCases().GrantAccess.Execute(ctx, entitlementUsecases.GrantAccessCommand{
			ExternalID:  externalID,
			Days:        days,
			TrafficGB:   traffic,
			DeviceLimit: devices,
		})
		if err != nil {
			return err
		}
		return bootstrap.PrintJSON(cmd.OutOrStdout(), res)
	})
}

func runRevoke(cmd *cobra.Command, args []string) error {
	externalID, err := parseExternalID(args[0])
	if err != nil {
		return err
	}
	return withUseCases(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
		c, err := rt.Container()
		if err != nil {
			return err
		}
		res, err := c.UseCases().RevokeAccess.Execute(ctx, externalID)
		if err != nil {
			return err
		}
		return bootstrap.PrintJSON(cmd.OutOrStdout(), res)
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	externalID, err := parseExternalID(args[0])
	if err != nil {
		return err
	}
	return withUseCases(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
		c, err := rt.Container()
		if err != nil {
			return err
		}
		sub, err := c.UseCases().GetSubscriber.Execute(ctx, externalID)
		if err != nil {
			return err
		}
		return bootstrap.PrintJSON(cmd.OutOrStdout(), sub)
	})
}

func runRetry(cmd *cobra.Command, args []string) error {
	return withUseCases(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
		c, err := rt.Container()
		if err != nil {
			return err
		}
		res, err := c.UseCases().RetryProvisioning.Execute(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pending: %d, provisioned: %d\n", res.Pending, res.Succeeded)
		return nil
	})
}

func runSyncPayments(cmd *cobra.Command, args []string) error {
	return withUseCases(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
		c, err := rt.Container()
		if err != nil {
			return err
		}
		res, err := c.UseCases().SyncPendingPayments.Execute(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checked: %d, settled: %d, cancelled: %d\n", res.Checked, res.Settled, res.Cancelled)
		return nil
	})
}
