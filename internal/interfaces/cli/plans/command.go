// Package plans holds operator commands for the plan catalogue.
package plans

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/relaygate/relaygate/internal/application/plan/dto"
	planUsecases "github.com/relaygate/relaygate/internal/application/plan/usecases"
	"github.com/relaygate/relaygate/internal/interfaces/cli/bootstrap"
	httpRouter "github.com/relaygate/relaygate/internal/interfaces/http"
)

var (
	env   string
	terms planUsecases.PlanTermsInput
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Plan catalogue administration",
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Add a purchasable plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runCreate,
	}
	create.Flags().IntVar(&terms.DurationDays, "days", 30, "Access days granted")
	create.Flags().Float64Var(&terms.TrafficLimitGB, "traffic", 0, "Traffic limit in GB, 0 for unlimited")
	create.Flags().IntVar(&terms.DeviceLimit, "devices", 0, "Device limit")
	create.Flags().StringVar(&terms.Price, "price", "", "Price in major units, e.g. 4.99 (required)")
	create.Flags().StringVar(&terms.Currency, "currency", "USD", "ISO currency code")
	_ = create.MarkFlagRequired("price")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all plans, including inactive ones",
			Args:  cobra.NoArgs,
			RunE:  runList,
		},
		create,
		newSetActiveCommand("activate", "Offer a plan for purchase again", true),
		newSetActiveCommand("deactivate", "Withdraw a plan from sale", false),
	)
	return cmd
}

func newSetActiveCommand(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <plan_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid plan id %q", args[0])
			}
			return withUseCases(cmd, func(ctx context.Context, ucs *httpRouter.UseCases) error {
				p, err := ucs.SetPlanActive.Execute(ctx, uint(id), active)
				if err != nil {
					return err
				}
				return bootstrap.PrintJSON(cmd.OutOrStdout(), p)
			})
		},
	}
}

func withUseCases(cmd *cobra.Command, fn func(ctx context.Context, ucs *httpRouter.UseCases) error) error {
	rt, err := bootstrap.Init(env)
	if err != nil {
		return err
	}
	defer rt.Close()

	c, err := rt.Container()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), bootstrap.CommandTimeout)
	defer cancel()
	return fn(ctx, c.UseCases())
}

func runList(cmd *cobra.Command, args []string) error {
	return withUseCases(cmd, func(ctx context.Context, ucs *httpRouter.UseCases) error {
		plans, err := ucs.ListAllPlans.Execute(ctx)
		if err != nil {
			return err
		}
		return printPlans(cmd, plans)
	})
}

func runCreate(cmd *cobra.Command, args []string) error {
	in := terms
	in.Name = args[0]
	return withUseCases(cmd, func(ctx context.Context, ucs *httpRouter.UseCases) error {
		p, err := ucs.CreatePlan.Execute(ctx, in)
		if err != nil {
			return err
		}
		return bootstrap.PrintJSON(cmd.OutOrStdout(), p)
	})
}

func printPlans(cmd *cobra.Command, plans []dto.PlanDTO) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDAYS\tTRAFFIC\tDEVICES\tPRICE\tACTIVE")
	for _, p := range plans {
		traffic := "unlimited"
		if p.TrafficLimitGB > 0 {
			traffic = strconv.FormatFloat(p.TrafficLimitGB, 'f', -1, 64) + " GB"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%d\t%s %s\t%t\n",
			p.ID, p.Name, p.DurationDays, traffic, p.DeviceLimit, p.Price, p.Currency, p.IsActive)
	}
	return w.Flush()
}
