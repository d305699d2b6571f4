// Package nodes holds operator commands for the relay node registry.
package nodes

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/relaygate/relaygate/internal/application/node/dto"
	nodeUsecases "github.com/relaygate/relaygate/internal/application/node/usecases"
	"github.com/relaygate/relaygate/internal/interfaces/cli/bootstrap"
)

var (
	env     string
	refresh bool
	addCmd  nodeUsecases.CreateNodeCommand
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Relay node administration",
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List nodes with their last observed load",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	list.Flags().BoolVar(&refresh, "refresh", true, "Poll every node before listing")

	add := &cobra.Command{
		Use:   "add <node_id> <endpoint>",
		Short: "Register a node in the database",
		Args:  cobra.ExactArgs(2),
		RunE:  runAdd,
	}
	add.Flags().StringVar(&addCmd.Name, "name", "", "Display name")
	add.Flags().StringVar(&addCmd.Username, "username", "", "Panel admin username")
	add.Flags().StringVar(&addCmd.Password, "password", "", "Panel admin password")
	add.Flags().IntVar(&addCmd.Capacity, "capacity", 0, "Account capacity, 0 for unlimited")

	cmd.AddCommand(
		list,
		add,
		newSetActiveCommand("activate", "Put a node back into allocation", true),
		newSetActiveCommand("deactivate", "Stop allocating new subscribers to a node", false),
		&cobra.Command{
			Use:   "delete <node_id>",
			Short: "Remove a node with no assigned subscribers",
			Args:  cobra.ExactArgs(1),
			RunE:  runDelete,
		},
	)
	return cmd
}

func newSetActiveCommand(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <node_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUseCases(cmd, func(ctx context.Context, ucs useCases) error {
				n, err := ucs.setActive(ctx, args[0], active)
				if err != nil {
					return err
				}
				return bootstrap.PrintJSON(cmd.OutOrStdout(), n)
			})
		},
	}
}

type useCases struct {
	list      func(ctx context.Context, refresh bool) (*dto.NodeListDTO, error)
	create    func(ctx context.Context, cmd nodeUsecases.CreateNodeCommand) (*dto.NodeDTO, error)
	setActive func(ctx context.Context, nodeID string, active bool) (*dto.NodeDTO, error)
	delete    func(ctx context.Context, nodeID string) error
}

func withUseCases(cmd *cobra.Command, fn func(ctx context.Context, ucs useCases) error) error {
	rt, err := bootstrap.Init(env)
	if err != nil {
		return err
	}
	defer rt.Close()

	c, err := rt.Container()
	if err != nil {
		return err
	}
	all := c.UseCases()

	ctx, cancel := context.WithTimeout(cmd.Context(), bootstrap.CommandTimeout)
	defer cancel()
	return fn(ctx, useCases{
		list:      all.ListNodes.Execute,
		create:    all.CreateNode.Execute,
		setActive: all.SetNodeActive.Execute,
		delete:    all.DeleteNode.Execute,
	})
}

func runList(cmd *cobra.Command, args []string) error {
	return withUseCases(cmd, func(ctx context.Context, ucs useCases) error {
		out, err := ucs.list(ctx, refresh)
		if err != nil {
			return err
		}
		return printNodes(cmd, out)
	})
}

func runAdd(cmd *cobra.Command, args []string) error {
	in := addCmd
	in.NodeID = args[0]
	in.Endpoint = args[1]
	return withUseCases(cmd, func(ctx context.Context, ucs useCases) error {
		n, err := ucs.create(ctx, in)
		if err != nil {
			return err
		}
		return bootstrap.PrintJSON(cmd.OutOrStdout(), n)
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withUseCases(cmd, func(ctx context.Context, ucs useCases) error {
		if err := ucs.delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "node %s deleted\n", args[0])
		return nil
	})
}

func printNodes(cmd *cobra.Command, out *dto.NodeListDTO) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "source: %s\n", out.Source)
	fmt.Fprintln(w, "NODE\tACTIVE\tUSERS\tCAPACITY\tLOAD\tAVAILABLE\tSUBSCRIBERS")
	for _, n := range out.Nodes {
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\t%t\t%d\n",
			n.NodeID, n.IsActive, users(n), capacity(n.Capacity), load(n), n.Available, n.Subscribers)
	}
	return w.Flush()
}

func users(n dto.NodeDTO) string {
	if n.CurrentUsers == nil {
		return "-"
	}
	return strconv.Itoa(*n.CurrentUsers)
}

func capacity(c int) string {
	if c <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(c)
}

func load(n dto.NodeDTO) string {
	if n.LoadRatio == nil || n.Capacity <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *n.LoadRatio*100)
}
