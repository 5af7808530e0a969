package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hrmportal/internal/domain/access"
)

func newCanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "can <path>",
		Short: "Show what the route guard decides for a portal path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			policy := access.DefaultPolicy()
			d := policy.Decide(args[0], svc.Session())
			if d == access.Allow {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: allow\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", args[0], d, policy.Location(d))
			return nil
		},
	}
}

func newMenuCmd(a *app) *cobra.Command {
	var admin bool

	cmd := &cobra.Command{
		Use:   "menu",
		Short: "List the menu entries the session may open",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			role := slotRole(admin)
			items := access.DefaultPolicy().Menu(role, svc.Session())
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintf(out, "No %s session\n", role)
				return nil
			}
			for _, item := range items {
				fmt.Fprintf(out, "%-16s %s\n", item.Label, item.Path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&admin, "admin", false, "List the admin menu")
	return cmd
}
