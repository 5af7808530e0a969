package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hrmportal/internal/domain/session"
)

func newStatusCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the user and admin sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			sess := svc.Session()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sess)
			}
			printStatus(out, sess)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session snapshot as JSON")
	return cmd
}

func printStatus(out io.Writer, sess session.Session) {
	fmt.Fprintln(out, "User:")
	if sess.IsAuthenticatedUser {
		fmt.Fprintf(out, "  Name:        %s\n", sess.User.Name)
		fmt.Fprintf(out, "  Designation: %s\n", sess.User.Designation)
		fmt.Fprintf(out, "  Department:  %s\n", sess.User.Department)
		fmt.Fprintf(out, "  Level:       %d\n", sess.User.PermissionLevel)
		fmt.Fprintf(out, "  State:       %s\n", sess.UserState)
	} else {
		fmt.Fprintln(out, "  not logged in")
	}
	if sess.ErrorUser != "" {
		fmt.Fprintf(out, "  Last error:  %s\n", sess.ErrorUser)
	}

	fmt.Fprintln(out, "Admin:")
	if sess.IsAuthenticatedAdmin {
		fmt.Fprintf(out, "  Name:        %s\n", sess.Admin.FullName)
		fmt.Fprintf(out, "  Email:       %s\n", sess.Admin.Email)
		fmt.Fprintf(out, "  Role:        %s\n", sess.Admin.Role)
		fmt.Fprintf(out, "  State:       %s\n", sess.AdminState)
	} else {
		fmt.Fprintln(out, "  not logged in")
	}
	if sess.ErrorAdmin != "" {
		fmt.Fprintf(out, "  Last error:  %s\n", sess.ErrorAdmin)
	}
}
