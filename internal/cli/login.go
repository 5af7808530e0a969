package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hrmportal/internal/domain/session"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		email, password   string
		admin, superAdmin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a user, admin or super admin",
		Long:  "Log in through the Auth API and keep the session for later commands. The user and admin sessions are independent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if admin && superAdmin {
				return errors.New("--admin and --super-admin are mutually exclusive")
			}
			role := session.RoleUser
			switch {
			case superAdmin:
				role = session.RoleSuperAdmin
			case admin:
				role = session.RoleAdmin
			}

			out := cmd.OutOrStdout()
			addr, err := a.prompt(out, "Email", email)
			if err != nil {
				return err
			}
			secret, err := a.prompt(out, "Password", password)
			if err != nil {
				return err
			}

			svc, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			sess, err := svc.Login(cmd.Context(), role, addr, secret)
			if err != nil {
				return fmt.Errorf("login failed: %s", session.Message(err))
			}

			if role == session.RoleUser {
				fmt.Fprintf(out, "Logged in as %s (level %d)\n", sess.User.Name, sess.User.PermissionLevel)
			} else {
				fmt.Fprintf(out, "Logged in as %s (%s)\n", sess.Admin.FullName, sess.Admin.Role)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted if omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted if omitted)")
	cmd.Flags().BoolVar(&admin, "admin", false, "Log in to the admin portal")
	cmd.Flags().BoolVar(&superAdmin, "super-admin", false, "Log in to the admin portal and require the super admin role")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	var admin bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the user or admin session",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			role := slotRole(admin)
			svc.Logout(cmd.Context(), role)
			fmt.Fprintf(cmd.OutOrStdout(), "Logged out (%s)\n", role)
			return nil
		},
	}

	cmd.Flags().BoolVar(&admin, "admin", false, "End the admin session instead of the user session")
	return cmd
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <role>",
		Short: "Exchange the refresh token of a role for new tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := session.ParseRole(args[0])
			if !ok {
				return fmt.Errorf("unknown role %q (user, admin, super_admin)", args[0])
			}
			svc, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := svc.RefreshToken(cmd.Context(), role); err != nil {
				if errors.Is(err, session.ErrNotAuthenticated) {
					return fmt.Errorf("no %s session", role.Slot())
				}
				return fmt.Errorf("refresh failed, logged out: %s", session.Message(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tokens refreshed (%s)\n", role.Slot())
			return nil
		},
	}
}
