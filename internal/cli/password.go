package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hrmportal/internal/domain/session"
)

func newChangePasswordCmd(a *app) *cobra.Command {
	var (
		admin                 bool
		oldPw, newPw, confirm string
	)

	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change the password of the logged-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			current, err := a.prompt(out, "Current password", oldPw)
			if err != nil {
				return err
			}
			next, err := a.prompt(out, "New password", newPw)
			if err != nil {
				return err
			}
			again, err := a.prompt(out, "Confirm password", confirm)
			if err != nil {
				return err
			}

			svc, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			in := session.ChangePasswordInput{OldPassword: current, NewPassword: next, ConfirmPassword: again}
			if err := svc.ChangePassword(cmd.Context(), slotRole(admin), in); err != nil {
				return fmt.Errorf("change password: %s", session.Message(err))
			}
			fmt.Fprintln(out, "Password changed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&admin, "admin", false, "Change the admin account password")
	cmd.Flags().StringVar(&oldPw, "old", "", "Current password (prompted if omitted)")
	cmd.Flags().StringVar(&newPw, "new", "", "New password (prompted if omitted)")
	cmd.Flags().StringVar(&confirm, "confirm", "", "New password again (prompted if omitted)")
	return cmd
}

type recoveryFlags struct {
	admin    bool
	email    string
	code     string
	password string
	confirm  string
}

func newPasswordCmd(a *app) *cobra.Command {
	f := &recoveryFlags{}
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Recover a forgotten password",
		Long:  "Request a verification code, verify it and set a new password. Run forget, verify and reset in that order.",
	}
	cmd.PersistentFlags().BoolVar(&f.admin, "admin", false, "Recover an admin account")
	cmd.PersistentFlags().StringVar(&f.email, "email", "", "Account email (prompted if omitted)")

	forget := &cobra.Command{
		Use:   "forget",
		Short: "Send a verification code to the account email",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.recover(cmd, f, "Verification code sent if the account exists", func(svc *session.Service, email string) error {
				return svc.ForgetPassword(cmd.Context(), slotRole(f.admin), email)
			})
		},
	}
	resend := &cobra.Command{
		Use:   "resend",
		Short: "Send a new verification code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.recover(cmd, f, "Verification code sent", func(svc *session.Service, email string) error {
				return svc.ResendVerificationCode(cmd.Context(), slotRole(f.admin), email)
			})
		},
	}
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check a verification code",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := a.prompt(cmd.OutOrStdout(), "Code", f.code)
			if err != nil {
				return err
			}
			return a.recover(cmd, f, "Code verified", func(svc *session.Service, email string) error {
				return svc.VerifyForgetPasswordCode(cmd.Context(), slotRole(f.admin), email, code)
			})
		},
	}
	verify.Flags().StringVar(&f.code, "code", "", "Verification code (prompted if omitted)")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password with a verified code",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			code, err := a.prompt(out, "Code", f.code)
			if err != nil {
				return err
			}
			password, err := a.prompt(out, "New password", f.password)
			if err != nil {
				return err
			}
			confirm, err := a.prompt(out, "Confirm password", f.confirm)
			if err != nil {
				return err
			}
			return a.recover(cmd, f, "Password has been reset", func(svc *session.Service, email string) error {
				return svc.ResetPassword(cmd.Context(), slotRole(f.admin), session.ResetPasswordInput{
					Email:           email,
					Code:            code,
					Password:        password,
					ConfirmPassword: confirm,
				})
			})
		},
	}
	reset.Flags().StringVar(&f.code, "code", "", "Verified code (prompted if omitted)")
	reset.Flags().StringVar(&f.password, "password", "", "New password (prompted if omitted)")
	reset.Flags().StringVar(&f.confirm, "confirm", "", "New password again (prompted if omitted)")

	cmd.AddCommand(forget, verify, reset, resend)
	return cmd
}

func (a *app) recover(cmd *cobra.Command, f *recoveryFlags, done string, step func(*session.Service, string) error) error {
	out := cmd.OutOrStdout()
	email, err := a.prompt(out, "Email", f.email)
	if err != nil {
		return err
	}
	svc, err := a.session(cmd.Context())
	if err != nil {
		return err
	}
	if err := step(svc, email); err != nil {
		return fmt.Errorf("%s: %s", cmd.Name(), session.Message(err))
	}
	fmt.Fprintln(out, done)
	return nil
}
