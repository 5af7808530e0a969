package cli

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"hrmportal/internal/domain/session"
)

func newAPICmd(a *app) *cobra.Command {
	var (
		data    string
		roleArg string
	)

	cmd := &cobra.Command{
		Use:   "api <method> <path>",
		Short: "Call the HRM REST API with the session's bearer token",
		Long:  "Send an authorized request. A 401 answer triggers one token refresh and a retry; when that fails the role is logged out.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := session.ParseRole(roleArg)
			if !ok {
				return fmt.Errorf("unknown role %q", roleArg)
			}
			svc, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			req := session.Request{Method: strings.ToUpper(args[0]), Path: args[1], Header: http.Header{}}
			if data != "" {
				req.Body = []byte(data)
				req.Header.Set("Content-Type", "application/json")
			}
			resp, err := svc.Do(cmd.Context(), role, req)
			if err != nil {
				return fmt.Errorf("%s %s: %s", req.Method, req.Path, apiError(err))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d %s\n", resp.Status, http.StatusText(resp.Status))
			if len(resp.Body) > 0 {
				fmt.Fprintln(out, strings.TrimRight(string(resp.Body), "\n"))
			}
			if resp.Status == http.StatusUnauthorized {
				return fmt.Errorf("session rejected, %s logged out", role.Slot())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "JSON request body")
	cmd.Flags().StringVar(&roleArg, "role", "user", "Session to use (user, admin)")
	return cmd
}

func apiError(err error) string {
	if errors.Is(err, session.ErrNotAuthenticated) {
		return "not logged in"
	}
	return session.Message(err)
}
