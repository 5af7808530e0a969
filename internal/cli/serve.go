package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hrmportal/internal/app/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the portal: SPA shell, route guard and session API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.RunPortal(ctx, a.cfg, a.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (or APP_ADDR env)")
	return cmd
}

func newMockAuthCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "mock-auth",
		Short: "Run the development Auth API with seeded accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.MockAuthAddr = addr
			}
			if a.cfg.JWTSecret == "" && a.cfg.Environment == "development" {
				a.cfg.JWTSecret = "dev-only-secret"
				a.logger.Warn("JWT_SECRET not set, using a development secret")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.RunMockAuth(ctx, a.cfg, a.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (or MOCK_AUTH_ADDR env)")
	return cmd
}
