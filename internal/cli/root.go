package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"hrmportal/internal/app/server"
	"hrmportal/internal/domain/session"
	"hrmportal/internal/platform/config"
	"hrmportal/internal/platform/logging"
)

type app struct {
	configPath   string
	apiURL       string
	stateBackend string
	statePath    string
	logLevel     string
	logFormat    string
	debug        bool

	cfg      config.Config
	logger   *slog.Logger
	sessions *server.Sessions
	input    *bufio.Reader
}

// NewRootCmd creates the root cobra command for the hrm CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "hrm",
		Short: "HRM session and access console",
		Long:  "hrm logs users and administrators in to the HRM Auth API, keeps the session between runs and answers what the active session may reach.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.sessions == nil {
				return nil
			}
			return a.sessions.Close()
		},
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML config file (or HRM_CONFIG env)")
	flags.StringVar(&a.apiURL, "api", "", "Auth API base URL (or HRM_API_URL env)")
	flags.StringVar(&a.stateBackend, "state-backend", "", "Session store: file, sqlite or memory")
	flags.StringVar(&a.statePath, "state", "", "Session store path")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format (text, json)")
	flags.BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newRefreshCmd(a),
		newStatusCmd(a),
		newCanCmd(a),
		newMenuCmd(a),
		newChangePasswordCmd(a),
		newPasswordCmd(a),
		newAPICmd(a),
		newServeCmd(a),
		newMockAuthCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	path := a.configPath
	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.APIBaseURL = a.apiURL
	}
	if a.stateBackend != "" {
		cfg.StateBackend = a.stateBackend
	}
	if a.statePath != "" {
		cfg.StatePath = a.statePath
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	if a.debug {
		cfg.LogLevel = "debug"
	}
	a.cfg = cfg
	a.logger = logging.NewWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
	a.input = bufio.NewReader(cmd.InOrStdin())
	return nil
}

// session opens the persisted session on first use.
func (a *app) session(ctx context.Context) (*session.Service, error) {
	if a.sessions != nil {
		return a.sessions.Service, nil
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	sessions, err := server.NewSessions(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.sessions = sessions
	return sessions.Service, nil
}

// prompt asks for a value on the command's output when the flag was not
// given.
func (a *app) prompt(out io.Writer, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(out, "%s: ", label)
	line, err := a.input.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// slotRole maps the --admin flag to a session role.
func slotRole(admin bool) session.Role {
	if admin {
		return session.RoleAdmin
	}
	return session.RoleUser
}
