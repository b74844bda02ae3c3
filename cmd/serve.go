package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jarvis/internal/app"
	"jarvis/pkg/logging"
)

type serveOptions struct {
	debug      bool
	configPath string
}

// newServeCmd creates the serve command, which runs the HTTP broker until
// SIGINT or SIGTERM.
func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the integration broker HTTP server",
		Long: `Starts the jarvis HTTP server.

Configuration is read from config.yaml in the configuration directory
(default ~/.config/jarvis) and can be overridden with environment
variables such as CLIENT_ID, CLIENT_SECRET, TOKEN_ENDPOINT and
REDIRECT_BASE. All configuration problems are reported at once and the
command exits with code 2.

Endpoints:
  GET /integrations/GenerateAuthLink?type=OneDrive&referer=<url>
  GET /integrations/ExchangeCodeForToken (provider callback)
  GET /integrations
  GET /health
  GET /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.configPath, "config-path", "", "Configuration directory containing config.yaml (default ~/.config/jarvis)")
	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(ctx, app.NewConfig(opts.debug, opts.configPath))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logging.Warn("Serve", "Error releasing resources: %v", err)
		}
	}()

	return application.Run(ctx)
}
