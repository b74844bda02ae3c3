package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jarvis/internal/app"
	"jarvis/internal/config"
	"jarvis/internal/formatting"
	"jarvis/internal/oauth"
	"jarvis/pkg/logging"
)

type integrationsListOptions struct {
	configPath string
	userID     string
	output     string
	color      bool
}

// newIntegrationsCmd groups operator commands that read the integration
// store directly.
func newIntegrationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrations",
		Short: "Inspect stored integrations",
	}
	cmd.AddCommand(newIntegrationsListCmd())
	return cmd
}

func newIntegrationsListCmd() *cobra.Command {
	opts := &integrationsListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's integrations",
		Long: `Lists the integrations stored for a user. Refresh tokens are never
printed.

The configured storage backend is opened directly, so this command works
without a running server. With the memory backend there is nothing to show.

Examples:
  jarvis integrations list --user alice
  jarvis integrations list --user alice --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntegrationsList(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config-path", "", "Configuration directory containing config.yaml (default ~/.config/jarvis)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "User id whose integrations to list")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "Output format: table, json or yaml")
	cmd.Flags().BoolVar(&opts.color, "color", false, "Colorize table output")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runIntegrationsList(cmd *cobra.Command, opts *integrationsListOptions) error {
	userID := strings.TrimSpace(opts.userID)
	if userID == "" {
		return fmt.Errorf("--user must not be empty")
	}
	format, err := formatting.ParseOutputFormat(opts.output)
	if err != nil {
		return err
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Backend == config.BackendMemory {
		logging.Warn("Integrations", "Storage backend is memory; integrations only exist inside a running server")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, closeStore, err := app.OpenIntegrationStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	integrations, err := store.GetAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list integrations: %w", err)
	}

	views := make([]oauth.IntegrationView, 0, len(integrations))
	for _, i := range integrations {
		views = append(views, oauth.NewIntegrationView(i))
	}

	return formatting.New(formatting.Options{Format: format, Color: opts.color}).
		FormatIntegrations(cmd.OutOrStdout(), views)
}
