package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"jarvis/internal/oauth"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfig indicates missing or invalid configuration.
	ExitCodeConfig = 2
)

// rootCmd represents the base command for the jarvis application.
var rootCmd = &cobra.Command{
	Use:   "jarvis",
	Short: "Broker OAuth integrations between users and third-party providers",
	Long: `jarvis links user accounts to third-party providers such as Microsoft
OneDrive. It runs the OAuth 2.0 authorization-code flow with PKCE, keeps
the resulting refresh tokens and hands out fresh access tokens on demand.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "jarvis version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if errors.Is(err, oauth.ErrConfig) {
		return ExitCodeConfig
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newIntegrationsCmd())
}
