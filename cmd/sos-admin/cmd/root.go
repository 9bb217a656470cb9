package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/sos-responder/internal/config"
	"github.com/oshokin/sos-responder/internal/service/admin"
	"github.com/oshokin/sos-responder/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd groups the maintenance commands.
	rootCmd = &cobra.Command{
		Use:   "sos-admin",
		Short: "Maintain the SOS responder directory.",
		Long: `Maintenance commands operating on the service database directly.

They manage users, roles, duty, push addresses and trusted contacts, issue
identity tokens for clients and show what happened to an alert.`,
	}
)

// Execute runs the sos-admin CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run executes action with signal handling and an opened store.
func run(cmd *cobra.Command, action func(ctx context.Context, a *admin.Admin) error) error {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return admin.Run(ctx, configPath, cmd.OutOrStdout(), action)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")

	rootCmd.AddCommand(
		newMigrateCommand(),
		newUserCommand(),
		newRoleCommand(),
		newDutyCommand(),
		newPushCommand(),
		newContactCommand(),
		newTokenCommand(),
		newAlertCommand(),
	)
}
