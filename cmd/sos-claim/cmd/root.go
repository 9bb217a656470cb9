package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/sos-responder/internal/config"
	"github.com/oshokin/sos-responder/internal/service/client"
	"github.com/oshokin/sos-responder/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// serverAddress overrides the server address from the config.
	serverAddress string
	// token is the bearer token.
	token string
	// tokenFile holds the bearer token.
	tokenFile string
	// maxAttempts bounds retries of an unavailable server.
	maxAttempts int

	// rootCmd represents the base command for claiming an alert.
	rootCmd = &cobra.Command{
		Use:   "sos-claim <alert-id>",
		Short: "Claim an SOS alert as the responding responder.",
		Long: `Claims an open alert for the responder owning the token and prints the pairing id.

Exactly one responder can claim an alert. A claim of an alert that is already
accepted or resolved fails immediately; an unreachable server is retried.
The token is read from --token, --token-file or the SOS_TOKEN variable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &client.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Token:         token,
				TokenFile:     tokenFile,
				AlertID:       args[0],
				MaxAttempts:   maxAttempts,
				Out:           cmd.OutOrStdout(),
			}

			return client.Run(ctx, options)
		},
	}
)

// Execute runs the sos-claim CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&serverAddress, "server", "s", "", "server address, overrides grpc_addr")
	rootCmd.Flags().StringVarP(&token, "token", "t", "", "bearer token")
	rootCmd.Flags().StringVar(&tokenFile, "token-file", "", "file holding the bearer token")
	rootCmd.Flags().IntVar(&maxAttempts, "attempts", 0, "attempts against an unavailable server, 0 retries until interrupted")
}
