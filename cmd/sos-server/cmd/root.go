package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/sos-responder/internal/config"
	"github.com/oshokin/sos-responder/internal/service/server"
	"github.com/oshokin/sos-responder/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// httpAddress overrides the HTTP listen address.
	httpAddress string

	// rootCmd represents the base command for running the service.
	rootCmd = &cobra.Command{
		Use:   "sos-server [grpc-listen-address]",
		Short: "Run the SOS responder service.",
		Long: `Starts the SOS responder service.

Alert-created events arrive from NATS or the HTTP webhook and are escalated:
push notifications to on-duty responders first, SMS records for responders
and trusted contacts when no push was delivered. Responders claim alerts
through the gRPC or HTTP API; exactly one claim per alert succeeds.

The gRPC listen address can be provided as argument to override config (e.g., :9090).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var grpcAddress string
			if len(args) > 0 {
				grpcAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:  configPath,
				GRPCAddress: grpcAddress,
				HTTPAddress: httpAddress,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the sos-server CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVar(&httpAddress, "http", "", "HTTP listen address, overrides http_addr")
}
