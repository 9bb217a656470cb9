package server

import (
	"context"
	"fmt"
	"net"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/sos-responder/internal/config"
	"github.com/oshokin/sos-responder/internal/logger"
	"github.com/oshokin/sos-responder/internal/version"
)

// Options controls the sos-server process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// GRPCAddress overrides the gRPC listen address from the settings.
	GRPCAddress string
	// HTTPAddress overrides the HTTP listen address from the settings.
	HTTPAddress string
}

// Run starts the service and blocks until ctx is canceled or a listener fails.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "sos-server")

	// Load configuration first, everything else depends on it.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// Command line overrides win over the file.
	if opts.GRPCAddress != "" {
		settings.GRPCAddress = opts.GRPCAddress
	}

	if opts.HTTPAddress != "" {
		settings.HTTPAddress = opts.HTTPAddress
	}

	setupLogger(settings)

	logger.InfoKV(ctx, "Starting sos-server", version.KV()...)

	app, err := newApp(ctx, settings)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	defer app.close(ctx)

	// Bind listeners before serving so address errors surface immediately.
	lc := net.ListenConfig{}

	grpcListener, err := lc.Listen(ctx, "tcp", settings.GRPCAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.GRPCAddress, err)
	}

	var httpListener net.Listener

	if settings.HTTPAddress != "" {
		httpListener, err = lc.Listen(ctx, "tcp", settings.HTTPAddress)
		if err != nil {
			_ = grpcListener.Close()

			return fmt.Errorf("listen on %s: %w", settings.HTTPAddress, err)
		}
	}

	return app.serve(ctx, grpcListener, httpListener)
}

// setupLogger applies the log settings to the global logger.
func setupLogger(settings *config.Config) {
	level, _ := logger.ParseLogLevel(settings.LogLevel)
	logger.SetLevel(level)

	if settings.LogFile != "" || settings.LogJSON {
		logger.SetLogger(logger.NewWithOptions(nil, logger.Options{
			JSON:       settings.LogJSON,
			File:       settings.LogFile,
			MaxSizeMB:  settings.LogMaxSizeMB,
			MaxBackups: settings.LogMaxBackups,
			MaxAgeDays: settings.LogMaxAgeDays,
		}))
	}

	// Debug mode prints every registered route, keep it for debug logs only.
	if level != zapcore.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}
