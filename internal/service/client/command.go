package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc/status"

	sosapi "github.com/oshokin/sos-responder/internal/api/grpc/sos"
	"github.com/oshokin/sos-responder/internal/config"
	"github.com/oshokin/sos-responder/internal/logger"
	"github.com/oshokin/sos-responder/internal/service/common"
)

// Options configures the claim command.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string

	// Token is the bearer token; TokenFile and SOS_TOKEN are tried when empty.
	Token string

	// TokenFile holds the bearer token.
	TokenFile string

	// AlertID is the alert to claim.
	AlertID string

	// MaxAttempts bounds retries of unavailable servers, zero means until canceled.
	MaxAttempts int

	// Out receives the pairing id, nil discards it.
	Out io.Writer
}

// Claimer claims alerts.
type Claimer interface {
	ClaimAlert(ctx context.Context, alertID string) (string, error)
}

// defaultRetryInterval defines the delay between attempts.
const defaultRetryInterval = 1 * time.Second

// errAttemptsExhausted is returned when every attempt hit an unavailable server.
var errAttemptsExhausted = errors.New("claim attempts exhausted")

// Run claims the alert and prints the pairing id.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "sos-claim")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.GRPCAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	token, err := common.LoadToken(opts.Token, opts.TokenFile)
	if err != nil {
		return err
	}

	// Connect with the timeout from config.
	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout), common.WithToken(token))
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Claiming alert", "server_address", serverAddress, "alert_id", opts.AlertID)

	pairingID, err := Claim(ctx, client, opts.AlertID, defaultRetryInterval, opts.MaxAttempts)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Alert claimed", "alert_id", opts.AlertID, "pairing_id", pairingID)

	if opts.Out != nil {
		_, _ = fmt.Fprintln(opts.Out, pairingID)
	}

	return nil
}

// Claim calls claimer until it answers with something other than an
// unavailable server.
func Claim(ctx context.Context, claimer Claimer, alertID string, interval time.Duration, maxAttempts int) (string, error) {
	// attempt tries once, returns (pairing id, final, error).
	attempt := func() (string, bool, error) {
		pairingID, err := claimer.ClaimAlert(ctx, alertID)
		if err == nil {
			return pairingID, true, nil
		}

		// Local failures never reached the server.
		if _, ok := status.FromError(err); !ok {
			return "", true, err
		}

		if kind := sosapi.KindFromStatus(err); !kind.Retryable() {
			return "", true, err
		}

		// Log error but continue retrying for transient failures.
		logger.WarnKV(ctx, "Claim failed, retrying", "error", err)

		return "", false, err
	}

	// Attempt immediately before starting retry loop.
	pairingID, final, err := attempt()
	if final {
		return pairingID, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempts := 1; maxAttempts <= 0 || attempts < maxAttempts; attempts++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			pairingID, final, err = attempt()
			if final {
				return pairingID, err
			}
		}
	}

	return "", fmt.Errorf("%w: %w", errAttemptsExhausted, err)
}
