package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/oshokin/sos-responder/internal/api/events"
	sosapi "github.com/oshokin/sos-responder/internal/api/grpc/sos"
	"github.com/oshokin/sos-responder/internal/api/rest"
	"github.com/oshokin/sos-responder/internal/auth"
	"github.com/oshokin/sos-responder/internal/config"
	"github.com/oshokin/sos-responder/internal/logger"
	"github.com/oshokin/sos-responder/internal/metrics"
	"github.com/oshokin/sos-responder/internal/repository/marker"
	"github.com/oshokin/sos-responder/internal/repository/sqlite"
	"github.com/oshokin/sos-responder/internal/service/claim"
	"github.com/oshokin/sos-responder/internal/service/escalation"
	"github.com/oshokin/sos-responder/internal/service/resolver"
	"github.com/oshokin/sos-responder/internal/service/roles"
	"github.com/oshokin/sos-responder/internal/service/trigger"
	"github.com/oshokin/sos-responder/internal/transport/push"
)

const (
	// readHeaderTimeout bounds slow HTTP clients.
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout bounds the HTTP drain on shutdown.
	shutdownTimeout = 15 * time.Second
)

// app owns the process-wide handles and the components built on them.
type app struct {
	// settings are the validated settings.
	settings *config.Config
	// store is the SQLite document store.
	store *sqlite.Store
	// redisMarker is set when markers live in Redis.
	redisMarker *marker.RedisMarker
	// natsConn is set when an event bus is configured.
	natsConn *nats.Conn
	// registry collects the service metrics.
	registry *prometheus.Registry
	// dispatcher runs background escalations.
	dispatcher *trigger.Dispatcher
	// consumer is set when an event bus is configured.
	consumer *events.Consumer
	// grpcServer serves the claim and admin API.
	grpcServer *grpc.Server
	// router serves the HTTP API.
	router *gin.Engine
}

// newApp opens every external handle once and wires the components.
func newApp(ctx context.Context, settings *config.Config) (_ *app, err error) {
	a := &app{
		settings: settings,
		registry: prometheus.NewRegistry(),
	}

	// Release whatever was opened when a later step fails.
	defer func() {
		if err != nil {
			a.close(ctx)
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := metrics.New(a.registry)

	verifier, err := auth.NewVerifier(settings.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("create token verifier: %w", err)
	}

	// Open the document store and apply the schema.
	a.store, err = sqlite.Open(ctx, settings.DatabasePath, sqlite.WithBusyTimeout(settings.Timeout))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// Duplicate-trigger markers: Redis when shared, memory otherwise.
	var guard marker.Marker

	if settings.RedisURL != "" {
		a.redisMarker, err = marker.NewRedisMarker(ctx, settings.RedisURL, settings.DedupTTL)
		if err != nil {
			return nil, fmt.Errorf("connect to marker store: %w", err)
		}

		guard = a.redisMarker
	} else {
		logger.Warn(ctx, "No redis_url configured, duplicate triggers are only detected within this process")

		guard = marker.NewMemoryMarker(settings.DedupTTL)
	}

	// Push delivery and events need the bus; without it every alert falls back to SMS.
	var sender push.Sender = push.NoopSender{}

	if settings.NATSURL != "" {
		a.natsConn, err = nats.Connect(settings.NATSURL,
			nats.Name("sos-server"),
			nats.Timeout(settings.Timeout),
			nats.MaxReconnects(-1))
		if err != nil {
			return nil, fmt.Errorf("connect to event bus: %w", err)
		}

		sender = push.NewNATSSender(a.natsConn, settings.PushSubject)
	} else {
		logger.Warn(ctx, "No nats_url configured, push delivery and the event consumer are disabled")
	}

	engine := escalation.New(
		resolver.New(a.store),
		sender,
		a.store,
		a.store,
		escalation.Options{
			ResponderSMSLimit: settings.ResponderSMSLimit,
			ContactSMSLimit:   settings.ContactSMSLimit,
			ChannelID:         settings.SMSChannelID,
			DeepLinkBase:      settings.DeepLinkBase,
			AppName:           settings.AppName,
			Location:          settings.Location(),
			PushTimeout:       settings.Timeout,
		},
		escalation.WithMarker(guard),
		escalation.WithMetrics(m),
	)

	a.dispatcher = trigger.New(
		logger.WithName(ctx, "trigger"),
		engine,
		settings.EscalationTimeout,
		trigger.WithRetry(settings.EscalationAttempts, settings.EscalationBackoff),
	)

	if a.natsConn != nil {
		a.consumer = events.NewConsumer(a.natsConn, a.dispatcher, settings.AlertSubject, settings.AlertQueue)
	}

	claims := claim.New(a.store, claim.WithMetrics(m))
	roleService := roles.New(a.store, roles.EmailAllowlist(settings.AdminEmails))

	a.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(sosapi.UnaryServerInterceptor(verifier)))
	sosapi.RegisterResponderServer(a.grpcServer, sosapi.NewServer(claims, roleService))

	accessLevel, _ := logger.ParseLogLevel(settings.AccessLogLevel)

	a.router = rest.NewRouter(rest.Dependencies{
		Store:         a.store,
		Escalator:     engine,
		Dispatcher:    a.dispatcher,
		Claims:        claims,
		Roles:         roleService,
		Verifier:      verifier,
		Metrics:       m,
		Gatherer:      a.registry,
		WebhookSecret: settings.WebhookSecret,
		AccessLog:     logger.Derived("http", accessLevel),
	})

	return a, nil
}

// serve runs the listeners until ctx is canceled or one of them fails.
// httpListener may be nil.
func (a *app) serve(ctx context.Context, grpcListener, httpListener net.Listener) error {
	// Event consumer first, a bus failure aborts before anything is served.
	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			_ = grpcListener.Close()

			if httpListener != nil {
				_ = httpListener.Close()
			}

			return fmt.Errorf("start event consumer: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	var httpServer *http.Server

	// gRPC API.
	g.Go(func() error {
		logger.InfoKV(ctx, "gRPC server listening", "listen_address", grpcListener.Addr().String())

		if err := a.grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	// HTTP API.
	if httpListener != nil {
		httpServer = &http.Server{
			Handler:           a.router,
			ReadHeaderTimeout: readHeaderTimeout,
		}

		g.Go(func() error {
			logger.InfoKV(ctx, "HTTP server listening", "listen_address", httpListener.Addr().String())

			if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve HTTP: %w", err)
			}

			return nil
		})
	}

	// Shutdown: stop intake, then drain the servers.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "Shutting down")

		if a.consumer != nil {
			if err := a.consumer.Stop(); err != nil {
				logger.WarnKV(ctx, "Failed to drain event consumer", "error", err)
			}
		}

		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.WarnKV(ctx, "Failed to shut down HTTP server", "error", err)
			}
		}

		a.grpcServer.GracefulStop()

		return nil
	})

	err := g.Wait()

	// Let running escalations finish their SMS writes.
	a.dispatcher.Wait()
	logger.Info(ctx, "Servers stopped")

	return err
}

// close releases the external handles.
func (a *app) close(ctx context.Context) {
	if a.natsConn != nil {
		a.natsConn.Close()
	}

	if a.redisMarker != nil {
		if err := a.redisMarker.Close(); err != nil {
			logger.WarnKV(ctx, "Failed to close marker store", "error", err)
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.WarnKV(ctx, "Failed to close store", "error", err)
		}
	}
}
