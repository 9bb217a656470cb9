package rest

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/oshokin/sos-responder/internal/domain/sos"
	"github.com/oshokin/sos-responder/internal/metrics"
	"github.com/oshokin/sos-responder/internal/service/escalation"
)

// WebhookTokenHeader carries the shared secret of the alert-created webhook.
const WebhookTokenHeader = "X-Webhook-Token"

// AlertStore is the part of the store the HTTP surface uses directly.
type AlertStore interface {
	Ping(ctx context.Context) error
	CreateAlert(ctx context.Context, alert *sos.Alert) error
}

// Escalator handles an alert-created event synchronously.
type Escalator interface {
	HandleAlertCreated(ctx context.Context, alert *sos.Alert) (*escalation.Result, error)
}

// Dispatcher handles an alert-created event in the background.
type Dispatcher interface {
	Dispatch(alert *sos.Alert) <-chan error
}

// ClaimService abstracts the claim engine.
type ClaimService interface {
	Claim(ctx context.Context, caller *sos.Identity, alertID string) (string, error)
}

// RoleService abstracts role administration.
type RoleService interface {
	SetUserRole(ctx context.Context, caller *sos.Identity, uid, role string) error
}

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(token string) (*sos.Identity, error)
}

// Dependencies are the collaborators of the router.
type Dependencies struct {
	// Store is pinged by /healthz and receives new alerts.
	Store AlertStore
	// Escalator serves the webhook.
	Escalator Escalator
	// Dispatcher escalates alerts raised through the API.
	Dispatcher Dispatcher
	// Claims serves claim requests.
	Claims ClaimService
	// Roles serves role assignment.
	Roles RoleService
	// Verifier checks bearer tokens.
	Verifier TokenVerifier
	// Metrics is optional.
	Metrics *metrics.Metrics
	// Gatherer backs /metrics; nil uses prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// WebhookSecret must match the webhook header; empty disables the webhook.
	WebhookSecret string
	// AccessLog receives one entry per request; nil disables access logging.
	AccessLog *zap.SugaredLogger
	// NewID generates alert ids; nil uses uuid.NewString.
	NewID func() string
	// Now returns the alert creation time; nil uses time.Now.
	Now func() time.Time
}

// handler holds the route implementations.
type handler struct {
	deps Dependencies
}

// NewRouter builds the gin engine.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	if deps.Now == nil {
		deps.Now = time.Now
	}

	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	h := &handler{deps: deps}

	router := gin.New()
	router.Use(gin.Recovery(), h.observe, h.authenticate)

	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	v1.POST("/alerts", h.createAlert)
	v1.POST("/events/alert-created", h.alertCreated)
	v1.POST("/alerts/:id/claim", h.claim)
	v1.PUT("/users/:id/role", h.setRole)

	return router
}

// observe records metrics and the access log after each request.
func (h *handler) observe(c *gin.Context) {
	started := time.Now()

	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}

	status := strconv.Itoa(c.Writer.Status())
	h.deps.Metrics.HTTPRequest(route, c.Request.Method, status)

	if h.deps.AccessLog != nil {
		h.deps.AccessLog.Infow("HTTP request",
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"took", time.Since(started),
			"client_ip", c.ClientIP())
	}
}

func (h *handler) health(c *gin.Context) {
	if err := h.deps.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})

		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// webhookAuthorized compares the shared secret in constant time.
func (h *handler) webhookAuthorized(c *gin.Context) bool {
	if h.deps.WebhookSecret == "" {
		return false
	}

	got := c.GetHeader(WebhookTokenHeader)

	return subtle.ConstantTimeCompare([]byte(got), []byte(h.deps.WebhookSecret)) == 1
}
