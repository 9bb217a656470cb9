package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/sos-responder/internal/auth"
	"github.com/oshokin/sos-responder/internal/domain/sos"
	"github.com/oshokin/sos-responder/internal/logger"
)

// identityKey stores the verified caller in the gin context.
const identityKey = "identity"

// createAlertRequest is the body of POST /v1/alerts.
type createAlertRequest struct {
	Name     string   `json:"name"`
	IDNumber string   `json:"idNumber"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Site     string   `json:"site"`
}

// setRoleRequest is the body of PUT /v1/users/:id/role.
type setRoleRequest struct {
	Role string `json:"role"`
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

var errCoordinates = errors.New("latitude must be within [-90, 90] and longitude within [-180, 180]")

// authenticate verifies a bearer token when one is sent. Requests without a
// token continue anonymously; handlers that need a caller reject them.
func (h *handler) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()

		return
	}

	token, err := auth.BearerToken(header)
	if err == nil {
		var identity *sos.Identity

		identity, err = h.deps.Verifier.Verify(token)
		if err == nil {
			c.Set(identityKey, identity)
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), identity))
			c.Next()

			return
		}
	}

	h.writeError(c, err)
	c.Abort()
}

func caller(c *gin.Context) *sos.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(*sos.Identity); ok {
			return identity
		}
	}

	return nil
}

func (h *handler) createAlert(c *gin.Context) {
	identity := caller(c)
	if identity == nil {
		h.writeError(c, fmt.Errorf("%w: sign in required", sos.ErrUnauthenticated))

		return
	}

	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: %w", sos.ErrInvalidArgument, err))

		return
	}

	if err := validateCoordinates(req.Lat, req.Lng); err != nil {
		h.writeError(c, err)

		return
	}

	alert := &sos.Alert{
		ID:                 h.deps.NewID(),
		OriginatorID:       identity.UID,
		OriginatorName:     strings.TrimSpace(req.Name),
		OriginatorIDNumber: strings.TrimSpace(req.IDNumber),
		Site:               strings.TrimSpace(req.Site),
		CreatedAt:          h.deps.Now().UTC(),
		Status:             sos.StatusOpen,
	}

	if req.Lat != nil || req.Lng != nil {
		alert.Location = &sos.Location{Lat: req.Lat, Lng: req.Lng}
	}

	if err := h.deps.Store.CreateAlert(c.Request.Context(), alert); err != nil {
		h.writeError(c, fmt.Errorf("create alert: %w", err))

		return
	}

	// The dispatcher retries transient failures and logs the final one.
	h.deps.Dispatcher.Dispatch(alert.Clone())

	c.JSON(http.StatusCreated, alert)
}

func (h *handler) alertCreated(c *gin.Context) {
	if !h.webhookAuthorized(c) {
		h.writeError(c, fmt.Errorf("%w: invalid webhook token", sos.ErrUnauthenticated))

		return
	}

	var alert sos.Alert
	if err := c.ShouldBindJSON(&alert); err != nil {
		h.writeError(c, fmt.Errorf("%w: %w", sos.ErrInvalidArgument, err))

		return
	}

	result, err := h.deps.Escalator.HandleAlertCreated(c.Request.Context(), &alert)
	if err != nil {
		h.writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcome":       result.Outcome,
		"pushAddresses": result.PushAddresses,
		"pushSuccesses": result.PushSuccesses,
		"responderSms":  result.ResponderSMS,
		"contactSms":    result.ContactSMS,
	})
}

func (h *handler) claim(c *gin.Context) {
	pairingID, err := h.deps.Claims.Claim(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"pairingId": pairingID})
}

func (h *handler) setRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: %w", sos.ErrInvalidArgument, err))

		return
	}

	if err := h.deps.Roles.SetUserRole(c.Request.Context(), caller(c), c.Param("id"), req.Role); err != nil {
		h.writeError(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

// writeError answers with the status matching the error kind.
func (h *handler) writeError(c *gin.Context, err error) {
	kind := sos.Kind(err)

	status := http.StatusServiceUnavailable
	message := "service temporarily unavailable"

	switch kind {
	case sos.KindUnauthenticated:
		status = http.StatusUnauthorized
	case sos.KindPermissionDenied:
		status = http.StatusForbidden
	case sos.KindInvalidArgument:
		status = http.StatusBadRequest
	case sos.KindNotFound:
		status = http.StatusNotFound
	case sos.KindAlreadyClaimed:
		status = http.StatusConflict
	default:
		logger.ErrorKV(logger.WithName(c.Request.Context(), "http"), "Request failed",
			"route", c.FullPath(),
			"error", err)
	}

	if kind != sos.KindTransient {
		message = err.Error()
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: message, Kind: kind.String()})
}

func validateCoordinates(lat, lng *float64) error {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return fmt.Errorf("%w: %w", sos.ErrInvalidArgument, errCoordinates)
	}

	if lng != nil && (*lng < -180 || *lng > 180) {
		return fmt.Errorf("%w: %w", sos.ErrInvalidArgument, errCoordinates)
	}

	return nil
}
