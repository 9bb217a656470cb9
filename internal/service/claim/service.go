package claim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/sos-responder/internal/domain/sos"
	"github.com/oshokin/sos-responder/internal/logger"
	"github.com/oshokin/sos-responder/internal/metrics"
	repo "github.com/oshokin/sos-responder/internal/repository/sqlite"
)

// resultAccepted labels successful claims in metrics.
const resultAccepted = "accepted"

// Store performs the atomic claim transition.
type Store interface {
	ClaimAlert(ctx context.Context, req repo.ClaimRequest) (*sos.Pairing, error)
}

// Service is the claim engine.
type Service struct {
	// store runs the claim transaction.
	store Store
	// metrics is optional.
	metrics *metrics.Metrics
	// now returns the acceptance time.
	now func() time.Time
	// newID returns a fresh pairing id.
	newID func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics records claim results in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator replaces the pairing id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// New returns a claim service over store.
func New(store Store, options ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Claim accepts alertID on behalf of caller and returns the new pairing id.
//
// Checks run in order: a missing identity is Unauthenticated, a non-responder
// is PermissionDenied, a blank alert id is InvalidArgument. The store then
// reports NotFound or AlreadyClaimed.
func (s *Service) Claim(ctx context.Context, caller *sos.Identity, alertID string) (string, error) {
	pairingID, err := s.claim(ctx, caller, alertID)
	if err != nil {
		s.metrics.Claim(sos.Kind(err).String())

		return "", err
	}

	s.metrics.Claim(resultAccepted)

	return pairingID, nil
}

func (s *Service) claim(ctx context.Context, caller *sos.Identity, alertID string) (string, error) {
	if caller == nil || caller.UID == "" {
		return "", fmt.Errorf("%w: sign in required", sos.ErrUnauthenticated)
	}

	if !caller.IsResponder() {
		return "", fmt.Errorf("%w: only responders can accept alerts", sos.ErrPermissionDenied)
	}

	alertID = strings.TrimSpace(alertID)
	if alertID == "" {
		return "", fmt.Errorf("%w: missing alert id", sos.ErrInvalidArgument)
	}

	ctx = logger.WithName(ctx, "claim")
	ctx = logger.WithFields(ctx, "alert_id", alertID, "claimant_id", caller.UID)

	pairing, err := s.store.ClaimAlert(ctx, repo.ClaimRequest{
		AlertID:    alertID,
		ClaimantID: caller.UID,
		PairingID:  s.newID(),
		At:         s.now(),
	})
	if err != nil {
		logger.InfoKV(ctx, "Claim rejected", "kind", sos.Kind(err), "error", err)

		return "", fmt.Errorf("claim alert %s: %w", alertID, err)
	}

	logger.InfoKV(ctx, "Alert accepted", "pairing_id", pairing.ID)

	return pairing.ID, nil
}
