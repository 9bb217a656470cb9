package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/oshokin/sos-responder/internal/domain/sos"
	"github.com/oshokin/sos-responder/internal/logger"
)

// AdminPolicy decides whether caller may administer roles.
type AdminPolicy func(caller *sos.Identity) bool

// EmailAllowlist allows callers whose email is in emails, ignoring case and
// surrounding spaces. An empty list allows nobody.
func EmailAllowlist(emails []string) AdminPolicy {
	allowed := make(map[string]struct{}, len(emails))

	for _, email := range emails {
		if email = NormalizeEmail(email); email != "" {
			allowed[email] = struct{}{}
		}
	}

	return func(caller *sos.Identity) bool {
		if caller == nil {
			return false
		}

		email := NormalizeEmail(caller.Email)
		if email == "" {
			return false
		}

		_, ok := allowed[email]

		return ok
	}
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseEmailList splits a comma-separated list of addresses.
func ParseEmailList(csv string) []string {
	var emails []string

	for _, part := range strings.Split(csv, ",") {
		if email := NormalizeEmail(part); email != "" {
			emails = append(emails, email)
		}
	}

	return emails
}

// Store writes roles into the directory.
type Store interface {
	SetUserRole(ctx context.Context, id string, role sos.Role) error
}

// Service assigns roles.
type Service struct {
	// store is the directory.
	store Store
	// policy gates every call.
	policy AdminPolicy
}

// New returns a role service; a nil policy allows nobody.
func New(store Store, policy AdminPolicy) *Service {
	if policy == nil {
		policy = EmailAllowlist(nil)
	}

	return &Service{store: store, policy: policy}
}

// SetUserRole gives uid the named role.
func (s *Service) SetUserRole(ctx context.Context, caller *sos.Identity, uid, role string) error {
	if caller == nil || caller.UID == "" {
		return fmt.Errorf("%w: sign in required", sos.ErrUnauthenticated)
	}

	if !s.policy(caller) {
		return fmt.Errorf("%w: admin only", sos.ErrPermissionDenied)
	}

	uid = strings.TrimSpace(uid)
	role = strings.TrimSpace(role)

	if uid == "" || role == "" {
		return fmt.Errorf("%w: uid and role required", sos.ErrInvalidArgument)
	}

	parsed, ok := sos.ParseRole(role)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", sos.ErrInvalidArgument, role)
	}

	if err := s.store.SetUserRole(ctx, uid, parsed); err != nil {
		return fmt.Errorf("set role of %s: %w", uid, err)
	}

	logger.InfoKV(logger.WithName(ctx, "roles"), "Role assigned",
		"uid", uid,
		"role", parsed,
		"by", caller.Email)

	return nil
}
