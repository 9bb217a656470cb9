package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oshokin/sos-responder/internal/domain/sos"
)

// Issuer is the "iss" claim of tokens issued by this service.
const Issuer = "sos-responder"

var (
	// ErrNoSecret is returned when a signer or verifier is built without a key.
	ErrNoSecret = errors.New("jwt secret is empty")
	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")
)

// Claims are the JWT claims understood by the service.
type Claims struct {
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks token signatures and expiry.
type Verifier struct {
	// secret is the HMAC key.
	secret []byte
	// parser enforces the signing method and issuer.
	parser *jwt.Parser
}

// NewVerifier returns a verifier for tokens signed with secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}

	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}, nil
}

// Verify parses token and returns the identity it asserts.
// Every failure wraps sos.ErrUnauthenticated.
func (v *Verifier) Verify(token string) (*sos.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: %w", sos.ErrUnauthenticated, ErrMissingToken)
	}

	claims := new(Claims)

	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sos.ErrUnauthenticated, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", sos.ErrUnauthenticated)
	}

	return &sos.Identity{
		UID:   claims.Subject,
		Role:  sos.Role(claims.Role),
		Email: claims.Email,
	}, nil
}

// Signer issues tokens.
type Signer struct {
	// secret is the HMAC key.
	secret []byte
	// now returns the issue time.
	now func() time.Time
}

// NewSigner returns a signer using secret.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}

	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// Issue returns a token for identity valid for ttl.
func (s *Signer) Issue(identity *sos.Identity, ttl time.Duration) (string, error) {
	if identity == nil || identity.UID == "" {
		return "", fmt.Errorf("%w: identity uid is required", sos.ErrInvalidArgument)
	}

	now := s.now()
	claims := Claims{
		Role:  string(identity.Role),
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   identity.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: %w", sos.ErrUnauthenticated, ErrMissingToken)
	}

	return strings.TrimSpace(token), nil
}

// identityKey is the context key of the verified caller.
type identityKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *sos.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the verified caller, or nil.
func IdentityFromContext(ctx context.Context) *sos.Identity {
	identity, _ := ctx.Value(identityKey{}).(*sos.Identity)

	return identity
}
