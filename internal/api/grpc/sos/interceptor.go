package sos

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oshokin/sos-responder/internal/auth"
	domain "github.com/oshokin/sos-responder/internal/domain/sos"
	"github.com/oshokin/sos-responder/internal/logger"
)

// AuthorizationKey is the metadata key carrying the bearer token.
const AuthorizationKey = "authorization"

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(token string) (*domain.Identity, error)
}

// UnaryServerInterceptor attaches a named logger and, when the call carries a
// token, the verified identity. Calls without a token proceed anonymously and
// are rejected by the services that need a caller.
func UnaryServerInterceptor(verifier TokenVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = logger.WithName(ctx, "grpc")
		ctx = logger.WithKV(ctx, "method", info.FullMethod)

		if header := firstValue(ctx, AuthorizationKey); header != "" {
			token, err := auth.BearerToken(header)
			if err != nil {
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}

			ctx = auth.WithIdentity(ctx, identity)
			ctx = logger.WithKV(ctx, "caller", identity.UID)
		}

		started := time.Now()
		resp, err := handler(ctx, req)

		logger.DebugKV(ctx, "Call finished", "code", status.Code(err), "took", time.Since(started))

		return resp, err
	}
}

// WithBearer returns ctx with an outgoing authorization entry for token.
func WithBearer(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx, AuthorizationKey, "Bearer "+token)
}

func firstValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}

	return ""
}
