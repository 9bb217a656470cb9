package sos

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/sos-responder/internal/auth"
	domain "github.com/oshokin/sos-responder/internal/domain/sos"
	"github.com/oshokin/sos-responder/internal/logger"
)

// ClaimService abstracts the claim engine.
type ClaimService interface {
	Claim(ctx context.Context, caller *domain.Identity, alertID string) (string, error)
}

// RoleService abstracts role administration.
type RoleService interface {
	SetUserRole(ctx context.Context, caller *domain.Identity, uid, role string) error
}

// Server implements ResponderServer.
type Server struct {
	// claims runs the claim engine.
	claims ClaimService
	// roles assigns roles.
	roles RoleService
}

// NewServer wires the services into a gRPC handler.
func NewServer(claims ClaimService, roles RoleService) *Server {
	return &Server{
		claims: claims,
		roles:  roles,
	}
}

// ClaimAlert accepts the alert named by req on behalf of the caller.
func (s *Server) ClaimAlert(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	pairingID, err := s.claims.Claim(ctx, auth.IdentityFromContext(ctx), req.GetValue())
	if err != nil {
		return nil, StatusError(ctx, err)
	}

	return wrapperspb.String(pairingID), nil
}

// SetUserRole assigns the role in req to the user in req.
func (s *Server) SetUserRole(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	fields := req.GetFields()

	err := s.roles.SetUserRole(ctx, auth.IdentityFromContext(ctx),
		fields[FieldUID].GetStringValue(),
		fields[FieldRole].GetStringValue())
	if err != nil {
		return nil, StatusError(ctx, err)
	}

	return new(emptypb.Empty), nil
}

// StatusError converts a service error into a gRPC status by its kind.
// Transient errors are logged and their details hidden from the caller.
func StatusError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	switch kind := domain.Kind(err); kind {
	case domain.KindUnauthenticated:
		return status.Error(codes.Unauthenticated, err.Error())
	case domain.KindPermissionDenied:
		return status.Error(codes.PermissionDenied, err.Error())
	case domain.KindInvalidArgument:
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case domain.KindAlreadyClaimed:
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			return status.Error(codes.DeadlineExceeded, "deadline exceeded")
		}

		logger.ErrorKV(ctx, "Request failed", "error", err)

		return status.Error(codes.Unavailable, "service temporarily unavailable")
	}
}

// KindFromStatus maps a gRPC status back to an error kind for clients.
func KindFromStatus(err error) domain.ErrorKind {
	switch status.Code(err) {
	case codes.Unauthenticated:
		return domain.KindUnauthenticated
	case codes.PermissionDenied:
		return domain.KindPermissionDenied
	case codes.InvalidArgument:
		return domain.KindInvalidArgument
	case codes.NotFound:
		return domain.KindNotFound
	case codes.FailedPrecondition:
		return domain.KindAlreadyClaimed
	default:
		return domain.KindTransient
	}
}
