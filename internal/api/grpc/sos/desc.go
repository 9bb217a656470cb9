package sos

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sos.v1.ResponderService"

// Full method names.
const (
	ClaimAlertMethod  = "/" + ServiceName + "/ClaimAlert"
	SetUserRoleMethod = "/" + ServiceName + "/SetUserRole"
)

// Request fields of SetUserRole.
const (
	FieldUID  = "uid"
	FieldRole = "role"
)

// ResponderServer is the server API of ResponderService.
type ResponderServer interface {
	ClaimAlert(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	SetUserRole(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

// ServiceDesc describes ResponderService for grpc.Server.
//
//nolint:gochecknoglobals // grpc.ServiceDesc is registered by address.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResponderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ClaimAlert", Handler: claimAlertHandler},
		{MethodName: "SetUserRole", Handler: setUserRoleHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sos/v1/responder.proto",
}

// RegisterResponderServer registers srv on s.
func RegisterResponderServer(s grpc.ServiceRegistrar, srv ResponderServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func claimAlertHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is fixed by grpc.MethodDesc.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ResponderServer).ClaimAlert(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ClaimAlertMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ResponderServer).ClaimAlert(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

func setUserRoleHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is fixed by grpc.MethodDesc.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ResponderServer).SetUserRole(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SetUserRoleMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ResponderServer).SetUserRole(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

// ResponderClient is the client API of ResponderService.
type ResponderClient struct {
	// cc carries the calls.
	cc grpc.ClientConnInterface
}

// NewResponderClient returns a client over cc.
func NewResponderClient(cc grpc.ClientConnInterface) *ResponderClient {
	return &ResponderClient{cc: cc}
}

// ClaimAlert calls ResponderService/ClaimAlert.
func (c *ResponderClient) ClaimAlert(
	ctx context.Context,
	in *wrapperspb.StringValue,
	opts ...grpc.CallOption,
) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, ClaimAlertMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// SetUserRole calls ResponderService/SetUserRole.
func (c *ResponderClient) SetUserRole(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, SetUserRoleMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
