// Package identityrpc exposes user identity checks over gRPC so other
// services can validate the user ids they are handed. Messages are the
// protobuf wrapper types, so no generated code is needed.
package identityrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "storefront.identity.v1.Identity"

const (
	validateUserMethod = "/" + ServiceName + "/ValidateUser"
	isAdminMethod      = "/" + ServiceName + "/IsAdmin"
)

// IdentityServer is the server API of the Identity service.
type IdentityServer interface {
	ValidateUser(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	IsAdmin(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

type unaryCall func(IdentityServer, context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)

func unaryHandler(fullMethod string, call unaryCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.StringValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(IdentityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(IdentityServer), ctx, req.(*wrapperspb.StringValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ValidateUser",
			Handler:    unaryHandler(validateUserMethod, IdentityServer.ValidateUser),
		},
		{
			MethodName: "IsAdmin",
			Handler:    unaryHandler(isAdminMethod, IdentityServer.IsAdmin),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/identity/v1/identity.proto",
}

func RegisterIdentityServer(s grpc.ServiceRegistrar, srv IdentityServer) {
	s.RegisterService(&ServiceDesc, srv)
}
