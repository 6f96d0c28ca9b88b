package identityrpc

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/MikeMC777/storefront/internal/apperr"
)

// Users answers identity questions; *user.Service satisfies it.
type Users interface {
	IsValid(ctx context.Context, id string) (bool, error)
	IsAdmin(ctx context.Context, id string) (bool, error)
}

type Server struct {
	users Users
	log   zerolog.Logger
}

func NewServer(users Users, log zerolog.Logger) *Server {
	return &Server{users: users, log: log.With().Str("component", "identity-rpc").Logger()}
}

func (s *Server) ValidateUser(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return s.check(ctx, "validate", in, s.users.IsValid)
}

func (s *Server) IsAdmin(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return s.check(ctx, "is-admin", in, s.users.IsAdmin)
}

func (s *Server) check(ctx context.Context, op string, in *wrapperspb.StringValue, fn func(context.Context, string) (bool, error)) (*wrapperspb.BoolValue, error) {
	id := strings.TrimSpace(in.GetValue())
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	ok, err := fn(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Str("op", op).Str("user_id", id).Msg("identity check failed")
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func toStatus(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return status.Error(codes.InvalidArgument, apperr.Message(err))
	case apperr.KindNotFound:
		return status.Error(codes.NotFound, apperr.Message(err))
	case apperr.KindAuth:
		return status.Error(codes.Unauthenticated, apperr.Message(err))
	case apperr.KindForbidden:
		return status.Error(codes.PermissionDenied, apperr.Message(err))
	default:
		return status.Error(codes.Internal, apperr.Message(err))
	}
}

// NewGRPCServer builds a server with the identity and health services
// registered and marked serving.
func NewGRPCServer(users Users, log zerolog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	gs := grpc.NewServer(opts...)
	RegisterIdentityServer(gs, NewServer(users, log))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return gs, hs
}
