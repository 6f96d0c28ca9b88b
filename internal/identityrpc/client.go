package identityrpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/MikeMC777/storefront/internal/apperr"
)

type Client struct {
	cc      grpc.ClientConnInterface
	timeout time.Duration
}

// Dial connects lazily; the first call waits for the server to be ready.
func Dial(addr string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn), conn, nil
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc, timeout: 5 * time.Second}
}

func (c *Client) ValidateUser(ctx context.Context, id string) (bool, error) {
	return c.call(ctx, validateUserMethod, id)
}

func (c *Client) IsAdmin(ctx context.Context, id string) (bool, error) {
	return c.call(ctx, isAdminMethod, id)
}

func (c *Client) call(ctx context.Context, method, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, method, wrapperspb.String(id), out, grpc.WaitForReady(true)); err != nil {
		return false, fromStatus(err)
	}
	return out.GetValue(), nil
}

func fromStatus(err error) error {
	st := status.Convert(err)
	switch st.Code() {
	case codes.InvalidArgument:
		return apperr.Validation("%s", st.Message())
	case codes.NotFound:
		return apperr.NotFound("%s", st.Message())
	case codes.Unauthenticated:
		return apperr.Auth(st.Message())
	case codes.PermissionDenied:
		return apperr.Forbidden(st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return apperr.Gateway(err, "identity service unavailable")
	default:
		return apperr.Persistence(err, "identity call")
	}
}
