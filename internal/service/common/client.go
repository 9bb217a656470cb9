//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	sosapi "github.com/oshokin/sos-responder/internal/api/grpc/sos"
	"github.com/oshokin/sos-responder/internal/config"
)

// Client wraps the responder gRPC client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the server.
	conn *grpc.ClientConn
	// api is the responder service client.
	api *sosapi.ResponderClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// token is sent as the bearer token on every call.
	token string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithToken authenticates every call with token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errAlertIDRequired is returned when no alert id is given.
	errAlertIDRequired = errors.New("alert id must be provided")
	// errNoPairingID is returned when the server accepted without a pairing id.
	errNoPairingID = errors.New("server returned no pairing id")
)

// Dial creates a client for the responder API at address.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial sos server: %w", err)
	}

	client := NewClient(conn, opts...)
	client.conn = conn

	return client, nil
}

// NewClient wraps an existing connection. Close does not close cc.
func NewClient(cc grpc.ClientConnInterface, opts ...Option) *Client {
	client := &Client{
		api:         sosapi.NewResponderClient(cc),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// ClaimAlert claims alertID for the token's owner and returns the pairing id.
func (c *Client) ClaimAlert(ctx context.Context, alertID string) (string, error) {
	if alertID == "" {
		return "", errAlertIDRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ClaimAlert(callCtx, wrapperspb.String(alertID))
	if err != nil {
		return "", fmt.Errorf("claim alert: %w", err)
	}

	if resp.GetValue() == "" {
		return "", errNoPairingID
	}

	return resp.GetValue(), nil
}

// SetUserRole assigns role to uid.
func (c *Client) SetUserRole(ctx context.Context, uid, role string) error {
	request, err := structpb.NewStruct(map[string]any{
		sosapi.FieldUID:  uid,
		sosapi.FieldRole: role,
	})
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err = c.api.SetUserRole(callCtx, request); err != nil {
		return fmt.Errorf("set user role: %w", err)
	}

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline. The bearer token
// is attached to the outgoing metadata.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = sosapi.WithBearer(ctx, c.token)

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
