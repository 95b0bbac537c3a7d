// Package wishcli is the JSON-RPC client of the warpq daemon used by the
// command line.
package wishcli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
)

// DefaultTimeout bounds a single call.
const DefaultTimeout = 10 * time.Second

// ErrNoSecret is returned when no RPC secret is available.
var ErrNoSecret = errors.New("wishcli: rpc secret is empty")

// Client talks to the daemon's /jsonrpc endpoint.
type Client struct {
	base    *DaemonURL
	secret  string
	timeout time.Duration
	rpc     *jrpc2.Client
}

// authTransport adds the bearer token to every request.
type authTransport struct {
	secret string
	next   http.RoundTripper
}

func (t *authTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+t.secret)
	return t.next.RoundTrip(r)
}

// NewClient creates a client for the daemon at rawURL ("host:port" or an
// http URL).
func NewClient(rawURL, secret string) (*Client, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	u, err := ParseDaemonURL(rawURL)
	if err != nil {
		return nil, err
	}
	hc := &http.Client{Transport: &authTransport{secret: secret, next: http.DefaultTransport}}
	ch := jhttp.NewChannel(u.RPC(), &jhttp.ChannelOptions{Client: hc})
	return &Client{
		base:    u,
		secret:  secret,
		timeout: DefaultTimeout,
		rpc:     jrpc2.NewClient(ch, nil),
	}, nil
}

// SetTimeout changes the per-call timeout; zero disables it.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Close releases the underlying channel.
func (c *Client) Close() error {
	return c.rpc.Close()
}

func (c *Client) call(method string, params, result any) error {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.rpc.CallResult(ctx, method, params, result); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// ErrorCode extracts the JSON-RPC error code from err, if any.
func ErrorCode(err error) (jrpc2.Code, bool) {
	var e *jrpc2.Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
