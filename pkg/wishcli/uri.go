package wishcli

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/warpdl/warpq/common"
)

var (
	ErrEmptyURL          = errors.New("daemon URL cannot be empty")
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// DaemonURL is the normalized address of a daemon.
type DaemonURL struct {
	Scheme string // "http" or "https"
	Host   string // host:port
}

// ParseDaemonURL accepts "host:port", "http://host:port" or
// "https://host:port"; any path is ignored.
func ParseDaemonURL(raw string) (*DaemonURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyURL
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid daemon URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		return nil, fmt.Errorf("invalid daemon address %q: %w", u.Host, err)
	}
	return &DaemonURL{Scheme: scheme, Host: u.Host}, nil
}

// RPC returns the JSON-RPC endpoint URL.
func (d *DaemonURL) RPC() string {
	return d.Scheme + "://" + d.Host + common.PathJSONRPC
}

// WebSocket returns the push endpoint URL.
func (d *DaemonURL) WebSocket() string {
	scheme := "ws"
	if d.Scheme == "https" {
		scheme = "wss"
	}
	return scheme + "://" + d.Host + common.PathWebSocket
}
