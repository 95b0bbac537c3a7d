package wishcli

import (
	"errors"
	"testing"
)

func TestParseDaemonURL(t *testing.T) {
	tests := []struct {
		in      string
		rpc     string
		ws      string
		wantErr error
	}{
		{in: "127.0.0.1:7493", rpc: "http://127.0.0.1:7493/jsonrpc", ws: "ws://127.0.0.1:7493/ws"},
		{in: " http://localhost:80/ignored ", rpc: "http://localhost:80/jsonrpc", ws: "ws://localhost:80/ws"},
		{in: "HTTPS://example.com:443", rpc: "https://example.com:443/jsonrpc", ws: "wss://example.com:443/ws"},
		{in: "", wantErr: ErrEmptyURL},
		{in: "unix:///tmp/x.sock", wantErr: ErrUnsupportedScheme},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, err := ParseDaemonURL(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDaemonURL: %v", err)
			}
			if u.RPC() != tt.rpc {
				t.Errorf("RPC() = %q, want %q", u.RPC(), tt.rpc)
			}
			if u.WebSocket() != tt.ws {
				t.Errorf("WebSocket() = %q, want %q", u.WebSocket(), tt.ws)
			}
		})
	}
}

func TestParseDaemonURLMissingPort(t *testing.T) {
	if _, err := ParseDaemonURL("http://localhost"); err == nil {
		t.Fatal("expected error for address without port")
	}
}

func TestNewClientRequiresSecret(t *testing.T) {
	if _, err := NewClient("127.0.0.1:1", ""); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("err = %v, want ErrNoSecret", err)
	}
}
