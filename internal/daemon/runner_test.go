package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{Address: "127.0.0.1:0", ConfigDir: t.TempDir()}
}

// startRunner starts r in the background and waits until it serves.
func startRunner(t *testing.T, r *Runner, ctx context.Context) chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- r.Start(ctx) }()
	deadline := time.Now().Add(2 * time.Second)
	for r.Addr() == nil {
		select {
		case err := <-errCh:
			t.Fatalf("Start returned early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("runner did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return errCh
}

func TestNewRunner_Defaults(t *testing.T) {
	r := New(nil, nil)
	if r.Config().Address != DefaultAddress {
		t.Errorf("Address = %q, want %q", r.Config().Address, DefaultAddress)
	}
	if r.IsRunning() {
		t.Error("new runner must not be running")
	}
	if r.Addr() != nil {
		t.Error("Addr must be nil before Start")
	}
}

func TestRunner_ServesHandler(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	var listenerCreated atomic.Bool
	r := New(testConfig(t), &Dependencies{
		Handler: handler,
		ListenerFactory: func(network, address string) (net.Listener, error) {
			listenerCreated.Store(true)
			return net.Listen(network, address)
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startRunner(t, r, ctx)

	if !listenerCreated.Load() {
		t.Error("Start() did not use the listener factory")
	}
	resp, err := http.Get("http://" + r.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Fatalf("body = %q", body)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Start returned %v", err)
	}
	if r.IsRunning() {
		t.Error("runner still running after cancel")
	}
}

func TestRunner_Start_ReturnsErrorIfAlreadyRunning(t *testing.T) {
	r := New(testConfig(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startRunner(t, r, ctx)

	if err := r.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start = %v, want ErrAlreadyRunning", err)
	}
	cancel()
	<-errCh
}

func TestRunner_InstanceLock(t *testing.T) {
	cfg := testConfig(t)
	first := New(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startRunner(t, first, ctx)

	second := New(&Config{Address: "127.0.0.1:0", ConfigDir: cfg.ConfigDir}, nil)
	if err := second.Start(context.Background()); !errors.Is(err, ErrLocked) {
		t.Fatalf("second instance Start = %v, want ErrLocked", err)
	}

	cancel()
	<-errCh

	// the lock is released on stop
	third := New(&Config{Address: "127.0.0.1:0", ConfigDir: cfg.ConfigDir}, nil)
	ctx3, cancel3 := context.WithCancel(context.Background())
	errCh3 := startRunner(t, third, ctx3)
	cancel3()
	<-errCh3
}

func TestRunner_ListenerError(t *testing.T) {
	listenErr := errors.New("no sockets")
	r := New(testConfig(t), &Dependencies{
		ListenerFactory: func(string, string) (net.Listener, error) { return nil, listenErr },
	})
	if err := r.Start(context.Background()); !errors.Is(err, listenErr) {
		t.Fatalf("Start = %v, want listener error", err)
	}
	if r.IsRunning() {
		t.Fatal("runner must not be running after listener failure")
	}
	// the lock must not leak
	r2 := New(&Config{Address: "127.0.0.1:0", ConfigDir: r.Config().ConfigDir}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := startRunner(t, r2, ctx)
	cancel()
	<-errCh
}

func TestRunner_Shutdown(t *testing.T) {
	var called atomic.Bool
	r := New(testConfig(t), &Dependencies{
		ShutdownFunc: func() error {
			called.Store(true)
			return nil
		},
	})
	errCh := startRunner(t, r, context.Background())

	if err := r.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !called.Load() {
		t.Error("shutdown func not called")
	}
	<-errCh
	if r.IsRunning() {
		t.Error("runner still running after Shutdown")
	}
}

func TestRunner_Shutdown_WithTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.ShutdownTimeout = 20 * time.Millisecond
	block := make(chan struct{})
	defer close(block)
	r := New(cfg, &Dependencies{
		ShutdownFunc: func() error {
			<-block
			return nil
		},
	})
	errCh := startRunner(t, r, context.Background())

	if err := r.Shutdown(); !errors.Is(err, ErrShutdownTimeout) {
		t.Fatalf("Shutdown = %v, want ErrShutdownTimeout", err)
	}
	<-errCh
	if r.IsRunning() {
		t.Error("runner still running after timed-out Shutdown")
	}
}

func TestRunner_Shutdown_ReturnsFuncError(t *testing.T) {
	cfg := testConfig(t)
	cfg.ShutdownTimeout = time.Second
	boom := errors.New("flush failed")
	r := New(cfg, &Dependencies{ShutdownFunc: func() error { return boom }})
	errCh := startRunner(t, r, context.Background())

	if err := r.Shutdown(); !errors.Is(err, boom) {
		t.Fatalf("Shutdown = %v, want %v", err, boom)
	}
	<-errCh
}

func TestRunner_Shutdown_NotRunning(t *testing.T) {
	r := New(testConfig(t), nil)
	if err := r.Shutdown(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Shutdown = %v, want ErrNotRunning", err)
	}
}

func TestRunner_SetupBuildsHandlerUnderLock(t *testing.T) {
	cfg := testConfig(t)
	r := New(cfg, &Dependencies{
		Setup: func(context.Context) (http.Handler, error) {
			// a competing instance must already be locked out
			other := New(&Config{Address: "127.0.0.1:0", ConfigDir: cfg.ConfigDir}, nil)
			if err := other.Start(context.Background()); !errors.Is(err, ErrLocked) {
				t.Errorf("competing Start = %v, want ErrLocked", err)
			}
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "built")
			}), nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := startRunner(t, r, ctx)

	resp, err := http.Get("http://" + r.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "built" {
		t.Fatalf("body = %q", body)
	}
	cancel()
	<-errCh
}

func TestRunner_SetupError(t *testing.T) {
	setupErr := errors.New("queue file unreadable")
	r := New(testConfig(t), &Dependencies{
		Setup: func(context.Context) (http.Handler, error) { return nil, setupErr },
	})
	if err := r.Start(context.Background()); !errors.Is(err, setupErr) {
		t.Fatalf("Start = %v, want setup error", err)
	}
	if r.IsRunning() || r.Addr() != nil {
		t.Fatal("runner must be stopped after setup failure")
	}
}
