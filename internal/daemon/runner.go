// Package daemon runs the warpq daemon: it holds the per-config-directory
// instance lock, serves the RPC handler on a listener and shuts down
// gracefully.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/warpdl/warpq/pkg/logger"
)

// Sentinel errors for the daemon runner.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running daemon.
	ErrAlreadyRunning = errors.New("daemon is already running")

	// ErrNotRunning is returned when Shutdown() is called on a stopped daemon.
	ErrNotRunning = errors.New("daemon is not running")

	// ErrShutdownTimeout is returned when shutdown exceeds the configured timeout.
	ErrShutdownTimeout = errors.New("shutdown timed out")

	// ErrLocked is returned when another daemon holds the config directory.
	ErrLocked = errors.New("another warpq daemon is using this config directory")
)

const (
	// DefaultAddress is the loopback RPC address.
	DefaultAddress = "127.0.0.1:7493"

	// LockFileName is created in the config directory while running.
	LockFileName = "warpq.lock"
)

// Config holds the configuration for the daemon runner.
type Config struct {
	// Address is the TCP address to listen on.
	Address string

	// ConfigDir holds the instance lock. Empty disables locking.
	ConfigDir string

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// A zero value means no timeout.
	ShutdownTimeout time.Duration
}

// Dependencies holds the external dependencies for the daemon runner.
type Dependencies struct {
	// ListenerFactory creates network listeners.
	// If nil, net.Listen is used.
	ListenerFactory func(network, address string) (net.Listener, error)

	// Handler serves requests. If nil, every request gets 404.
	Handler http.Handler

	// Setup, when set, builds the handler once the instance lock is held
	// and replaces Handler. A Setup error aborts Start.
	Setup func(ctx context.Context) (http.Handler, error)

	// ShutdownFunc is called during shutdown to clean up resources.
	ShutdownFunc func() error

	Logger logger.Logger
}

// Runner manages the daemon lifecycle.
type Runner struct {
	config *Config
	deps   *Dependencies
	log    logger.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	listener net.Listener
	httpSrv  *http.Server
	lock     *flock.Flock
	done     chan struct{}
}

// New creates a new daemon runner. Nil config or deps use the defaults.
func New(config *Config, deps *Dependencies) *Runner {
	cfg := applyConfigDefaults(config)
	d := applyDependencyDefaults(deps)
	return &Runner{config: cfg, deps: d, log: d.Logger}
}

func applyConfigDefaults(config *Config) *Config {
	if config == nil {
		config = &Config{}
	}
	if config.Address == "" {
		config.Address = DefaultAddress
	}
	return config
}

func applyDependencyDefaults(deps *Dependencies) *Dependencies {
	if deps == nil {
		deps = &Dependencies{}
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = net.Listen
	}
	if deps.Handler == nil {
		deps.Handler = http.NotFoundHandler()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	return deps
}

// Config returns the runner's configuration.
func (r *Runner) Config() *Config {
	return r.config
}

// Addr returns the bound address while running.
func (r *Runner) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Start takes the instance lock, begins serving and blocks until the
// context is canceled or Shutdown is called.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}

	lock, err := r.acquireLock()
	if err != nil {
		r.mu.Unlock()
		return err
	}

	listener, err := r.deps.ListenerFactory("tcp", r.config.Address)
	if err != nil {
		releaseLock(lock)
		r.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", r.config.Address, err)
	}

	handler := r.deps.Handler
	if r.deps.Setup != nil {
		h, err := r.deps.Setup(ctx)
		if err != nil {
			_ = listener.Close()
			releaseLock(lock)
			r.mu.Unlock()
			return err
		}
		if h != nil {
			handler = h
		}
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.lock = lock
	r.listener = listener
	r.httpSrv = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.ToStdLogger(r.log),
	}
	r.done = make(chan struct{})
	r.running = true
	srv, done := r.httpSrv, r.done
	r.mu.Unlock()

	r.log.Info("daemon: listening on %s", listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	var result error
	select {
	case <-ctx.Done():
		result = ctx.Err()
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			result = err
		}
	}

	r.cleanupOnStop()
	close(done)
	return result
}

func (r *Runner) acquireLock() (*flock.Flock, error) {
	if r.config.ConfigDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(r.config.ConfigDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	lock := flock.New(filepath.Join(r.config.ConfigDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock config dir: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return lock, nil
}

func releaseLock(lock *flock.Flock) {
	if lock != nil {
		_ = lock.Unlock()
	}
}

// cleanupOnStop stops the HTTP server and releases the listener and lock.
func (r *Runner) cleanupOnStop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.httpSrv.Shutdown(ctx); err != nil {
			_ = r.httpSrv.Close()
		}
		cancel()
		r.httpSrv = nil
	}
	r.running = false
	r.closeListener()
	releaseLock(r.lock)
	r.lock = nil
}

// closeListener closes the listener if it exists. Caller must hold the
// mutex. Close errors are ignored; the server may already have closed it.
func (r *Runner) closeListener() {
	if r.listener != nil {
		_ = r.listener.Close()
		r.listener = nil
	}
}

// Shutdown runs the shutdown function, bounded by ShutdownTimeout, and
// stops serving. It returns ErrNotRunning if the daemon is not running and
// ErrShutdownTimeout if the shutdown function took too long.
func (r *Runner) Shutdown() error {
	if err := r.validateRunning(); err != nil {
		return err
	}
	err := r.executeShutdownFunc()
	r.performShutdown()
	return err
}

func (r *Runner) validateRunning() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return ErrNotRunning
	}
	return nil
}

func (r *Runner) executeShutdownFunc() error {
	if r.deps.ShutdownFunc == nil {
		return nil
	}
	if r.config.ShutdownTimeout > 0 {
		return r.executeWithTimeout(r.deps.ShutdownFunc, r.config.ShutdownTimeout)
	}
	if err := r.deps.ShutdownFunc(); err != nil {
		r.log.Error("daemon: shutdown: %v", err)
	}
	return nil
}

// executeWithTimeout runs fn and gives up after timeout.
func (r *Runner) executeWithTimeout(fn func() error, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// performShutdown cancels Start and waits for it to release everything.
func (r *Runner) performShutdown() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// IsRunning returns true if the daemon is currently running.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
