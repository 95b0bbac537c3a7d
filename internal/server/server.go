// Package server exposes the wish queue, the network tracker and the
// dispatch history over JSON-RPC 2.0: plain HTTP POSTs on /jsonrpc and a
// push-enabled WebSocket on /ws. Both endpoints require the bearer secret.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/internal/history"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/netstate"
	"github.com/warpdl/warpq/pkg/wishlib"
)

const (
	pathJSONRPC   = common.PathJSONRPC
	pathWebSocket = common.PathWebSocket
)

// ErrMissingQueue is returned by New without a queue.
var ErrMissingQueue = errors.New("server: queue is required")

// Queue is the part of *wishlib.Queue the RPC methods use.
type Queue interface {
	Add(wishes ...*wishlib.Wish) int
	RemoveMany(uris ...string) int
	Snapshot() []wishlib.Wish
	Len() int
	MoveUpSteps(position, steps int) bool
	ToggleHeld(position int) bool
	SetFileName(uri, fileName string)
	NextPlease(force bool) bool
	Clear()
	Subscribe(l wishlib.Listener) string
	Unsubscribe(handle string) bool
}

// Network is the part of *netstate.Tracker the RPC methods use.
type Network interface {
	State() netstate.ConnectionState
	Policy() netstate.Policy
	SetPolicy(p netstate.Policy)
	CanNotify() bool
	ActiveMetered() bool
	Snapshot() netstate.Snapshot
	Subscribe(fn netstate.ChangeFunc) string
	Unsubscribe(handle string) bool
}

// History lists past dispatches.
type History interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// Options configures a Server. Queue and Secret are required; a server
// without a secret rejects every request.
type Options struct {
	Queue   Queue
	Network Network
	History History

	Secret    string
	Version   string
	Commit    string
	BuildType string

	// SavePolicy persists a policy changed through net.setPolicy before it
	// is applied.
	SavePolicy func(netstate.Policy) error
	// OriginPatterns are the browser origins allowed to open /ws.
	OriginPatterns []string
	Logger         logger.Logger
}

// Server manages the JSON-RPC bridge, WebSocket clients and push
// notifications.
type Server struct {
	opts    Options
	queue   Queue
	network Network
	history History
	log     logger.Logger

	assigner jrpc2.Assigner
	bridge   jhttp.Bridge
	notifier *RPCNotifier

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	handles []string
	netSub  string
	closed  bool
}

// New creates a server and subscribes its notifier to the queue and the
// network tracker.
func New(opts Options) (*Server, error) {
	if opts.Queue == nil {
		return nil, ErrMissingQueue
	}
	s := &Server{
		opts:    opts,
		queue:   opts.Queue,
		network: opts.Network,
		history: opts.History,
		log:     opts.Logger,
	}
	if s.log == nil {
		s.log = logger.NewNopLogger()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	methods := s.methods()
	s.assigner = methods
	s.bridge = jhttp.NewBridge(methods, nil)
	s.notifier = NewRPCNotifier(s.log, s.queue.Len)

	s.handles = append(s.handles, s.queue.Subscribe(s.notifier))
	if s.network != nil {
		s.netSub = s.network.Subscribe(s.notifier.NetChanged)
	}
	return s, nil
}

// Handler returns the HTTP handler serving both endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(pathJSONRPC, s.bridge)
	mux.HandleFunc(pathWebSocket, s.serveWebSocket)
	return requireToken(s.opts.Secret, mux)
}

// Notifier returns the push notifier.
func (s *Server) Notifier() *RPCNotifier {
	return s.notifier
}

// Close disconnects WebSocket clients, drops the subscriptions and shuts
// the bridge down. It is safe to call more than once.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	handles, netSub := s.handles, s.netSub
	s.mu.Unlock()

	s.cancel()
	for _, h := range handles {
		s.queue.Unsubscribe(h)
	}
	if s.network != nil && netSub != "" {
		s.network.Unsubscribe(netSub)
	}
	s.bridge.Close()
}
