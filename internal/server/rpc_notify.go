package server

import (
	"context"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"

	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/netstate"
)

// pushTimeout bounds a single notification write to a slow client.
const pushTimeout = 5 * time.Second

// RPCNotifier maintains a set of connected jrpc2 WebSocket servers
// and broadcasts push notifications to all of them.
type RPCNotifier struct {
	mu      sync.RWMutex
	servers map[*jrpc2.Server]struct{}
	log     logger.Logger

	// queueLen reports the queue length for queue.changed payloads.
	queueLen func() int
}

// NewRPCNotifier creates a new notifier. queueLen may be nil.
func NewRPCNotifier(l logger.Logger, queueLen func() int) *RPCNotifier {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &RPCNotifier{
		servers:  make(map[*jrpc2.Server]struct{}),
		log:      l,
		queueLen: queueLen,
	}
}

// Register adds a server to the broadcast set.
func (n *RPCNotifier) Register(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.servers[srv] = struct{}{}
}

// Unregister removes a server from the broadcast set.
func (n *RPCNotifier) Unregister(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.servers, srv)
}

// Broadcast sends a push notification to all registered servers.
// Servers that fail to receive are unregistered.
func (n *RPCNotifier) Broadcast(method string, params any) {
	n.mu.RLock()
	servers := make([]*jrpc2.Server, 0, len(n.servers))
	for srv := range n.servers {
		servers = append(servers, srv)
	}
	n.mu.RUnlock()

	var failed []*jrpc2.Server
	for _, srv := range servers {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		err := srv.Notify(ctx, method, params)
		cancel()
		if err != nil {
			n.log.Warning("server: push %s failed: %v", method, err)
			failed = append(failed, srv)
		}
	}

	if len(failed) > 0 {
		n.mu.Lock()
		for _, srv := range failed {
			delete(n.servers, srv)
		}
		n.mu.Unlock()
	}
}

// Count returns the number of registered servers.
func (n *RPCNotifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.servers)
}

// OnQueueChanged implements wishlib.Listener.
func (n *RPCNotifier) OnQueueChanged() {
	var length int
	if n.queueLen != nil {
		length = n.queueLen()
	}
	n.Broadcast(common.NotifyQueueChanged, common.QueueChanged{Length: length})
}

// NetChanged is a netstate.ChangeFunc.
func (n *RPCNotifier) NetChanged(old, next netstate.ConnectionState) {
	n.Broadcast(common.NotifyNetChanged, common.NetChanged{Old: old.String(), New: next.String()})
}
