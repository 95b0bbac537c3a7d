package wishlib

import (
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"github.com/warpdl/warpq/pkg/logger"
)

// Listener is notified after every queue mutation.
type Listener interface {
	OnQueueChanged()
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func()

// OnQueueChanged calls f.
func (f ListenerFunc) OnQueueChanged() { f() }

// closer is implemented by listeners that can outlive their owner, such as
// a disconnected RPC client. Closed listeners are dropped on the next
// notification.
type closer interface {
	Closed() bool
}

type listenerEntry struct {
	handle string
	l      Listener
}

// ListenerHub is a registry of queue listeners keyed by a stable handle.
type ListenerHub struct {
	mu      sync.Mutex
	entries []listenerEntry
	log     logger.Logger
}

// NewListenerHub creates an empty hub.
func NewListenerHub(l logger.Logger) *ListenerHub {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &ListenerHub{log: l}
}

// Subscribe registers l and returns the handle to unsubscribe it with.
func (h *ListenerHub) Subscribe(l Listener) string {
	handle := uuid.NewString()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, listenerEntry{handle: handle, l: l})
	return handle
}

// Unsubscribe removes the listener registered under handle.
func (h *ListenerHub) Unsubscribe(handle string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, e := range h.entries {
		if e.handle == handle {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered listeners.
func (h *ListenerHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Notify delivers OnQueueChanged to every live listener, outside the
// registry lock. Closed listeners are pruned; a panicking listener is
// logged and skipped.
func (h *ListenerHub) Notify() {
	h.mu.Lock()
	entries := make([]listenerEntry, len(h.entries))
	copy(entries, h.entries)
	h.mu.Unlock()

	var dead []string
	for _, e := range entries {
		if e.l == nil {
			dead = append(dead, e.handle)
			continue
		}
		if c, ok := e.l.(closer); ok && c.Closed() {
			dead = append(dead, e.handle)
			continue
		}
		h.deliver(e)
	}
	for _, handle := range dead {
		h.Unsubscribe(handle)
	}
}

func (h *ListenerHub) deliver(e listenerEntry) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("wishlib: listener %s panicked: %v\n%s", e.handle, r, debug.Stack())
		}
	}()
	e.l.OnQueueChanged()
}
