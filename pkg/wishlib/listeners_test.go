package wishlib

import (
	"sync/atomic"
	"testing"

	"github.com/warpdl/warpq/pkg/logger"
)

type closableListener struct {
	calls  atomic.Int32
	closed atomic.Bool
}

func (c *closableListener) OnQueueChanged() { c.calls.Add(1) }
func (c *closableListener) Closed() bool    { return c.closed.Load() }

func TestListenerHub_PrunesClosed(t *testing.T) {
	hub := NewListenerHub(nil)
	l := &closableListener{}
	hub.Subscribe(l)
	hub.Subscribe(nil)

	hub.Notify()
	if l.calls.Load() != 1 {
		t.Fatalf("calls = %d", l.calls.Load())
	}
	if hub.Len() != 1 {
		t.Errorf("nil listener not pruned, Len = %d", hub.Len())
	}

	l.closed.Store(true)
	hub.Notify()
	if l.calls.Load() != 1 {
		t.Error("closed listener was notified")
	}
	if hub.Len() != 0 {
		t.Errorf("Len = %d after pruning", hub.Len())
	}
}

func TestListenerHub_PanicIsContained(t *testing.T) {
	log := logger.NewMockLogger()
	hub := NewListenerHub(log)
	var after atomic.Int32
	hub.Subscribe(ListenerFunc(func() { panic("view torn down") }))
	hub.Subscribe(ListenerFunc(func() { after.Add(1) }))

	hub.Notify()
	if after.Load() != 1 {
		t.Error("listener after a panicking one was skipped")
	}
	if len(log.ErrorCalls()) != 1 {
		t.Errorf("error logs = %d, want 1", len(log.ErrorCalls()))
	}
}

func TestListenerHub_UnsubscribeFromCallback(t *testing.T) {
	hub := NewListenerHub(nil)
	var handle string
	var calls atomic.Int32
	handle = hub.Subscribe(ListenerFunc(func() {
		calls.Add(1)
		hub.Unsubscribe(handle)
	}))
	hub.Notify()
	hub.Notify()
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestFileNameHints(t *testing.T) {
	h := NewFileNameHints()
	h.Set("a", "a.bin")
	h.Set("b", "b.bin")
	if name, ok := h.Get("a"); !ok || name != "a.bin" {
		t.Errorf("Get(a) = %q, %v", name, ok)
	}
	h.Set("a", "")
	if _, ok := h.Get("a"); ok {
		t.Error("empty name did not delete the hint")
	}
	h.Delete("missing")
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Len = %d after Clear", h.Len())
	}
}
