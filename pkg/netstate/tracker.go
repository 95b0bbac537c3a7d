package netstate

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warpdl/warpq/pkg/logger"
)

// Source supplies point-in-time transport snapshots.
type Source interface {
	Snapshot() (Snapshot, error)
}

// Watcher is implemented by sources that can push change signals. Watch
// must return once the subscription is established; signals are then
// delivered until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, sig Signals) error
}

// Signals receives raw platform connectivity events.
type Signals interface {
	OnAvailable(t Transport)
	OnLost(name string)
	OnLosing(name string, maxMsToLive time.Duration)
	OnBlockedStatusChanged(name string, blocked bool)
	OnConnecting(name string)
	OnSnapshot(s Snapshot)
}

// ChangeFunc is called with the previous and the new state.
type ChangeFunc func(old, next ConnectionState)

type subscription struct {
	handle string
	fn     ChangeFunc
}

// Tracker owns the process-wide ConnectionState.
type Tracker struct {
	src Source
	log logger.Logger

	mu          sync.Mutex
	initialized bool
	ready       bool
	canNotify   bool
	policy      Policy
	transports  []Transport
	losing      map[string]*time.Timer
	connecting  map[string]struct{}
	state       ConnectionState

	// evalMu orders evaluation with delivery so every change is reported
	// exactly once and in order.
	evalMu sync.Mutex

	subMu sync.Mutex
	subs  []subscription
}

// NewTracker creates an uninitialized tracker reading from src.
func NewTracker(src Source, l logger.Logger) *Tracker {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Tracker{
		src:        src,
		log:        l,
		policy:     DefaultPolicy(),
		losing:     make(map[string]*time.Timer),
		connecting: make(map[string]struct{}),
	}
}

// Init applies policy, takes the initial snapshot and detects once whether
// the source can push change notifications. It must be called exactly once.
func (t *Tracker) Init(ctx context.Context, policy Policy) error {
	t.mu.Lock()
	if t.initialized {
		t.mu.Unlock()
		return ErrAlreadyInitialized
	}
	t.initialized = true
	t.policy = policy
	t.mu.Unlock()

	if t.src != nil {
		snap, err := t.src.Snapshot()
		if err != nil {
			t.log.Warning("netstate: initial snapshot failed: %v", err)
		} else {
			t.mu.Lock()
			t.transports = snap.Transports
			t.mu.Unlock()
		}
	}

	canNotify := false
	if w, ok := t.src.(Watcher); ok {
		if err := w.Watch(ctx, t); err != nil {
			t.log.Warning("netstate: change notifications unavailable: %v", err)
		} else {
			canNotify = true
		}
	}
	t.mu.Lock()
	t.canNotify = canNotify
	t.ready = true
	t.mu.Unlock()
	if !canNotify {
		t.log.Info("netstate: no change notifications, assuming connected")
	}
	t.evaluate()
	return nil
}

// State returns the current state. Before Init it is Unknown; without change
// notifications it is always Connected.
func (t *Tracker) State() ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return Unknown
	}
	return t.state
}

// Policy returns the policy the state is reduced with.
func (t *Tracker) Policy() Policy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.policy
}

// SetPolicy replaces the policy and re-evaluates.
func (t *Tracker) SetPolicy(p Policy) {
	t.mu.Lock()
	t.policy = p
	t.mu.Unlock()
	t.evaluate()
}

// CanNotify reports whether the platform delivers change notifications.
func (t *Tracker) CanNotify() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canNotify
}

// ActiveMetered reports whether the active transport is metered.
func (t *Tracker) ActiveMetered() bool {
	return t.Snapshot().Metered()
}

// Snapshot returns a copy of the transports last seen.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{Transports: append([]Transport(nil), t.transports...)}
}

// Subscribe registers fn for state changes and returns its handle. fn runs
// synchronously on the goroutine that caused the change and must not feed
// signals back into the tracker.
func (t *Tracker) Subscribe(fn ChangeFunc) string {
	handle := uuid.NewString()
	t.subMu.Lock()
	defer t.subMu.Unlock()
	t.subs = append(t.subs, subscription{handle: handle, fn: fn})
	return handle
}

// Unsubscribe removes the subscription registered under handle.
func (t *Tracker) Unsubscribe(handle string) bool {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	for i, s := range t.subs {
		if s.handle == handle {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			return true
		}
	}
	return false
}

// OnAvailable records t as usable.
func (t *Tracker) OnAvailable(tr Transport) {
	t.mu.Lock()
	t.clearTransientLocked(tr.Name)
	t.upsertLocked(tr)
	t.mu.Unlock()
	t.evaluate()
}

// OnLost forgets the named transport.
func (t *Tracker) OnLost(name string) {
	t.mu.Lock()
	t.clearTransientLocked(name)
	t.removeLocked(name)
	t.mu.Unlock()
	t.evaluate()
}

// OnLosing surfaces Disconnecting while the named transport is the active
// one. Unless the transport is announced available again within
// maxMsToLive, it is then treated as lost; a later snapshot or
// availability signal brings it back.
func (t *Tracker) OnLosing(name string, maxMsToLive time.Duration) {
	if maxMsToLive <= 0 {
		t.OnLost(name)
		return
	}
	t.mu.Lock()
	if old, ok := t.losing[name]; ok {
		old.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(maxMsToLive, func() {
		t.mu.Lock()
		if t.losing[name] != timer {
			t.mu.Unlock()
			return
		}
		delete(t.losing, name)
		t.removeLocked(name)
		t.mu.Unlock()
		t.evaluate()
	})
	t.losing[name] = timer
	t.mu.Unlock()
	t.evaluate()
}

// OnBlockedStatusChanged updates the blocked flag of the named transport.
func (t *Tracker) OnBlockedStatusChanged(name string, blocked bool) {
	t.mu.Lock()
	for i := range t.transports {
		if t.transports[i].Name == name {
			t.transports[i].Blocked = blocked
		}
	}
	t.mu.Unlock()
	t.evaluate()
}

// OnConnecting surfaces Connecting until the named transport becomes
// available or is lost, unless another transport already connects us.
func (t *Tracker) OnConnecting(name string) {
	t.mu.Lock()
	t.connecting[name] = struct{}{}
	t.mu.Unlock()
	t.evaluate()
}

// OnSnapshot replaces the known transports wholesale.
func (t *Tracker) OnSnapshot(s Snapshot) {
	t.mu.Lock()
	t.transports = append([]Transport(nil), s.Transports...)
	for name := range t.connecting {
		if _, ok := s.Lookup(name); ok {
			delete(t.connecting, name)
		}
	}
	for name, timer := range t.losing {
		if _, ok := s.Lookup(name); !ok {
			timer.Stop()
			delete(t.losing, name)
		}
	}
	t.mu.Unlock()
	t.evaluate()
}

// Close stops pending transient timers.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, timer := range t.losing {
		timer.Stop()
		delete(t.losing, name)
	}
}

func (t *Tracker) upsertLocked(tr Transport) {
	for i := range t.transports {
		if t.transports[i].Name == tr.Name {
			t.transports[i] = tr
			return
		}
	}
	t.transports = append(t.transports, tr)
}

func (t *Tracker) removeLocked(name string) {
	for i, tr := range t.transports {
		if tr.Name == name {
			t.transports = append(t.transports[:i], t.transports[i+1:]...)
			return
		}
	}
}

func (t *Tracker) clearTransientLocked(name string) {
	if timer, ok := t.losing[name]; ok {
		timer.Stop()
		delete(t.losing, name)
	}
	delete(t.connecting, name)
}

// computeLocked layers the transient states over the reduction.
func (t *Tracker) computeLocked() ConnectionState {
	if !t.canNotify {
		return Connected
	}
	snap := Snapshot{Transports: t.transports}
	state := Reduce(snap, t.policy)
	if state == Connected {
		if active, ok := snap.Active(); ok {
			if _, losing := t.losing[active.Name]; losing {
				return Disconnecting
			}
		}
		return Connected
	}
	if len(t.connecting) > 0 {
		return Connecting
	}
	return state
}

func (t *Tracker) evaluate() {
	t.evalMu.Lock()
	defer t.evalMu.Unlock()

	t.mu.Lock()
	if !t.ready {
		t.mu.Unlock()
		return
	}
	old := t.state
	next := t.computeLocked()
	t.state = next
	t.mu.Unlock()

	if old == next {
		return
	}
	t.log.Info("netstate: %s -> %s", old, next)
	t.notify(old, next)
}

func (t *Tracker) notify(old, next ConnectionState) {
	t.subMu.Lock()
	subs := make([]subscription, len(t.subs))
	copy(subs, t.subs)
	t.subMu.Unlock()

	for _, s := range subs {
		t.deliver(s, old, next)
	}
}

func (t *Tracker) deliver(s subscription, old, next ConnectionState) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("netstate: subscriber %s panicked: %v\n%s", s.handle, r, debug.Stack())
		}
	}()
	s.fn(old, next)
}
