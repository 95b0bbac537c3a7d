package wishlib

import (
	"sync"
	"time"

	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/netstate"
)

const (
	// DefaultDebounceDelay is the quiet period after the last mutation
	// before the queue is written to disk.
	DefaultDebounceDelay = 5 * time.Second
	// MinCheckInterval is the minimum spacing of unforced dispatch attempts.
	MinCheckInterval = time.Second
)

// NetworkMonitor exposes the reduced connectivity state and the user policy
// it was reduced with.
type NetworkMonitor interface {
	State() netstate.ConnectionState
	Policy() netstate.Policy
}

// BusySignal reports whether a transfer is already in progress.
type BusySignal interface {
	Busy() bool
}

// Consumer processes dispatched wishes. Start must not block on the
// transfer itself.
type Consumer interface {
	Start(w *Wish) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(w *Wish) error

// Start calls f.
func (f ConsumerFunc) Start(w *Wish) error { return f(w) }

// Resolver picks a handling directive for a wish that arrives without one.
type Resolver interface {
	Resolve(w *Wish) Handler
}

// JobConstraints describe when a deferred dispatch job may run.
type JobConstraints struct {
	// RequireNetwork holds the job until the network is usable.
	RequireNetwork bool
	// RequireUnmetered holds the job while the active network is metered.
	RequireUnmetered bool
	// StorageNotLow holds the job while free storage is below threshold.
	StorageNotLow bool
	// MaxDelay runs the job regardless of constraints once it has been
	// pending this long. Zero means no deadline.
	MaxDelay time.Duration
	// Backoff is the linear backoff step between attempts.
	Backoff time.Duration
	// Window is an optional cron expression; the job only runs while due.
	Window string
}

// JobBridge registers a deferred job that calls back into the dispatcher.
// It does not suppress duplicate registrations; the queue checks
// IsScheduled first.
type JobBridge interface {
	Schedule(c JobConstraints) error
	Cancel()
	IsScheduled() bool
}

// QueueOpts configures a Queue. Store and Consumer are required.
type QueueOpts struct {
	Store    *Store
	Consumer Consumer
	Network  NetworkMonitor
	Busy     BusySignal
	Jobs     JobBridge
	Resolver Resolver
	// JobConstraints is the template for deferred job registrations; the
	// network requirements are filled in from the current policy.
	JobConstraints JobConstraints
	Logger         logger.Logger
	// DebounceDelay defaults to DefaultDebounceDelay.
	DebounceDelay time.Duration
	// MinCheckInterval defaults to MinCheckInterval.
	MinCheckInterval time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Queue is the ordered, duplicate-suppressing list of pending wishes.
// All access to the sequence happens under mu; the dispatcher additionally
// serializes its decision under dispatchMu.
type Queue struct {
	mu     sync.Mutex
	wishes []*Wish

	store       *Store
	consumer    Consumer
	network     NetworkMonitor
	busy        BusySignal
	jobs        JobBridge
	resolver    Resolver
	constraints JobConstraints
	log         logger.Logger
	now         func() time.Time

	hints     *FileNameHints
	listeners *ListenerHub
	saver     *debouncer
	persistMu sync.Mutex

	dispatchMu sync.Mutex
	lastCheck  time.Time
	minCheck   time.Duration
}

// NewQueue creates an empty queue. Call Load to restore persisted wishes.
func NewQueue(opts *QueueOpts) (*Queue, error) {
	if opts == nil || opts.Store == nil {
		return nil, ErrMissingStore
	}
	if opts.Consumer == nil {
		return nil, ErrMissingConsumer
	}
	q := &Queue{
		store:       opts.Store,
		consumer:    opts.Consumer,
		network:     opts.Network,
		busy:        opts.Busy,
		jobs:        opts.Jobs,
		resolver:    opts.Resolver,
		constraints: opts.JobConstraints,
		log:         opts.Logger,
		now:         opts.Now,
		minCheck:    opts.MinCheckInterval,
		hints:       NewFileNameHints(),
	}
	if q.log == nil {
		q.log = logger.NewNopLogger()
	}
	if q.now == nil {
		q.now = time.Now
	}
	if q.minCheck <= 0 {
		q.minCheck = MinCheckInterval
	}
	delay := opts.DebounceDelay
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	q.listeners = NewListenerHub(q.log)
	q.saver = newDebouncer(delay, func() { q.persist() })
	return q, nil
}

// Load replaces the in-memory queue with the persisted one and schedules
// the deferred job if anything is pending.
func (q *Queue) Load() error {
	wishes, err := q.store.Load()
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.wishes = wishes
	n := len(q.wishes)
	q.mu.Unlock()

	q.log.Info("wishlib: loaded %d wishes from %s", n, q.store.Path())
	if n > 0 {
		q.scheduleJob()
	}
	q.listeners.Notify()
	return nil
}

// Add enqueues wishes at the tail and returns how many were accepted.
// Wishes without a URI, with a content: URI or a URI starting with '-',
// whose record would not fit the store, or whose URI is already queued are
// rejected. Accepted wishes are copied; the caller keeps
// ownership of its values.
func (q *Queue) Add(wishes ...*Wish) int {
	ts := time.UnixMilli(q.now().UnixMilli())
	candidates := make([]*Wish, 0, len(wishes))
	for _, w := range wishes {
		if !acceptable(w) {
			continue
		}
		cp := *w
		cp.Timestamp = ts
		if cp.Handler.IsZero() && q.resolver != nil {
			cp.Handler = q.resolver.Resolve(&cp)
		}
		if n := len(encodeRecord(&cp)); n > maxRecordSize {
			q.log.Warning("wishlib: rejecting %.64s...: record of %d bytes exceeds %d", cp.URI, n, maxRecordSize)
			continue
		}
		candidates = append(candidates, &cp)
	}

	var accepted int
	q.mu.Lock()
	for _, w := range candidates {
		if q.indexLocked(w.URI) >= 0 {
			continue
		}
		q.wishes = append(q.wishes, w)
		accepted++
	}
	q.mu.Unlock()

	if accepted == 0 {
		return 0
	}
	q.saver.Trigger()
	q.scheduleJob()
	q.listeners.Notify()
	return accepted
}

// Remove deletes the wish with the given URI.
func (q *Queue) Remove(uri string) bool {
	return q.RemoveMany(uri) == 1
}

// RemoveMany deletes every wish whose URI is listed and returns how many
// were removed.
func (q *Queue) RemoveMany(uris ...string) int {
	var removed []string
	q.mu.Lock()
	for _, uri := range uris {
		if i := q.indexLocked(uri); i >= 0 {
			q.wishes = append(q.wishes[:i], q.wishes[i+1:]...)
			removed = append(removed, uri)
		}
	}
	empty := len(q.wishes) == 0
	q.mu.Unlock()

	if len(removed) == 0 {
		return 0
	}
	for _, uri := range removed {
		q.hints.Delete(uri)
	}
	q.saver.Trigger()
	if empty {
		q.cancelJob()
	}
	q.listeners.Notify()
	return len(removed)
}

// MoveUp swaps the wish at position with its predecessor.
func (q *Queue) MoveUp(position int) bool {
	return q.MoveUpSteps(position, 1)
}

// MoveUpSteps moves the wish at position up by steps places, stopping at
// the head. It is a no-op for position < 1, an out of range position or
// steps < 1.
func (q *Queue) MoveUpSteps(position, steps int) bool {
	if position < 1 || steps < 1 {
		return false
	}
	q.mu.Lock()
	if position >= len(q.wishes) {
		q.mu.Unlock()
		return false
	}
	for i := position; i > 0 && steps > 0; i, steps = i-1, steps-1 {
		q.wishes[i-1], q.wishes[i] = q.wishes[i], q.wishes[i-1]
	}
	q.mu.Unlock()

	q.saver.Trigger()
	q.listeners.Notify()
	return true
}

// ToggleHeld flips the held flag of the wish at position.
func (q *Queue) ToggleHeld(position int) bool {
	q.mu.Lock()
	if position < 0 || position >= len(q.wishes) {
		q.mu.Unlock()
		return false
	}
	w := q.wishes[position]
	w.Held = !w.Held
	released := !w.Held
	q.mu.Unlock()

	q.saver.Trigger()
	if released {
		q.scheduleJob()
	}
	q.listeners.Notify()
	return true
}

// SetHeld sets the held flag of the wish with the given URI.
func (q *Queue) SetHeld(uri string, held bool) bool {
	q.mu.Lock()
	i := q.indexLocked(uri)
	if i < 0 {
		q.mu.Unlock()
		return false
	}
	changed := q.wishes[i].Held != held
	q.wishes[i].Held = held
	q.mu.Unlock()

	if changed {
		q.saver.Trigger()
		if !held {
			q.scheduleJob()
		}
		q.listeners.Notify()
	}
	return true
}

// SetFileName records the local file name learned for uri by a consumer.
// The hint survives until the process exits so a re-queued wish resumes
// into the same file; a still queued wish is updated in place.
func (q *Queue) SetFileName(uri, fileName string) {
	q.hints.Set(uri, fileName)

	q.mu.Lock()
	i := q.indexLocked(uri)
	changed := i >= 0 && q.wishes[i].FileName != fileName
	if changed {
		q.wishes[i].FileName = fileName
	}
	q.mu.Unlock()

	if changed {
		q.saver.Trigger()
		q.listeners.Notify()
	}
}

// FileNameHint returns the file name hint recorded for uri.
func (q *Queue) FileNameHint(uri string) (string, bool) {
	return q.hints.Get(uri)
}

// Clear empties the queue, drops all hints, persists and cancels the
// deferred job.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.wishes = nil
	q.mu.Unlock()

	q.hints.Clear()
	q.saver.Cancel()
	q.persist()
	q.cancelJob()
	q.listeners.Notify()
}

// HasQueuedStuff reports whether the queue holds any wish.
func (q *Queue) HasQueuedStuff() bool {
	return q.Len() > 0
}

// HasNonHeldStuff reports whether any queued wish is eligible for dispatch.
func (q *Queue) HasNonHeldStuff() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.firstEligibleLocked() >= 0
}

// Len returns the number of queued wishes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.wishes)
}

// Snapshot returns a copy of the queue in dispatch order.
func (q *Queue) Snapshot() []Wish {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Wish, len(q.wishes))
	for i, w := range q.wishes {
		out[i] = *w
	}
	return out
}

// Subscribe registers l for mutation notifications.
func (q *Queue) Subscribe(l Listener) string {
	return q.listeners.Subscribe(l)
}

// Unsubscribe removes a listener registered with Subscribe.
func (q *Queue) Unsubscribe(handle string) bool {
	return q.listeners.Unsubscribe(handle)
}

// Flush writes the queue synchronously, superseding a pending debounced
// write.
func (q *Queue) Flush() error {
	q.saver.Cancel()
	return q.persist()
}

// Close flushes the queue and stops accepting debounced writes.
func (q *Queue) Close() error {
	q.saver.Stop()
	return q.persist()
}

// persist writes a snapshot of the queue. persistMu orders concurrent
// writers so the last writer always stores the newest snapshot.
func (q *Queue) persist() error {
	q.persistMu.Lock()
	defer q.persistMu.Unlock()

	q.mu.Lock()
	snap := make([]*Wish, len(q.wishes))
	for i, w := range q.wishes {
		cp := *w
		snap[i] = &cp
	}
	q.mu.Unlock()

	if err := q.store.Save(snap); err != nil {
		q.log.Error("wishlib: failed to persist queue: %v", err)
		return err
	}
	return nil
}

func (q *Queue) indexLocked(uri string) int {
	for i, w := range q.wishes {
		if w.URI == uri {
			return i
		}
	}
	return -1
}

func (q *Queue) firstEligibleLocked() int {
	for i, w := range q.wishes {
		if !w.Held {
			return i
		}
	}
	return -1
}

// scheduleJob registers the deferred job unless one is already pending.
func (q *Queue) scheduleJob() {
	if q.jobs == nil || q.jobs.IsScheduled() {
		return
	}
	c := q.constraints
	c.RequireNetwork = true
	if q.network != nil {
		c.RequireUnmetered = !q.network.Policy().AllowMetered
	}
	if err := q.jobs.Schedule(c); err != nil {
		q.log.Warning("wishlib: failed to schedule deferred job: %v", err)
	}
}

func (q *Queue) cancelJob() {
	if q.jobs == nil {
		return
	}
	q.jobs.Cancel()
}
