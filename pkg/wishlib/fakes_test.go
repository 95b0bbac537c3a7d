package wishlib

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/warpdl/warpq/pkg/netstate"
)

type fakeNetwork struct {
	mu     sync.Mutex
	state  netstate.ConnectionState
	policy netstate.Policy
}

func (f *fakeNetwork) State() netstate.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeNetwork) Policy() netstate.Policy {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.policy
}

func (f *fakeNetwork) set(s netstate.ConnectionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

type panickingNetwork struct{}

func (panickingNetwork) State() netstate.ConnectionState { panic("connectivity service gone") }
func (panickingNetwork) Policy() netstate.Policy         { return netstate.DefaultPolicy() }

type fakeBusy struct {
	mu   sync.Mutex
	busy bool
}

func (f *fakeBusy) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

type fakeJobs struct {
	mu        sync.Mutex
	scheduled bool
	schedules int
	cancels   int
	last      JobConstraints
	err       error
}

func (f *fakeJobs) Schedule(c JobConstraints) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules++
	f.last = c
	if f.err != nil {
		return f.err
	}
	f.scheduled = true
	return nil
}

func (f *fakeJobs) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	f.scheduled = false
}

func (f *fakeJobs) IsScheduled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scheduled
}

func (f *fakeJobs) counts() (schedules, cancels int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedules, f.cancels
}

type recordingConsumer struct {
	mu   sync.Mutex
	got  []Wish
	fail error
}

func (c *recordingConsumer) Start(w *Wish) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.got = append(c.got, *w)
	return nil
}

func (c *recordingConsumer) uris() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.got))
	for i, w := range c.got {
		out[i] = w.URI
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type staticResolver Handler

func (r staticResolver) Resolve(*Wish) Handler { return Handler(r) }

type harness struct {
	q        *Queue
	fs       *renameCountingFs
	store    *Store
	net      *fakeNetwork
	busy     *fakeBusy
	jobs     *fakeJobs
	consumer *recordingConsumer
	clock    *fakeClock
}

func newHarness(t *testing.T, mutate ...func(*QueueOpts)) *harness {
	t.Helper()
	h := &harness{
		fs:       &renameCountingFs{Fs: afero.NewMemMapFs()},
		net:      &fakeNetwork{state: netstate.Connected, policy: netstate.DefaultPolicy()},
		busy:     &fakeBusy{},
		jobs:     &fakeJobs{},
		consumer: &recordingConsumer{},
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.store = NewStore(h.fs, testQueuePath, nil)
	opts := &QueueOpts{
		Store:         h.store,
		Consumer:      h.consumer,
		Network:       h.net,
		Busy:          h.busy,
		Jobs:          h.jobs,
		DebounceDelay: time.Hour,
		Now:           h.clock.Now,
	}
	for _, m := range mutate {
		m(opts)
	}
	q, err := NewQueue(opts)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	h.q = q
	return h
}

func (h *harness) persisted(t *testing.T) []string {
	t.Helper()
	wishes, err := h.store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := make([]string, len(wishes))
	for i, w := range wishes {
		out[i] = w.URI
	}
	return out
}

func wishes(uris ...string) []*Wish {
	out := make([]*Wish, len(uris))
	for i, u := range uris {
		out[i] = &Wish{URI: u}
	}
	return out
}

func uris(ws []Wish) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.URI
	}
	return out
}

var errRejected = errors.New("launcher refused")
