package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/internal/history"
	"github.com/warpdl/warpq/pkg/netstate"
	"github.com/warpdl/warpq/pkg/wishcli"
	"github.com/warpdl/warpq/pkg/wishlib"
)

const testSecret = "test-secret"

type watchSource struct {
	mu   sync.Mutex
	snap netstate.Snapshot
	sig  netstate.Signals
}

func (s *watchSource) Snapshot() (netstate.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

func (s *watchSource) Watch(_ context.Context, sig netstate.Signals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sig = sig
	return nil
}

type recordingConsumer struct {
	mu      sync.Mutex
	started []string
}

func (c *recordingConsumer) Start(w *wishlib.Wish) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, w.URI)
	return nil
}

func (c *recordingConsumer) uris() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.started...)
}

type fakeHistory struct {
	entries []history.Entry
	err     error
}

func (h *fakeHistory) List(_ context.Context, limit int) ([]history.Entry, error) {
	if h.err != nil {
		return nil, h.err
	}
	if limit > 0 && limit < len(h.entries) {
		return h.entries[:limit], nil
	}
	return h.entries, nil
}

type testEnv struct {
	srv      *Server
	http     *httptest.Server
	queue    *wishlib.Queue
	tracker  *netstate.Tracker
	source   *watchSource
	consumer *recordingConsumer
	saved    []netstate.Policy
	client   *wishcli.Client
}

func newTestEnv(t *testing.T, hist History) *testEnv {
	t.Helper()
	env := &testEnv{
		consumer: &recordingConsumer{},
		source: &watchSource{snap: netstate.Snapshot{Transports: []netstate.Transport{
			{Name: "eth0", Default: true},
		}}},
	}
	env.tracker = netstate.NewTracker(env.source, nil)
	if err := env.tracker.Init(context.Background(), netstate.DefaultPolicy()); err != nil {
		t.Fatalf("tracker Init: %v", err)
	}
	t.Cleanup(env.tracker.Close)

	q, err := wishlib.NewQueue(&wishlib.QueueOpts{
		Store:         wishlib.NewStore(afero.NewMemMapFs(), "/queue.txt", nil),
		Consumer:      env.consumer,
		Network:       env.tracker,
		DebounceDelay: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	env.queue = q

	opts := Options{
		Queue:   q,
		Network: env.tracker,
		Secret:  testSecret,
		Version: "1.2.3",
		Commit:  "abc123",
		SavePolicy: func(p netstate.Policy) error {
			env.saved = append(env.saved, p)
			return nil
		},
	}
	if hist != nil {
		opts.History = hist
	}
	env.srv, err = New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env.http = httptest.NewServer(env.srv.Handler())
	t.Cleanup(func() {
		env.http.Close()
		env.srv.Close()
	})

	env.client, err = wishcli.NewClient(env.http.URL, testSecret)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { env.client.Close() })
	return env
}

func wantCode(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code %d, got nil", code)
	}
	got, ok := wishcli.ErrorCode(err)
	if !ok || int(got) != code {
		t.Fatalf("expected error code %d, got %v", code, err)
	}
}

func TestNewRequiresQueue(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrMissingQueue) {
		t.Fatalf("err = %v, want ErrMissingQueue", err)
	}
}

func TestSystemGetVersion(t *testing.T) {
	env := newTestEnv(t, nil)
	v, err := env.client.GetDaemonVersion()
	if err != nil {
		t.Fatalf("GetDaemonVersion: %v", err)
	}
	if v.Version != "1.2.3" || v.Commit != "abc123" {
		t.Fatalf("unexpected version: %+v", v)
	}
}

func TestUnauthorizedClient(t *testing.T) {
	env := newTestEnv(t, nil)
	c, err := wishcli.NewClient(env.http.URL, "wrong")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()
	if _, err := c.List(); err == nil {
		t.Fatal("expected error with wrong secret")
	}
}

func TestWishAddListRemove(t *testing.T) {
	env := newTestEnv(t, nil)

	n, err := env.client.Add(
		common.WishParams{URI: "https://a.example/1", Title: "one"},
		common.WishParams{URI: "https://a.example/2", Handler: "stream"},
		common.WishParams{URI: "https://a.example/1"},
		common.WishParams{URI: "content://local/3"},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if n != 2 {
		t.Fatalf("added = %d, want 2", n)
	}

	wishes, err := env.client.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(wishes) != 2 || wishes[0].Title != "one" || wishes[1].Handler.Kind != wishlib.HandlerStream {
		t.Fatalf("unexpected list: %+v", wishes)
	}

	removed, err := env.client.Remove("https://a.example/2", "https://a.example/missing")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed != 1 || env.queue.Len() != 1 {
		t.Fatalf("removed = %d, len = %d", removed, env.queue.Len())
	}

	_, err = env.client.Remove("https://a.example/missing")
	wantCode(t, err, int(codeWishNotFound))
}

func TestWishAddInvalidParams(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.client.Add()
	wantCode(t, err, int(codeInvalidParams))

	_, err = env.client.Add(common.WishParams{URI: "https://a.example/x", Handler: "teleport"})
	wantCode(t, err, int(codeInvalidParams))

	_, err = env.client.Add(common.WishParams{URI: "  "})
	wantCode(t, err, int(codeInvalidParams))
}

func TestWishMoveUpToggleHeldSetFileName(t *testing.T) {
	env := newTestEnv(t, nil)
	env.queue.Add(
		&wishlib.Wish{URI: "https://a.example/1"},
		&wishlib.Wish{URI: "https://a.example/2"},
		&wishlib.Wish{URI: "https://a.example/3"},
	)

	ok, err := env.client.MoveUp(2, 5)
	if err != nil || !ok {
		t.Fatalf("MoveUp = %v, %v", ok, err)
	}
	ok, err = env.client.MoveUp(0, 1)
	if err != nil || ok {
		t.Fatalf("MoveUp(0) = %v, %v; want false, nil", ok, err)
	}

	if err := env.client.ToggleHeld(0); err != nil {
		t.Fatalf("ToggleHeld: %v", err)
	}
	wantCode(t, env.client.ToggleHeld(7), int(codeWishNotFound))

	if err := env.client.SetFileName("https://a.example/2", "two.bin"); err != nil {
		t.Fatalf("SetFileName: %v", err)
	}
	wantCode(t, env.client.SetFileName("", "x"), int(codeInvalidParams))

	snap := env.queue.Snapshot()
	if snap[0].URI != "https://a.example/3" || !snap[0].Held {
		t.Fatalf("unexpected head: %+v", snap[0])
	}
	if snap[2].URI != "https://a.example/2" || snap[2].FileName != "two.bin" {
		t.Fatalf("unexpected tail: %+v", snap[2])
	}
}

func TestQueueNextAndClear(t *testing.T) {
	env := newTestEnv(t, nil)

	dispatched, err := env.client.Next()
	if err != nil {
		t.Fatalf("Next on empty queue: %v", err)
	}
	if dispatched {
		t.Fatal("empty queue should not dispatch")
	}

	env.queue.Add(
		&wishlib.Wish{URI: "https://a.example/held", Held: true},
		&wishlib.Wish{URI: "https://a.example/go"},
	)
	dispatched, err = env.client.Next()
	if err != nil || !dispatched {
		t.Fatalf("Next = %v, %v", dispatched, err)
	}
	if got := env.consumer.uris(); len(got) != 1 || got[0] != "https://a.example/go" {
		t.Fatalf("consumer got %v", got)
	}

	if err := env.client.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if env.queue.Len() != 0 {
		t.Fatalf("queue not cleared: %d", env.queue.Len())
	}
}

func TestNetStateAndSetPolicy(t *testing.T) {
	env := newTestEnv(t, nil)
	st, err := env.client.NetState()
	if err != nil {
		t.Fatalf("NetState: %v", err)
	}
	if st.State != netstate.Connected.String() || !st.CanNotify || len(st.Transports) != 1 {
		t.Fatalf("unexpected state: %+v", st)
	}

	never := "never"
	allow := false
	st, err = env.client.SetPolicy(common.SetPolicyParams{VPN: &never, AllowMetered: &allow})
	if err != nil {
		t.Fatalf("SetPolicy: %v", err)
	}
	if st.Policy.VPN != netstate.VPNNever || st.Policy.AllowMetered {
		t.Fatalf("policy not applied: %+v", st.Policy)
	}
	if !st.Policy.VPNRequiresCarrier {
		t.Fatal("unset fields must keep their value")
	}
	if len(env.saved) != 1 || env.saved[0] != env.tracker.Policy() {
		t.Fatalf("policy not persisted: %+v", env.saved)
	}

	bad := "sometimes"
	_, err = env.client.SetPolicy(common.SetPolicyParams{VPN: &bad})
	wantCode(t, err, int(codeInvalidParams))
}

func TestHistoryList(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.client.History(10)
	wantCode(t, err, int(codeUnavailable))

	hist := &fakeHistory{entries: []history.Entry{{ID: 2, URI: "https://a.example/2"}, {ID: 1, URI: "https://a.example/1"}}}
	env = newTestEnv(t, hist)
	entries, err := env.client.History(1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != 2 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	_, err = env.client.History(-1)
	wantCode(t, err, int(codeInvalidParams))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketPush(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	notes := make(chan wishcli.Notification, 16)
	done := make(chan error, 1)
	go func() {
		done <- env.client.Watch(ctx, func(n wishcli.Notification) { notes <- n })
	}()
	waitFor(t, "websocket registration", func() bool { return env.srv.Notifier().Count() == 1 })

	env.queue.Add(&wishlib.Wish{URI: "https://a.example/pushed"})
	n := <-notes
	if n.Method != common.NotifyQueueChanged {
		t.Fatalf("method = %q", n.Method)
	}
	var qc common.QueueChanged
	if err := json.Unmarshal(n.Params, &qc); err != nil || qc.Length != 1 {
		t.Fatalf("queue.changed params = %s (%v)", n.Params, err)
	}

	env.tracker.OnSnapshot(netstate.Snapshot{})
	n = <-notes
	if n.Method != common.NotifyNetChanged {
		t.Fatalf("method = %q", n.Method)
	}
	var nc common.NetChanged
	if err := json.Unmarshal(n.Params, &nc); err != nil {
		t.Fatalf("net.changed params: %v", err)
	}
	if nc.Old != netstate.Connected.String() || nc.New != netstate.Disconnected.String() {
		t.Fatalf("unexpected transition: %+v", nc)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.Close()
	env.srv.Close()
	env.queue.Add(&wishlib.Wish{URI: "https://a.example/after-close"})
}
