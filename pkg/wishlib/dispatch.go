package wishlib

import (
	"context"

	"github.com/warpdl/warpq/pkg/netstate"
)

// NextPlease dispatches the first eligible wish to the consumer and reports
// whether one was handed off.
//
// Unless force is set, calls closer than the minimum check interval to the
// previous attempt are rejected without side effects. Only one dispatch
// decision runs at a time. When the network is not usable or a transfer is
// already running the queue is left untouched and the deferred job is kept
// scheduled. If every queued wish is held nothing happens.
func (q *Queue) NextPlease(force bool) bool {
	q.dispatchMu.Lock()
	defer q.dispatchMu.Unlock()

	now := q.now()
	if !force && !q.lastCheck.IsZero() && now.Sub(q.lastCheck) < q.minCheck {
		return false
	}
	q.lastCheck = now

	if !q.HasQueuedStuff() {
		return false
	}
	if state := q.connectionState(); state != netstate.Connected {
		q.log.Info("wishlib: network is %s, deferring dispatch", state)
		q.scheduleJob()
		return false
	}
	if q.isBusy() {
		q.scheduleJob()
		return false
	}

	q.mu.Lock()
	idx := q.firstEligibleLocked()
	if idx < 0 {
		q.mu.Unlock()
		return false
	}
	w := q.wishes[idx]
	q.wishes = append(q.wishes[:idx], q.wishes[idx+1:]...)
	q.mu.Unlock()

	if name, ok := q.hints.Get(w.URI); ok {
		w.FileName = name
	}

	// durable before the hand-off: a crash from here on loses at most this
	// one wish, never duplicates it
	q.saver.Cancel()
	q.persist()

	if err := q.consumer.Start(w); err != nil {
		q.log.Error("wishlib: consumer rejected %s: %v", w.URI, err)
		q.restore(idx, w)
		q.persist()
		q.scheduleJob()
		q.listeners.Notify()
		return false
	}
	q.log.Info("wishlib: dispatched %s", w.URI)

	if q.HasQueuedStuff() {
		q.scheduleJob()
	} else {
		q.cancelJob()
	}
	q.listeners.Notify()
	return true
}

// Trampoline is the deferred job entry point. It runs a rate-limited
// dispatch attempt and reports whether eligible work remains.
func (q *Queue) Trampoline(ctx context.Context) bool {
	if ctx.Err() != nil {
		return q.HasNonHeldStuff()
	}
	q.NextPlease(false)
	return q.HasNonHeldStuff()
}

// NetworkChanged is meant to be subscribed to the connectivity tracker; a
// transition to Connected triggers a dispatch attempt.
func (q *Queue) NetworkChanged(_, next netstate.ConnectionState) {
	if next != netstate.Connected {
		return
	}
	go q.NextPlease(false)
}

// restore puts w back at idx, or at the tail if the queue shrank meanwhile.
// A wish with the same URI added during the hand-off wins.
func (q *Queue) restore(idx int, w *Wish) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.indexLocked(w.URI) >= 0 {
		return
	}
	if idx > len(q.wishes) {
		idx = len(q.wishes)
	}
	q.wishes = append(q.wishes, nil)
	copy(q.wishes[idx+1:], q.wishes[idx:])
	q.wishes[idx] = w
}

// connectionState reads the network state, failing closed.
func (q *Queue) connectionState() (state netstate.ConnectionState) {
	if q.network == nil {
		return netstate.Unknown
	}
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("wishlib: reading network state: %v", r)
			state = netstate.Unknown
		}
	}()
	return q.network.State()
}

func (q *Queue) isBusy() bool {
	if q.busy == nil {
		return false
	}
	return q.busy.Busy()
}
