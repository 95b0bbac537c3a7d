package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/netstate"
	"github.com/warpdl/warpq/pkg/wishlib"
)

const maxSleepCap = 60 * time.Second

var _ wishlib.JobBridge = (*Scheduler)(nil)

// Scheduler runs a Job under wishlib.JobConstraints.
type Scheduler struct {
	ctx  context.Context
	job  Job
	opts Options
	log  logger.Logger

	cmds chan command
	done chan jobResult

	mu             sync.Mutex
	gen            uint64
	scheduled      bool
	running        bool
	runningAttempt int
}

// New creates and starts a Scheduler. The scheduler goroutine exits when
// ctx is cancelled; a running job sees the same ctx.
func New(ctx context.Context, job Job, opts Options) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNopLogger()
	}
	s := &Scheduler{
		ctx:  ctx,
		job:  job,
		opts: opts,
		log:  l,
		cmds: make(chan command, 64),
		done: make(chan jobResult, 1),
	}
	go s.run()
	return s
}

// Schedule replaces the pending registration with one under c. A
// registration made while the job runs continues that run's backoff
// sequence; otherwise it may run as soon as c holds.
func (s *Scheduler) Schedule(c wishlib.JobConstraints) error {
	if c.Window != "" && !validWindow(c.Window) {
		return fmt.Errorf("%w: %q", ErrInvalidWindow, c.Window)
	}
	if c.Backoff < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("scheduler: negative backoff or max delay")
	}
	now := time.Now()

	s.mu.Lock()
	s.gen++
	s.scheduled = true
	attempt := 0
	if s.running {
		attempt = s.runningAttempt + 1
	}
	reg := newRegistration(s.gen, c, attempt, now)
	s.mu.Unlock()

	s.send(command{kind: cmdRegister, reg: reg})
	return nil
}

// Cancel drops the pending registration. A job already running is not
// interrupted.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.gen++
	s.scheduled = false
	s.mu.Unlock()
	s.send(command{kind: cmdCancel})
}

// IsScheduled reports whether a registration is pending.
func (s *Scheduler) IsScheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled
}

// Running reports whether the job is executing.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Poke makes a waiting registration re-check its constraints now. It is
// meant to be subscribed to connectivity changes.
func (s *Scheduler) Poke() {
	s.send(command{kind: cmdPoke})
}

// NetworkChanged adapts Poke to a netstate change subscription.
func (s *Scheduler) NetworkChanged(_, _ netstate.ConnectionState) {
	s.Poke()
}

func (s *Scheduler) send(cmd command) {
	select {
	case s.cmds <- cmd:
	case <-s.ctx.Done():
	}
}

func newRegistration(gen uint64, c wishlib.JobConstraints, attempt int, now time.Time) registration {
	reg := registration{
		gen:         gen,
		constraints: c,
		attempt:     attempt,
		notBefore:   now.Add(time.Duration(attempt) * c.Backoff),
	}
	if c.MaxDelay > 0 {
		reg.deadline = reg.notBefore.Add(c.MaxDelay)
	}
	return reg
}

// run owns the pending registration. It launches the job when the
// registration becomes runnable and handles completion.
func (s *Scheduler) run() {
	var (
		pending *registration
		timer   *time.Timer
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func(d time.Duration) <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if d < 0 {
			return nil
		}
		timer = time.NewTimer(d)
		return timer.C
	}

	var timerCh <-chan time.Time
	for {
		select {
		case <-s.ctx.Done():
			return

		case cmd := <-s.cmds:
			switch cmd.kind {
			case cmdRegister:
				r := cmd.reg
				pending = &r
			case cmdCancel:
				pending = nil
			}

		case res := <-s.done:
			pending = s.finish(res, pending)

		case <-timerCh:
		}

		if pending != nil && s.tryLaunch(*pending) {
			pending = nil
		}
		timerCh = resetTimer(s.nextWake(pending))
	}
}

// tryLaunch starts the job for reg if reg is still current, no job is
// running and reg is runnable.
func (s *Scheduler) tryLaunch(reg registration) bool {
	now := time.Now()

	s.mu.Lock()
	if reg.gen != s.gen || !s.scheduled {
		s.mu.Unlock()
		return true
	}
	if s.running {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	if now.Before(reg.notBefore) {
		return false
	}
	overdue := !reg.deadline.IsZero() && !now.Before(reg.deadline)
	if !overdue && !s.constraintsHold(reg.constraints, now) {
		return false
	}

	s.mu.Lock()
	if reg.gen != s.gen {
		s.mu.Unlock()
		return true
	}
	s.scheduled = false
	s.running = true
	s.runningAttempt = reg.attempt
	s.mu.Unlock()

	if overdue {
		s.log.Info("scheduler: deadline passed, running job (attempt %d)", reg.attempt)
	}
	go s.execute(reg)
	return true
}

func (s *Scheduler) execute(reg registration) {
	more := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("scheduler: job panicked: %v\n%s", r, debug.Stack())
				more = true
			}
		}()
		more = s.job(s.ctx)
	}()
	select {
	case s.done <- jobResult{more: more, reg: reg}:
	case <-s.ctx.Done():
	}
}

// finish records the end of a run. When work remains and nothing
// registered meanwhile, the job is registered again one backoff step later.
func (s *Scheduler) finish(res jobResult, pending *registration) *registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if !res.more || s.scheduled {
		return pending
	}
	s.gen++
	s.scheduled = true
	reg := newRegistration(s.gen, res.reg.constraints, res.reg.attempt+1, time.Now())
	s.log.Info("scheduler: more work remains, retrying in %s", reg.notBefore.Sub(time.Now()).Round(time.Second))
	return &reg
}

func (s *Scheduler) constraintsHold(c wishlib.JobConstraints, now time.Time) bool {
	if cond := s.opts.Conditions; cond != nil {
		if c.RequireNetwork && cond.State() != netstate.Connected {
			return false
		}
		if c.RequireUnmetered && cond.ActiveMetered() {
			return false
		}
	}
	if c.StorageNotLow && s.opts.StorageLowBytes > 0 {
		free, err := freeBytes(s.opts.StorageDir)
		if err != nil {
			s.log.Warning("scheduler: checking free space of %s: %v", s.opts.StorageDir, err)
		} else if free < s.opts.StorageLowBytes {
			return false
		}
	}
	if c.Window != "" {
		g := gronx.New()
		due, err := g.IsDue(c.Window, now)
		if err != nil || !due {
			return false
		}
	}
	return true
}

// validWindow accepts standard five-field cron expressions only.
func validWindow(expr string) bool {
	return len(strings.Fields(expr)) == 5 && gronx.IsValid(expr)
}

// nextWake returns how long to sleep before re-checking pending, or -1 to
// wait for a command only.
func (s *Scheduler) nextWake(pending *registration) time.Duration {
	if pending == nil {
		return -1
	}
	now := time.Now()
	d := s.opts.PollInterval
	if wait := pending.notBefore.Sub(now); wait > 0 && wait < d {
		d = wait
	}
	if !pending.deadline.IsZero() {
		if wait := pending.deadline.Sub(now); wait < d {
			d = wait
		}
	}
	if w := pending.constraints.Window; w != "" {
		if next, err := gronx.NextTickAfter(w, now, false); err == nil {
			if wait := next.Sub(now); wait < d {
				d = wait
			}
		}
	}
	if d > maxSleepCap {
		d = maxSleepCap
	}
	if d < 0 {
		d = 0
	}
	return d
}
