// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thread

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/kolkov/gopthread/internal/callsite"
	"github.com/kolkov/gopthread/internal/config"
	"github.com/kolkov/gopthread/internal/errno"
	"github.com/kolkov/gopthread/internal/handle"
	"github.com/kolkov/gopthread/internal/metrics"
	"github.com/kolkov/gopthread/internal/registry"
)

// Exit reasons, used as metric labels.
const (
	reasonReturned = "returned"
	reasonExited   = "exited"
	reasonCanceled = "canceled"
)

// StartRoutine is the entry point of a thread. Its return value becomes the
// exit value.
type StartRoutine func(arg any) any

// Attr holds creation attributes.
type Attr struct {
	// Detached creates the thread non-joinable.
	Detached bool
	// BindOSThread runs the thread on a dedicated OS thread for its whole
	// life. The OS thread is discarded when the thread ends.
	BindOSThread bool
	// Name labels the thread in diagnostics.
	Name string
}

// Manager owns thread records and implements the lifecycle operations.
//
// A Manager lives as long as the threads it created: their handles, self
// bindings and exit values are all kept in its registry. Reconfigure
// changes its settings without disturbing them.
type Manager struct {
	reg *registry.Registry[*Thread]
	s   atomic.Pointer[settings]

	adoptions atomic.Uint64

	mu      sync.Mutex
	closed  bool
	created int // created threads not yet reaped
	running int // created threads whose start routine has not finished
	idle    chan struct{}
}

// settings is the replaceable part of a Manager.
type settings struct {
	cfg     config.ThreadsConfig
	logger  log.Logger
	metrics *metrics.Metrics
}

func newSettings(cfg config.ThreadsConfig, logger log.Logger, m *metrics.Metrics) *settings {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &settings{cfg: cfg, logger: log.With(logger, "component", "thread"), metrics: m}
}

// NewManager creates a manager. A nil logger or metrics is replaced by a
// no-op one.
func NewManager(cfg config.ThreadsConfig, logger log.Logger, m *metrics.Metrics) *Manager {
	mgr := &Manager{reg: registry.New[*Thread]()}
	mgr.s.Store(newSettings(cfg, logger, m))
	return mgr
}

// Reconfigure replaces the configuration, logger and metrics of m. Threads
// already registered keep their handles and state. A manager that was shut
// down accepts new threads again.
//
// The live-threads gauge of the new metrics starts at the current number of
// registrations. Lowering MaxThreads below the number of created threads
// only refuses further creates.
func (m *Manager) Reconfigure(cfg config.ThreadsConfig, logger log.Logger, mt *metrics.Metrics) {
	s := newSettings(cfg, logger, mt)
	m.mu.Lock()
	m.closed = false
	m.s.Store(s)
	m.mu.Unlock()
	s.metrics.ThreadsLive.Set(float64(m.reg.Len()))
	level.Debug(s.logger).Log("msg", "thread manager reconfigured", "max_threads", cfg.MaxThreads, "live", m.reg.Len())
}

func (m *Manager) conf() *settings { return m.s.Load() }

// Create starts a new thread running start(arg).
//
// Parameters:
//   - attr: creation attributes; nil creates a joinable, unnamed thread
//   - start: the start routine; its return value becomes the exit value
//   - arg: passed to start unchanged
//
// Returns:
//   - the handle of the new thread, valid until it is joined or, when
//     detached, until it finishes
//   - EINVAL for a nil start routine, EAGAIN when the manager is shut down
//     or MaxThreads created threads are still unreaped
//
// Only threads started by Create count against MaxThreads; goroutines
// adopted by Self do not.
//
// Thread Safety: safe for concurrent calls.
func (m *Manager) Create(attr *Attr, start StartRoutine, arg any) (handle.Handle, error) {
	if start == nil {
		return handle.Nil, errors.Wrap(errno.EINVAL, "create: nil start routine")
	}
	var a Attr
	if attr != nil {
		a = *attr
	}
	if self := m.current(); self != nil {
		self.Poll()
	}

	t := newThread(m, a.Name, a.Detached, false)
	t.site = callsite.Capture(2)

	m.mu.Lock()
	s := m.conf()
	if m.closed {
		m.mu.Unlock()
		return handle.Nil, errors.Wrap(errno.EAGAIN, "create: manager is shut down")
	}
	if s.cfg.MaxThreads > 0 && m.created >= s.cfg.MaxThreads {
		m.mu.Unlock()
		return handle.Nil, errors.Wrapf(errno.EAGAIN, "create: thread limit %d reached", s.cfg.MaxThreads)
	}
	t.h, t.seq = m.reg.Register(t)
	m.created++
	m.running++
	m.mu.Unlock()

	s.metrics.ThreadsCreated.Inc()
	s.metrics.ThreadsLive.Inc()
	level.Debug(s.logger).Log("msg", "thread created", "thread", t.h, "seq", t.seq, "name", a.Name, "detached", a.Detached)

	go m.run(t, start, arg, a.BindOSThread || s.cfg.BindOSThreads)
	return t.h, nil
}

// run is the body of every created goroutine.
func (m *Manager) run(t *Thread, start StartRoutine, arg any, bind bool) {
	if bind {
		// Never unlocked: the OS thread exits with the goroutine, so its id
		// can be reused by the host, as with native threads.
		runtime.LockOSThread()
	}
	t.native.Store(nativeID())
	m.reg.Bind(t.h)
	t.setState(StateRunning)

	defer m.finish(t)

	v := start(arg)
	m.terminate(t, v, reasonReturned)
}

// terminate runs the cleanup stack and records the exit value. Called on
// t's own goroutine on every exit path.
func (m *Manager) terminate(t *Thread, v any, reason string) {
	t.exiting = true
	t.setState(StateExiting)
	t.runCleanup()

	t.mu.Lock()
	t.exitValue = v
	t.mu.Unlock()

	m.conf().metrics.ThreadsExited.WithLabelValues(reason).Inc()
	if t.adopted {
		// No run() frame to finish an adopted goroutine.
		m.finish(t)
	}
}

// finish publishes the thread's end: zombie for joinable threads, release
// for detached ones.
func (m *Manager) finish(t *Thread) {
	m.reg.Unbind()

	t.mu.Lock()
	// A bare runtime.Goexit or a panic skips terminate; the thread still
	// becomes a zombie with a nil exit value.
	t.exiting = true
	detached := t.detached
	if detached {
		t.state = StateDetachedReaped
	} else {
		t.state = StateJoinableZombie
	}
	close(t.done)
	t.mu.Unlock()

	if detached {
		m.release(t)
	}

	if !t.adopted {
		m.mu.Lock()
		m.running--
		if m.running == 0 && m.idle != nil {
			close(m.idle)
			m.idle = nil
		}
		m.mu.Unlock()
	}
	level.Debug(m.conf().logger).Log("msg", "thread finished", "thread", t.h, "detached", detached)
}

func (m *Manager) release(t *Thread) {
	if !m.reg.Release(t.h) {
		return
	}
	m.conf().metrics.ThreadsLive.Dec()
	if !t.adopted {
		m.mu.Lock()
		m.created--
		m.mu.Unlock()
	}
}

// Exit terminates the calling thread with value v after running its
// cleanup stack. It never returns.
func (m *Manager) Exit(v any) {
	t := m.Self()
	m.terminate(t, v, reasonExited)
	runtime.Goexit()
}

// Join waits for the thread h to finish, reaps it and returns its exit
// value.
//
// Parameters:
//   - h: a joinable thread other than the caller
//
// Returns:
//   - the exit value: the start routine's result, the value given to Exit,
//     or Canceled
//   - ESRCH for a handle that names no registered thread, EDEADLK when h
//     is the caller, EINVAL when h is detached or already being joined
//
// Join is a cancellation point for the caller. A canceled joiner leaves
// the target joinable.
//
// Thread Safety: safe for concurrent calls; at most one caller joins a
// given thread.
func (m *Manager) Join(h handle.Handle) (any, error) {
	self := m.Self()
	self.TestCancel()

	t, ok := m.reg.Lookup(h)
	if !ok {
		return nil, errors.Wrapf(errno.ESRCH, "join %s", h)
	}
	if t == self {
		return nil, errors.Wrapf(errno.EDEADLK, "join %s: joining self", h)
	}

	t.mu.Lock()
	if t.detached {
		t.mu.Unlock()
		return nil, errors.Wrapf(errno.EINVAL, "join %s: thread is detached", h)
	}
	if t.joining {
		t.mu.Unlock()
		return nil, errors.Wrapf(errno.EINVAL, "join %s: already being joined", h)
	}
	t.joining = true
	done := t.done
	t.mu.Unlock()

	began := time.Now()
	if self.Park(done, time.Time{}, CancelPoint) == Interrupted {
		t.mu.Lock()
		t.joining = false
		t.mu.Unlock()
		self.Unwind()
	}
	m.conf().metrics.JoinWaitSeconds.Observe(time.Since(began).Seconds())

	t.mu.Lock()
	v := t.exitValue
	t.state = StateJoined
	t.mu.Unlock()
	m.release(t)
	return v, nil
}

// Detach makes h non-joinable. A thread that already finished is reaped at
// once.
func (m *Manager) Detach(h handle.Handle) error {
	if self := m.current(); self != nil {
		self.Poll()
	}
	t, ok := m.reg.Lookup(h)
	if !ok {
		return errors.Wrapf(errno.ESRCH, "detach %s", h)
	}

	t.mu.Lock()
	if t.detached {
		t.mu.Unlock()
		return errors.Wrapf(errno.EINVAL, "detach %s: already detached", h)
	}
	if t.joining {
		t.mu.Unlock()
		return errors.Wrapf(errno.EINVAL, "detach %s: being joined", h)
	}
	t.detached = true
	zombie := t.state == StateJoinableZombie
	if zombie {
		t.state = StateDetachedReaped
	}
	t.mu.Unlock()

	if zombie {
		m.release(t)
	}
	return nil
}

// Cancel sends a cancellation request to h.
func (m *Manager) Cancel(h handle.Handle) error {
	t, ok := m.reg.Lookup(h)
	if !ok {
		return errors.Wrapf(errno.ESRCH, "cancel %s", h)
	}
	s := m.conf()
	s.metrics.CancelRequests.Inc()
	level.Debug(s.logger).Log("msg", "cancel requested", "thread", h, "state", t.CancelState(), "type", t.CancelType())
	t.requestCancel()

	if self := m.current(); self == t {
		self.Poll()
	}
	return nil
}

// Suspend asks h to park at its next safe point. A thread suspending itself
// parks immediately.
func (m *Manager) Suspend(h handle.Handle) error {
	s := m.conf()
	if !s.cfg.AllowSuspend {
		return errors.Wrap(errno.ENOTSUP, "suspend: disabled by configuration")
	}
	t, ok := m.reg.Lookup(h)
	if !ok {
		return errors.Wrapf(errno.ESRCH, "suspend %s", h)
	}
	level.Warn(s.logger).Log("msg", "suspending thread; a suspended lock holder deadlocks its waiters", "thread", h)
	t.requestSuspend()
	if m.current() == t {
		t.safePoint()
	}
	return nil
}

// Resume lets a suspended thread continue. Resuming a thread that is not
// suspended does nothing.
func (m *Manager) Resume(h handle.Handle) error {
	if !m.conf().cfg.AllowSuspend {
		return errors.Wrap(errno.ENOTSUP, "resume: disabled by configuration")
	}
	t, ok := m.reg.Lookup(h)
	if !ok {
		return errors.Wrapf(errno.ESRCH, "resume %s", h)
	}
	t.requestResume()
	return nil
}

// current returns the calling goroutine's thread without adopting it.
func (m *Manager) current() *Thread {
	h, ok := m.reg.Current()
	if !ok {
		return nil
	}
	t, _ := m.reg.Lookup(h)
	return t
}

// Self returns the calling thread, adopting the goroutine if it was not
// started by Create. It never fails.
func (m *Manager) Self() *Thread {
	if t := m.current(); t != nil {
		return t
	}
	return m.adopt()
}

func (m *Manager) adopt() *Thread {
	t := newThread(m, "", true, true)
	t.h, t.seq = m.reg.Register(t)
	t.native.Store(nativeID())
	t.setState(StateRunning)
	m.reg.Bind(t.h)

	s := m.conf()
	s.metrics.ThreadsAdopted.Inc()
	s.metrics.ThreadsLive.Inc()

	if n := m.adoptions.Inc(); s.cfg.ScavengeInterval > 0 && n%uint64(s.cfg.ScavengeInterval) == 0 {
		m.Scavenge()
	}
	return t
}

// Scavenge releases the records of adopted goroutines that have exited and
// returns how many were released.
func (m *Manager) Scavenge() int {
	n := 0
	for _, h := range m.reg.Scavenge() {
		t, ok := m.reg.Lookup(h)
		if !ok || !t.adopted {
			continue
		}
		m.release(t)
		n++
	}
	if n > 0 {
		level.Debug(m.conf().logger).Log("msg", "reclaimed exited adopted goroutines", "count", n)
	}
	return n
}

// Lookup resolves h to its thread record.
func (m *Manager) Lookup(h handle.Handle) (*Thread, bool) {
	return m.reg.Lookup(h)
}

// Validate reports whether h names a registered thread.
func (m *Manager) Validate(h handle.Handle) bool {
	return m.reg.Validate(h)
}

// Sequence returns the sequence number of h.
func (m *Manager) Sequence(h handle.Handle) (uint64, error) {
	seq, ok := m.reg.Sequence(h)
	if !ok {
		return 0, errors.Wrapf(errno.ESRCH, "sequence %s", h)
	}
	return seq, nil
}

// Threads returns a snapshot of every registered thread.
func (m *Manager) Threads() []Info {
	var out []Info
	m.reg.Range(func(_ handle.Handle, _ uint64, t *Thread) bool {
		out = append(out, t.Info())
		return true
	})
	return out
}

// Shutdown stops Create from accepting new threads and waits until every
// created thread has finished or ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	if m.running == 0 {
		m.mu.Unlock()
		return nil
	}
	if m.idle == nil {
		m.idle = make(chan struct{})
	}
	idle := m.idle
	m.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "shutdown: threads still running")
	}
}
