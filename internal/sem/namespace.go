// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sem

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/kolkov/gopthread/internal/config"
	"github.com/kolkov/gopthread/internal/errno"
	"github.com/kolkov/gopthread/internal/metrics"
	"github.com/kolkov/gopthread/internal/thread"
)

// Namespace opens named semaphores on a Kernel backend. Opens, closes and
// unlinks are serialized.
type Namespace struct {
	cfg     config.SemaphoreConfig
	kernel  Kernel
	logger  log.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	open    int
	retired bool
}

// NewNamespace creates a namespace on the backend selected by cfg. The
// memory backend is shared by every namespace of the process.
func NewNamespace(cfg config.SemaphoreConfig, logger log.Logger, m *metrics.Metrics) (*Namespace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	var k Kernel
	switch cfg.Backend {
	case config.BackendRedis:
		var err error
		if k, err = NewRedisKernel(cfg.Redis, logger); err != nil {
			return nil, err
		}
	default:
		k = sharedMemory
	}
	return NewNamespaceWithKernel(cfg, k, logger, m), nil
}

// NewNamespaceWithKernel creates a namespace on k.
func NewNamespaceWithKernel(cfg config.SemaphoreConfig, k Kernel, logger log.Logger, m *metrics.Metrics) *Namespace {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Namespace{
		cfg:     cfg,
		kernel:  k,
		logger:  log.With(logger, "component", "semaphore", "backend", k.Backend()),
		metrics: m,
	}
}

// Backend names the kernel backend.
func (ns *Namespace) Backend() string { return ns.kernel.Backend() }

// Mangle applies the namespace's mangling rule to raw.
func (ns *Namespace) Mangle(raw string) (string, error) {
	return Mangle(raw, ns.cfg.GlobalNamespace)
}

// Open opens the semaphore called raw.
//
// With OCreate the object is created with value if it does not exist;
// otherwise mode and value are ignored and a new reference to the existing
// object is returned. OCreate|OExcl fails with EEXIST on an existing
// object. Without OCreate a missing object fails with ENOENT. A failed
// open creates nothing.
func (ns *Namespace) Open(raw string, oflag OpenFlag, mode uint32, value uint32) (*Named, error) {
	thread.Current().Poll()
	name, err := ns.Mangle(raw)
	if err != nil {
		return nil, err
	}
	if value > SemValueMax {
		return nil, errors.Wrapf(errno.EINVAL, "semaphore open: value %d exceeds %d", value, SemValueMax)
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()
	obj, err := ns.kernel.Open(context.Background(), name, oflag, mode, value)
	if err != nil {
		ns.logFailure("open", name, err)
		return nil, err
	}
	ns.open++
	ns.metrics.SemaphoresOpen.WithLabelValues(ns.kernel.Backend()).Inc()
	level.Debug(ns.logger).Log("msg", "semaphore opened", "name", name, "flags", oflag)
	return &Named{ns: ns, name: name, obj: obj}, nil
}

// Unlink removes raw from the namespace. Open handles keep working; later
// opens no longer find it.
func (ns *Namespace) Unlink(raw string) error {
	name, err := ns.Mangle(raw)
	if err != nil {
		return err
	}
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if err := ns.kernel.Unlink(context.Background(), name); err != nil {
		ns.logFailure("unlink", name, err)
		return err
	}
	level.Debug(ns.logger).Log("msg", "semaphore unlinked", "name", name)
	return nil
}

func (ns *Namespace) release(n *Named) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if err := n.obj.Release(context.Background()); err != nil {
		ns.logFailure("close", n.name, err)
		return err
	}
	ns.open--
	ns.metrics.SemaphoresOpen.WithLabelValues(ns.kernel.Backend()).Dec()
	level.Debug(ns.logger).Log("msg", "semaphore closed", "name", n.name)
	if ns.retired && ns.open == 0 {
		if err := ns.kernel.Close(); err != nil {
			level.Warn(ns.logger).Log("msg", "closing retired namespace", "err", err)
		}
	}
	return nil
}

// logFailure reports backend errors; status codes are the caller's business.
func (ns *Namespace) logFailure(op, name string, err error) {
	var code errno.Errno
	if errors.As(err, &code) {
		return
	}
	level.Error(ns.logger).Log("msg", "semaphore backend failure", "op", op, "name", name, "err", err)
}

// OpenHandles returns the number of handles opened and not yet closed.
func (ns *Namespace) OpenHandles() int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.open
}

// Close releases the backend connection. Handles must be closed first.
func (ns *Namespace) Close() error {
	return ns.kernel.Close()
}

// Retire closes the namespace once its last handle is closed, or at once
// when none is open.
func (ns *Namespace) Retire() error {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.retired = true
	if ns.open > 0 {
		return nil
	}
	return ns.kernel.Close()
}

// Named is one open reference on a named semaphore.
type Named struct {
	ns     *Namespace
	name   string
	obj    Object
	closed atomic.Bool
}

// Name returns the mangled name.
func (n *Named) Name() string { return n.name }

func (n *Named) check() error {
	if n == nil || n.closed.Load() {
		return errors.Wrap(errno.EINVAL, "semaphore is closed")
	}
	return nil
}

// Close drops this reference. The object is destroyed with the last one.
// When the backend fails to release it the handle stays open.
func (n *Named) Close() error {
	if n == nil || n.closed.Swap(true) {
		return errors.Wrap(errno.EINVAL, "semaphore is closed")
	}
	if err := n.ns.release(n); err != nil {
		n.closed.Store(false)
		return err
	}
	return nil
}

// Wait decrements the semaphore, blocking while it is zero.
func (n *Named) Wait() error {
	return n.wait(time.Time{})
}

// TimedWait is Wait with an absolute deadline; it fails with ETIMEDOUT.
func (n *Named) TimedWait(abstime time.Time) error {
	if abstime.IsZero() {
		return errors.Wrap(errno.EINVAL, "semaphore timedwait: zero deadline")
	}
	return n.wait(abstime)
}

func (n *Named) wait(deadline time.Time) error {
	self := thread.Current()
	self.TestCancel()
	if err := n.check(); err != nil {
		return err
	}
	err := n.obj.Wait(context.Background(), self, deadline)
	if errors.Is(err, errno.ETIMEDOUT) {
		n.ns.metrics.SemaphoreTimeout.Inc()
	}
	return err
}

// TryWait decrements the semaphore if positive and fails with EAGAIN
// otherwise.
func (n *Named) TryWait() error {
	thread.Current().Poll()
	if err := n.check(); err != nil {
		return err
	}
	return n.obj.TryWait(context.Background())
}

// Post increments the semaphore.
func (n *Named) Post() error {
	if err := n.check(); err != nil {
		return err
	}
	return n.obj.Post(context.Background())
}

// GetValue returns a snapshot of the value.
func (n *Named) GetValue() (int, error) {
	if err := n.check(); err != nil {
		return 0, err
	}
	return n.obj.Value(context.Background())
}
