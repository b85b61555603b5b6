// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package psync

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/kolkov/gopthread/internal/errno"
	"github.com/kolkov/gopthread/internal/thread"
	"github.com/kolkov/gopthread/internal/waitq"
)

// maxRecursion bounds the lock count of a recursive mutex.
const maxRecursion = math.MaxInt32

// Mutex is a POSIX mutex.
type Mutex struct {
	mu    sync.Mutex
	state objState
	kind  Kind
	owner *thread.Thread
	count int
	q     waitq.Queue
}

// lockRequest is the payload of a queued locker. depth is the lock count
// restored on hand-off (greater than one after a recursive cond wait).
type lockRequest struct {
	t     *thread.Thread
	depth int
}

// NewMutex returns an initialized mutex.
func NewMutex(attr *MutexAttr) (*Mutex, error) {
	m := &Mutex{}
	if err := m.Init(attr); err != nil {
		return nil, err
	}
	return m, nil
}

// Init initializes m with attr (nil for defaults). Reinitializing a mutex
// that is locked or has waiters fails with EBUSY.
func (m *Mutex) Init(attr *MutexAttr) error {
	a := MutexAttr{}
	if attr != nil {
		a = *attr
	}
	if err := a.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == objLive && (m.owner != nil || m.q.Len() > 0) {
		return errors.Wrap(errno.EBUSY, "mutex init: mutex in use")
	}
	m.state = objLive
	m.kind = a.Kind
	m.owner = nil
	m.count = 0
	return nil
}

// Kind returns the kind m was initialized with.
func (m *Mutex) Kind() Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind
}

// Lock acquires m, blocking while another thread holds it.
func (m *Mutex) Lock() error {
	self := thread.Current()
	self.Poll()
	return m.lock(self, 1, true)
}

// lock acquires m for self with the given depth. Interruptible waits give
// way to asynchronous cancellation.
func (m *Mutex) lock(self *thread.Thread, depth int, interruptible bool) error {
	m.mu.Lock()
	if err := m.state.check("mutex"); err != nil {
		m.mu.Unlock()
		return err
	}
	switch {
	case m.owner == nil:
		m.owner, m.count = self, depth
		m.mu.Unlock()
		return nil
	case m.owner == self && m.kind == KindRecursive:
		defer m.mu.Unlock()
		if m.count > maxRecursion-depth {
			return errors.Wrap(errno.EAGAIN, "mutex lock: recursion limit")
		}
		m.count += depth
		return nil
	case m.owner == self && m.kind == KindErrorCheck:
		m.mu.Unlock()
		return errors.Wrap(errno.EDEADLK, "mutex lock: already owned by caller")
	}
	// A normal mutex relocked by its owner waits here forever.
	w := m.q.Enqueue(&lockRequest{t: self, depth: depth})
	m.mu.Unlock()

	if !interruptible {
		<-w.Ready()
		return nil
	}
	if self.Park(w.Ready(), time.Time{}, thread.Uninterruptible) == thread.Interrupted {
		m.mu.Lock()
		if !m.q.Remove(w) {
			// Ownership arrived with the interrupt.
			m.releaseLocked()
		}
		m.mu.Unlock()
		self.Unwind()
	}
	return nil
}

// TryLock acquires m without blocking, or fails with EBUSY.
func (m *Mutex) TryLock() error {
	self := thread.Current()
	self.Poll()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.state.check("mutex"); err != nil {
		return err
	}
	switch {
	case m.owner == nil:
		m.owner, m.count = self, 1
		return nil
	case m.owner == self && m.kind == KindRecursive:
		if m.count == maxRecursion {
			return errors.Wrap(errno.EAGAIN, "mutex trylock: recursion limit")
		}
		m.count++
		return nil
	}
	return errors.Wrap(errno.EBUSY, "mutex trylock")
}

// Unlock releases one level of m. If that frees it, ownership passes to
// the longest waiting locker.
func (m *Mutex) Unlock() error {
	self := thread.Current()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.state.check("mutex"); err != nil {
		return err
	}
	if m.owner == nil {
		return errors.Wrap(errno.EPERM, "mutex unlock: not locked")
	}
	if m.owner != self && m.kind != KindNormal {
		return errors.Wrap(errno.EPERM, "mutex unlock: caller is not the owner")
	}
	m.count--
	if m.count == 0 {
		m.releaseLocked()
	}
	return nil
}

// releaseLocked hands m to the oldest waiter or leaves it unlocked.
func (m *Mutex) releaseLocked() {
	if w := m.q.GrantFront(); w != nil {
		r := w.Data.(*lockRequest)
		m.owner, m.count = r.t, r.depth
		return
	}
	m.owner, m.count = nil, 0
}

// releaseAll fully unlocks m on behalf of its owner and returns the depth
// to restore later.
func (m *Mutex) releaseAll(self *thread.Thread) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.state.check("mutex"); err != nil {
		return 0, err
	}
	if m.owner != self {
		return 0, errors.Wrap(errno.EPERM, "mutex not owned by caller")
	}
	depth := m.count
	m.releaseLocked()
	return depth, nil
}

// Owned reports whether the calling thread holds m.
func (m *Mutex) Owned() bool {
	self := thread.Current()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner == self
}

// Destroy invalidates m. A locked mutex, or one with waiters, is left alone
// and EBUSY returned.
func (m *Mutex) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.state.check("mutex"); err != nil {
		return err
	}
	if m.owner != nil || m.q.Len() > 0 {
		return errors.Wrap(errno.EBUSY, "mutex destroy: mutex in use")
	}
	m.state = objDestroyed
	return nil
}
