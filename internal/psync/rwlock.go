// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package psync

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/kolkov/gopthread/internal/errno"
	"github.com/kolkov/gopthread/internal/thread"
	"github.com/kolkov/gopthread/internal/waitq"
)

// RWLock is a POSIX read-write lock with a fair, phase-based policy.
//
// Requests queue in arrival order. A reader arriving while anyone is queued
// queues too, so a steady stream of readers cannot starve a writer. When
// the lock frees up it admits either the writer at the head of the queue or
// the whole leading run of readers.
//
// A thread already holding a read lock may take it again without queueing.
type RWLock struct {
	mu      sync.Mutex
	state   objState
	writer  *thread.Thread
	readers map[*thread.Thread]int
	q       waitq.Queue
}

type rwRequest struct {
	t     *thread.Thread
	write bool
}

// NewRWLock returns an initialized read-write lock.
func NewRWLock(attr *RWLockAttr) (*RWLock, error) {
	l := &RWLock{}
	if err := l.Init(attr); err != nil {
		return nil, err
	}
	return l, nil
}

// Init initializes l. Reinitializing a held lock fails with EBUSY.
func (l *RWLock) Init(attr *RWLockAttr) error {
	if attr != nil {
		if err := validScope(attr.Scope); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == objLive && l.busyLocked() {
		return errors.Wrap(errno.EBUSY, "rwlock init: lock in use")
	}
	l.state = objLive
	l.writer = nil
	l.readers = make(map[*thread.Thread]int)
	return nil
}

func (l *RWLock) busyLocked() bool {
	return l.writer != nil || len(l.readers) > 0 || l.q.Len() > 0
}

// RdLock acquires a shared hold.
func (l *RWLock) RdLock() error {
	return l.acquire(false, true)
}

// WrLock acquires the exclusive hold.
func (l *RWLock) WrLock() error {
	return l.acquire(true, true)
}

// TryRdLock is RdLock without blocking; it fails with EBUSY.
func (l *RWLock) TryRdLock() error {
	return l.acquire(false, false)
}

// TryWrLock is WrLock without blocking; it fails with EBUSY.
func (l *RWLock) TryWrLock() error {
	return l.acquire(true, false)
}

func (l *RWLock) acquire(write, block bool) error {
	self := thread.Current()
	self.Poll()

	l.mu.Lock()
	if err := l.state.check("rwlock"); err != nil {
		l.mu.Unlock()
		return err
	}
	if l.writer == self {
		l.mu.Unlock()
		return errors.Wrap(errno.EDEADLK, "rwlock: caller holds the write lock")
	}
	if write {
		if l.readers[self] > 0 {
			l.mu.Unlock()
			return errors.Wrap(errno.EDEADLK, "rwlock wrlock: caller holds a read lock")
		}
		if l.writer == nil && len(l.readers) == 0 && l.q.Len() == 0 {
			l.writer = self
			l.mu.Unlock()
			return nil
		}
	} else if l.writer == nil && (l.q.Len() == 0 || l.readers[self] > 0) {
		l.readers[self]++
		l.mu.Unlock()
		return nil
	}
	if !block {
		l.mu.Unlock()
		return errors.Wrap(errno.EBUSY, "rwlock trylock")
	}

	w := l.q.Enqueue(&rwRequest{t: self, write: write})
	l.mu.Unlock()

	if self.Park(w.Ready(), time.Time{}, thread.Uninterruptible) == thread.Interrupted {
		l.mu.Lock()
		if !l.q.Remove(w) {
			l.dropLocked(self)
		}
		// Our departure may unblock the requests behind us.
		l.admitLocked()
		l.mu.Unlock()
		self.Unwind()
	}
	return nil
}

// Unlock releases the caller's hold, write or read.
func (l *RWLock) Unlock() error {
	self := thread.Current()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.state.check("rwlock"); err != nil {
		return err
	}
	if l.writer != self && l.readers[self] == 0 {
		return errors.Wrap(errno.EPERM, "rwlock unlock: caller holds no lock")
	}
	l.dropLocked(self)
	l.admitLocked()
	return nil
}

func (l *RWLock) dropLocked(t *thread.Thread) {
	if l.writer == t {
		l.writer = nil
		return
	}
	if n := l.readers[t]; n > 1 {
		l.readers[t] = n - 1
	} else {
		delete(l.readers, t)
	}
}

// admitLocked grants queued requests that the current holders allow.
func (l *RWLock) admitLocked() {
	if l.writer != nil {
		return
	}
	for {
		w := l.q.Front()
		if w == nil {
			return
		}
		r := w.Data.(*rwRequest)
		if r.write {
			if len(l.readers) == 0 {
				l.q.Grant(w)
				l.writer = r.t
			}
			return
		}
		l.q.Grant(w)
		l.readers[r.t]++
	}
}

// Destroy invalidates l, or fails with EBUSY while it is held or awaited.
func (l *RWLock) Destroy() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.state.check("rwlock"); err != nil {
		return err
	}
	if l.busyLocked() {
		return errors.Wrap(errno.EBUSY, "rwlock destroy: lock in use")
	}
	l.state = objDestroyed
	return nil
}
