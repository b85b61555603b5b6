// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sem

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/kolkov/gopthread/internal/errno"
	"github.com/kolkov/gopthread/internal/thread"
	"github.com/kolkov/gopthread/internal/waitq"
)

// SemValueMax is the largest value a semaphore can hold.
const SemValueMax = math.MaxInt32

// Sem is the operation set shared by unnamed and named semaphores.
type Sem interface {
	Wait() error
	TryWait() error
	TimedWait(abstime time.Time) error
	Post() error
	GetValue() (int, error)
}

var (
	_ Sem = (*Semaphore)(nil)
	_ Sem = (*Named)(nil)
)

// Semaphore is an unnamed counting semaphore.
//
// A semaphore initialized as shared is accepted, but it is only visible to
// this process; share a Named semaphore across processes instead.
type Semaphore struct {
	mu     sync.Mutex
	live   bool
	shared bool
	value  int
	q      waitq.Queue
}

// Init sets the initial value. Values above SemValueMax fail with EINVAL;
// reinitializing a semaphore with waiters fails with EBUSY.
func (s *Semaphore) Init(shared bool, value uint32) error {
	if value > SemValueMax {
		return errors.Wrapf(errno.EINVAL, "semaphore init: value %d exceeds %d", value, SemValueMax)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live && s.q.Len() > 0 {
		return errors.Wrap(errno.EBUSY, "semaphore init: waiters present")
	}
	s.live = true
	s.shared = shared
	s.value = int(value)
	return nil
}

// Shared reports the shared flag given to Init.
func (s *Semaphore) Shared() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shared
}

func (s *Semaphore) checkLocked() error {
	if !s.live {
		return errors.Wrap(errno.EINVAL, "semaphore not initialized")
	}
	return nil
}

// Destroy invalidates s, or fails with EBUSY while threads wait on it.
func (s *Semaphore) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	if s.q.Len() > 0 {
		return errors.Wrap(errno.EBUSY, "semaphore destroy: waiters present")
	}
	s.live = false
	return nil
}

// Wait decrements s, blocking while it is zero.
func (s *Semaphore) Wait() error {
	return s.wait(thread.Current(), time.Time{})
}

// TimedWait is Wait with an absolute deadline; it fails with ETIMEDOUT.
func (s *Semaphore) TimedWait(abstime time.Time) error {
	if abstime.IsZero() {
		return errors.Wrap(errno.EINVAL, "semaphore timedwait: zero deadline")
	}
	return s.wait(thread.Current(), abstime)
}

func (s *Semaphore) wait(self *thread.Thread, deadline time.Time) error {
	self.TestCancel()

	s.mu.Lock()
	if err := s.checkLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	// Posts hand units to waiters first, so a positive value means nobody
	// is queued.
	if s.value > 0 {
		s.value--
		s.mu.Unlock()
		return nil
	}
	w := s.q.Enqueue(nil)
	s.mu.Unlock()

	wake := self.Park(w.Ready(), deadline, thread.CancelPoint)
	if wake != thread.Woken {
		s.mu.Lock()
		if !s.q.Remove(w) {
			if wake == thread.Interrupted {
				// Pass the unit on.
				_ = s.postLocked()
			} else {
				wake = thread.Woken
			}
		}
		s.mu.Unlock()
	}

	switch wake {
	case thread.Interrupted:
		self.Unwind()
	case thread.TimedOut:
		return errors.Wrap(errno.ETIMEDOUT, "semaphore timedwait")
	}
	return nil
}

// TryWait decrements s if it is positive and fails with EAGAIN otherwise.
// It never blocks.
func (s *Semaphore) TryWait() error {
	thread.Current().Poll()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	if s.value == 0 {
		return errors.Wrap(errno.EAGAIN, "semaphore trywait")
	}
	s.value--
	return nil
}

// Post increments s, or hands the unit to the longest waiting thread.
func (s *Semaphore) Post() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	return s.postLocked()
}

func (s *Semaphore) postLocked() error {
	if s.q.GrantFront() != nil {
		return nil
	}
	if s.value >= SemValueMax {
		return errors.Wrap(errno.EOVERFLOW, "semaphore post")
	}
	s.value++
	return nil
}

// GetValue returns the current value. It may be stale by the time the
// caller looks at it.
func (s *Semaphore) GetValue() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return 0, err
	}
	return s.value, nil
}

// Waiters returns the number of blocked threads.
func (s *Semaphore) Waiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Len()
}
