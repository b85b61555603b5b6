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

// Cond is a POSIX condition variable.
type Cond struct {
	mu    sync.Mutex
	state objState
	q     waitq.Queue
}

// NewCond returns an initialized condition variable.
func NewCond(attr *CondAttr) (*Cond, error) {
	c := &Cond{}
	if err := c.Init(attr); err != nil {
		return nil, err
	}
	return c, nil
}

// Init initializes c. Reinitializing a condition variable with waiters
// fails with EBUSY.
func (c *Cond) Init(attr *CondAttr) error {
	if attr != nil {
		if err := validScope(attr.Scope); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == objLive && c.q.Len() > 0 {
		return errors.Wrap(errno.EBUSY, "cond init: waiters present")
	}
	c.state = objLive
	return nil
}

// Wait atomically releases m and blocks until signaled. m is held again
// when Wait returns, whatever the outcome.
func (c *Cond) Wait(m *Mutex) error {
	return c.wait(m, time.Time{})
}

// TimedWait is Wait with an absolute deadline. It returns ETIMEDOUT once
// the deadline passes without a signal.
func (c *Cond) TimedWait(m *Mutex, abstime time.Time) error {
	if abstime.IsZero() {
		return errors.Wrap(errno.EINVAL, "cond timedwait: zero deadline")
	}
	return c.wait(m, abstime)
}

func (c *Cond) wait(m *Mutex, deadline time.Time) error {
	self := thread.Current()
	self.TestCancel()

	c.mu.Lock()
	if err := c.state.check("cond"); err != nil {
		c.mu.Unlock()
		return err
	}
	w := c.q.Enqueue(nil)
	c.mu.Unlock()

	depth, err := m.releaseAll(self)
	if err != nil {
		c.mu.Lock()
		if !c.q.Remove(w) {
			c.signalLocked()
		}
		c.mu.Unlock()
		return errors.WithMessage(err, "cond wait")
	}

	wake := self.Park(w.Ready(), deadline, thread.CancelPoint)
	if wake != thread.Woken {
		c.mu.Lock()
		if !c.q.Remove(w) {
			if wake == thread.Interrupted {
				// A signal meant for someone is not lost with us.
				c.signalLocked()
			} else {
				wake = thread.Woken
			}
		}
		c.mu.Unlock()
	}

	// Reacquired even when canceled: cleanup handlers expect the mutex held.
	_ = m.lock(self, depth, false)

	switch wake {
	case thread.Interrupted:
		self.Unwind()
	case thread.TimedOut:
		return errors.Wrap(errno.ETIMEDOUT, "cond timedwait")
	}
	return nil
}

// Signal wakes the longest waiting thread, if any.
func (c *Cond) Signal() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.state.check("cond"); err != nil {
		return err
	}
	c.signalLocked()
	return nil
}

func (c *Cond) signalLocked() {
	c.q.GrantFront()
}

// Broadcast wakes every waiting thread.
func (c *Cond) Broadcast() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.state.check("cond"); err != nil {
		return err
	}
	c.q.GrantAll()
	return nil
}

// Waiters returns the number of blocked threads.
func (c *Cond) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.Len()
}

// Destroy invalidates c, or fails with EBUSY while threads wait on it.
func (c *Cond) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.state.check("cond"); err != nil {
		return err
	}
	if c.q.Len() > 0 {
		return errors.Wrap(errno.EBUSY, "cond destroy: waiters present")
	}
	c.state = objDestroyed
	return nil
}
