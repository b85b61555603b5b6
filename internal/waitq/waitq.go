// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package waitq implements the FIFO wait queue behind every blocking
// primitive.
//
// A primitive that cannot satisfy a request enqueues a Waiter while holding
// its own lock, releases the lock and blocks on Waiter.Ready. The releasing
// side grants the resource directly to a waiter (hand-off) instead of
// publishing it for anyone to grab, so the oldest waiter always wins and no
// waiter starves under bounded contention.
//
// A Queue is not safe for concurrent use; it is always guarded by the lock
// of the primitive that owns it.
package waitq

import "container/list"

// Waiter is one parked request.
type Waiter struct {
	ready   chan struct{}
	elem    *list.Element
	granted bool

	// Data is owner-defined, e.g. whether a rwlock waiter wants to write.
	Data any
}

// Ready is closed when the waiter has been granted.
func (w *Waiter) Ready() <-chan struct{} {
	return w.ready
}

// Granted reports whether the waiter was granted. Guarded by the owner's
// lock.
func (w *Waiter) Granted() bool {
	return w.granted
}

// Queue is a FIFO of waiters.
type Queue struct {
	l list.List
}

// Len returns the number of queued waiters.
func (q *Queue) Len() int {
	return q.l.Len()
}

// Enqueue appends a new waiter carrying data.
func (q *Queue) Enqueue(data any) *Waiter {
	w := &Waiter{ready: make(chan struct{}), Data: data}
	w.elem = q.l.PushBack(w)
	return w
}

// Front returns the oldest waiter, or nil.
func (q *Queue) Front() *Waiter {
	e := q.l.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*Waiter)
}

// Grant dequeues w and wakes it.
func (q *Queue) Grant(w *Waiter) {
	if w.granted {
		return
	}
	if w.elem != nil {
		q.l.Remove(w.elem)
		w.elem = nil
	}
	w.granted = true
	close(w.ready)
}

// GrantFront grants the oldest waiter and returns it, or nil if the queue
// is empty.
func (q *Queue) GrantFront() *Waiter {
	w := q.Front()
	if w != nil {
		q.Grant(w)
	}
	return w
}

// GrantAll grants every queued waiter and returns how many were woken.
func (q *Queue) GrantAll() int {
	n := 0
	for q.GrantFront() != nil {
		n++
	}
	return n
}

// Remove withdraws w after a timeout or cancellation. It returns false if w
// had already been granted, in which case the caller owns whatever was
// handed to it and must give it back.
func (q *Queue) Remove(w *Waiter) bool {
	if w.granted {
		return false
	}
	if w.elem != nil {
		q.l.Remove(w.elem)
		w.elem = nil
	}
	return true
}
