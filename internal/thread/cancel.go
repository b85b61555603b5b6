// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thread

import (
	"runtime"
	"time"

	"github.com/go-kit/log/level"

	"github.com/kolkov/gopthread/internal/errno"
)

// Wake is the reason a parked thread resumed.
type Wake int

const (
	// Woken: the awaited channel fired.
	Woken Wake = iota
	// TimedOut: the deadline passed first.
	TimedOut
	// Interrupted: an enabled cancellation request arrived. The caller must
	// undo its wait bookkeeping and then call Unwind.
	Interrupted
)

// Wait kinds for Park.
const (
	// CancelPoint waits act on any enabled request.
	CancelPoint = true
	// Uninterruptible waits act only on asynchronous requests.
	Uninterruptible = false
)

// interruptible reports whether a wait of the given kind should watch the
// cancel channel.
func (t *Thread) interruptible(point bool) bool {
	if t.exiting || t.CancelState() != CancelEnable {
		return false
	}
	return point || t.CancelType() == CancelAsynchronous
}

// Park blocks the calling thread, which must be t, until ready is closed,
// the deadline passes (zero deadline: never), or a cancellation request it
// must act on arrives.
func (t *Thread) Park(ready <-chan struct{}, deadline time.Time, point bool) Wake {
	var cancel <-chan struct{}
	if t.interruptible(point) {
		cancel = t.cancelCh
	}

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			select {
			case <-ready:
				return Woken
			default:
				return TimedOut
			}
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ready:
		return Woken
	case <-timeout:
		return TimedOut
	case <-cancel:
		return Interrupted
	}
}

// TestCancel acts on a pending, enabled request and otherwise returns. It
// is also a suspend safe point.
func (t *Thread) TestCancel() {
	t.safePoint()
	if t.CancelPending() && t.interruptible(CancelPoint) {
		t.Unwind()
	}
}

// Poll is called on entry to every library operation: it honours suspend
// requests and acts on pending asynchronous requests.
func (t *Thread) Poll() {
	t.safePoint()
	if t.CancelPending() && t.interruptible(Uninterruptible) {
		t.Unwind()
	}
}

// SetCancelState atomically replaces the cancel state and returns the
// previous one.
func (t *Thread) SetCancelState(s CancelState) (CancelState, error) {
	if s != CancelEnable && s != CancelDisable {
		return 0, errno.EINVAL
	}
	old := CancelState(t.cancelState.Swap(uint32(s)))
	t.Poll()
	return old, nil
}

// SetCancelType atomically replaces the cancel type and returns the
// previous one.
func (t *Thread) SetCancelType(typ CancelType) (CancelType, error) {
	if typ != CancelDeferred && typ != CancelAsynchronous {
		return 0, errno.EINVAL
	}
	old := CancelType(t.cancelType.Swap(uint32(typ)))
	t.Poll()
	return old, nil
}

// requestCancel marks a request pending and wakes any interruptible wait.
func (t *Thread) requestCancel() {
	t.cancelPending.Store(true)
	t.cancelOnce.Do(func() { close(t.cancelCh) })
}

// Unwind acts on a cancellation request: it runs the cleanup stack, sets
// the exit value to Canceled and ends the goroutine. It never returns and
// must be called by t's own goroutine with no library locks held.
func (t *Thread) Unwind() {
	// Handlers may reach cancellation points; they must not re-enter.
	t.cancelState.Store(uint32(CancelDisable))
	level.Debug(t.m.conf().logger).Log("msg", "thread acting on cancellation", "thread", t.h, "cleanup_depth", len(t.cleanup))
	t.m.terminate(t, Canceled, reasonCanceled)
	runtime.Goexit()
}
