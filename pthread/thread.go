// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pthread

import (
	"context"

	"github.com/kolkov/gopthread/internal/handle"
	"github.com/kolkov/gopthread/internal/thread"
)

// Thread identifies a thread. The zero value names no thread; a Thread
// whose thread was reaped never names another one.
type Thread = handle.Handle

// Attr holds thread creation attributes.
type Attr = thread.Attr

// StartRoutine is the body of a thread.
type StartRoutine = thread.StartRoutine

// ThreadInfo describes a thread, see Threads.
type ThreadInfo = thread.Info

// Cancel state and type values.
type (
	CancelState = thread.CancelState
	CancelType  = thread.CancelType
)

const (
	CancelEnable  = thread.CancelEnable
	CancelDisable = thread.CancelDisable

	CancelDeferred     = thread.CancelDeferred
	CancelAsynchronous = thread.CancelAsynchronous
)

// Canceled is the exit value of a canceled thread.
var Canceled = thread.Canceled

// Create starts start(arg) on a new thread.
//
// A nil attr creates a joinable thread. Create fails with EAGAIN when the
// configured thread limit is reached.
func Create(attr *Attr, start StartRoutine, arg any) (Thread, error) {
	return threads().Create(attr, start, arg)
}

// Join waits for t to finish and returns its exit value. The thread is
// reaped: t is invalid afterwards.
//
// Join fails with ESRCH for an unknown thread, EDEADLK for the calling
// thread and EINVAL for a detached thread or one already being joined.
// Join is a cancellation point.
func Join(t Thread) (any, error) {
	return threads().Join(t)
}

// Detach makes t non-joinable; it is reaped as soon as it finishes.
func Detach(t Thread) error {
	return threads().Detach(t)
}

// Exit runs the calling thread's cleanup handlers and terminates it with
// exit value v. Deferred calls of the thread run afterwards. Exit never
// returns.
func Exit(v any) {
	threads().Exit(v)
}

// Self returns the calling thread.
func Self() Thread {
	return threads().Self().Handle()
}

// Equal reports whether a and b name the same thread.
func Equal(a, b Thread) bool {
	return a == b
}

// Cancel requests cancellation of t.
func Cancel(t Thread) error {
	return threads().Cancel(t)
}

// SetCancelState sets the calling thread's cancel state and returns the
// previous one.
func SetCancelState(s CancelState) (CancelState, error) {
	return threads().Self().SetCancelState(s)
}

// SetCancelType sets the calling thread's cancel type and returns the
// previous one.
func SetCancelType(t CancelType) (CancelType, error) {
	return threads().Self().SetCancelType(t)
}

// TestCancel acts on a pending cancellation request, if enabled.
func TestCancel() {
	threads().Self().TestCancel()
}

// CleanupPush pushes routine(arg) onto the calling thread's cleanup stack.
// Handlers run in reverse order when the thread exits or is canceled.
func CleanupPush(routine func(arg any), arg any) {
	threads().Self().PushCleanup(routine, arg)
}

// CleanupPop removes the most recent cleanup handler, running it when
// execute is true.
func CleanupPop(execute bool) {
	threads().Self().PopCleanup(execute)
}

// Suspend parks t at its next safe point. Suspension must be enabled in
// the configuration; otherwise it fails with ENOTSUP.
//
// A thread suspended while holding a lock blocks every thread that needs
// the lock.
func Suspend(t Thread) error {
	return threads().Suspend(t)
}

// Continue resumes a suspended thread.
func Continue(t Thread) error {
	return threads().Resume(t)
}

// GetSequenceNP returns the sequence number of t. Sequence numbers increase
// with every thread registered and are never reused.
func GetSequenceNP(t Thread) (uint64, error) {
	return threads().Sequence(t)
}

// OnceControl guards a one-time initialization. The zero value is ready
// to use.
type OnceControl = thread.Once

// Once runs initRoutine the first time it is called with o. If the
// routine does not complete because its thread exits or is canceled, the
// next call runs it again.
func Once(o *OnceControl, initRoutine func()) error {
	if o == nil || initRoutine == nil {
		return EINVAL
	}
	threads().Self().Poll()
	o.Do(initRoutine)
	return nil
}

// Threads returns a snapshot of every known thread.
func Threads() []ThreadInfo {
	return threads().Threads()
}

// Shutdown stops Create from starting new threads and waits for running
// ones until ctx is done.
func Shutdown(ctx context.Context) error {
	return threads().Shutdown(ctx)
}
