// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package thread implements POSIX thread objects on top of goroutines.
//
// A Manager owns a registry of Thread records. Create spawns a goroutine,
// registers it, and binds the goroutine's "self" slot before the start
// routine runs. A thread ends by returning from its start routine, by Exit,
// or by acting on a cancellation request; all three paths run the thread's
// cleanup stack in LIFO order before the exit value is published.
//
// State machine:
//
//	Created → Running                 [goroutine starts]
//	Running → Suspended → Running     [Suspend / Resume, best effort]
//	Running → Exiting                 [return, Exit, cancellation]
//	Exiting → JoinableZombie          [not detached]
//	Exiting → DetachedReaped          [detached]
//	JoinableZombie → Joined           [Join]
//	JoinableZombie → DetachedReaped   [Detach]
//
// A record is released from the registry only when the start routine has
// finished and the thread has been joined or detached. Handles kept after
// that fail validation even if their slot is reused.
//
// # Cancellation
//
// Cancellation points are Join, condition-variable waits, semaphore waits
// and TestCancel. A deferred request takes effect only there; a thread
// blocked in one of them is woken. Asynchronous requests additionally take
// effect at every library call made by the target and interrupt every
// library wait. Go cannot preempt arbitrary user code, so a thread spinning
// outside the library is not stopped until it calls in.
//
// Acting on a request never returns to the caller: the cleanup stack runs,
// the exit value becomes Canceled and the goroutine ends via
// runtime.Goexit, so deferred calls of the thread still run.
//
// # Goroutines not created here
//
// Any goroutine asking for Self gets a detached thread record on first use
// ("adoption"), so identity, mutex ownership and cleanup stacks work on the
// main goroutine and in tests. Records of adopted goroutines that have
// exited are reclaimed periodically.
package thread
