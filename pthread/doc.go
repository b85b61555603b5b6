// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pthread provides POSIX threads, synchronization objects and
// semaphores for Go programs.
//
// Threads are goroutines with a POSIX identity: a handle that can be joined,
// detached and canceled, a cleanup stack, and cancel state. Mutexes,
// condition variables, read-write locks and semaphores understand that
// identity, so ownership errors and cancellation behave as POSIX specifies.
//
// # Quick Start
//
//	t, err := pthread.Create(nil, func(arg any) any {
//		return arg.(int) * 2
//	}, 21)
//	if err != nil {
//		return err
//	}
//	v, err := pthread.Join(t) // v == 42
//
// Goroutines that were not started with Create are given an identity the
// first time they call into the package, so Self, mutex ownership and
// cleanup handlers work everywhere.
//
// # Errors
//
// Every operation returns an error whose cause is an [Errno]; match it with
// errors.Is:
//
//	if errors.Is(pthread.MutexInit(&mu, &attr), pthread.EINVAL) { ... }
//
// Exit never returns, and neither does an operation that acts on a
// cancellation request: the calling thread runs its cleanup handlers and
// terminates with exit value [Canceled].
//
// # Cancellation
//
// Cancellation points are Join, CondWait, CondTimedWait, SemWait,
// SemTimedWait and TestCancel. With asynchronous cancel type, a request is
// also acted on at entry to any operation of this package and interrupts
// any blocking wait. Go cannot interrupt arbitrary code, so a thread that
// never calls into the package is never canceled.
//
// # Named semaphores
//
// SemOpen looks names up through the configured backend. The default
// memory backend shares semaphores inside the process; the redis backend
// shares them between processes. See [Configure].
//
// # Fork
//
// Atfork handlers run around [Fork]. Because a Go process cannot be forked,
// Fork takes a [Duplicator]; [ExecDuplicator] starts a new copy of the
// program, which must call [ChildStart] early in main.
package pthread
