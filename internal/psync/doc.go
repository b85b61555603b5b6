// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package psync implements POSIX mutexes, condition variables and
// read-write locks on top of the thread package.
//
// Ownership is tracked per thread, so a goroutine that was not started by
// the thread manager is adopted the first time it locks something.
//
// Every blocking primitive hands its resource directly to the oldest
// waiter (see package waitq). Wake order is therefore FIFO for mutex
// lockers, condition variable waiters and read-write lock requests.
//
// Objects must be initialized before use; the zero value is rejected with
// EINVAL, as is any use after Destroy.
//
// Cancellation:
//
//   - Cond.Wait and Cond.TimedWait are cancellation points. The mutex is
//     reacquired before the cleanup handlers run.
//   - Lock waits are not cancellation points, but an asynchronous
//     cancellation request interrupts them.
//   - Every entry point is a suspend safe point.
package psync
