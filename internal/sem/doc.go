// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sem implements POSIX counting semaphores.
//
// Unnamed semaphores (Semaphore) live in the caller's memory. Named
// semaphores (Named) are opened through a Namespace, which mangles the
// user-visible name and asks a Kernel backend for the object behind it:
//
//	memory  objects shared by every Namespace of this process
//	redis   objects shared by every process using the same Redis keys
//
// Every open handle holds one reference on its backend object. The object
// and its name disappear when the last reference is closed, or earlier for
// new opens once the name is unlinked.
//
// Waits are cancellation points. Wake order is FIFO for unnamed and
// memory-backed semaphores; redis-backed waiters poll and are not ordered.
package sem
