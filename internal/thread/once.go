// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thread

import (
	"sync"

	"go.uber.org/atomic"
)

// Once runs an initialization routine exactly once.
//
// Unlike sync.Once, a routine that does not complete (the calling thread
// exits or is canceled inside it) does not count: the next caller runs it
// again.
type Once struct {
	mu   sync.Mutex
	done atomic.Bool
}

// Do calls fn if no earlier call to Do has completed.
func (o *Once) Do(fn func()) {
	if o.done.Load() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done.Load() {
		return
	}
	fn()
	o.done.Store(true)
}

// Done reports whether the routine has completed.
func (o *Once) Done() bool { return o.done.Load() }
