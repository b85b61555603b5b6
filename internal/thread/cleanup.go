// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thread

// Frame is one cleanup handler.
type Frame struct {
	Routine func(arg any)
	Arg     any
}

// PushCleanup pushes a handler onto the calling thread's cleanup stack.
func (t *Thread) PushCleanup(routine func(arg any), arg any) {
	t.cleanup = append(t.cleanup, Frame{Routine: routine, Arg: arg})
}

// PopCleanup removes the most recently pushed handler and runs it when
// execute is true. Popping an empty stack does nothing.
func (t *Thread) PopCleanup(execute bool) {
	n := len(t.cleanup)
	if n == 0 {
		return
	}
	f := t.cleanup[n-1]
	t.cleanup[n-1] = Frame{}
	t.cleanup = t.cleanup[:n-1]
	if execute && f.Routine != nil {
		f.Routine(f.Arg)
	}
}

// CleanupDepth returns the number of pushed handlers.
func (t *Thread) CleanupDepth() int {
	return len(t.cleanup)
}

// runCleanup pops and runs every handler. Each frame is removed before it
// runs, so a handler that itself exits cannot run twice.
func (t *Thread) runCleanup() {
	for len(t.cleanup) > 0 {
		t.PopCleanup(true)
	}
}
