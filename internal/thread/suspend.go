// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thread

// Suspend and resume are a non-POSIX extension kept for compatibility.
// They are unsafe by nature: a thread parked while holding a lock that
// another thread needs deadlocks both. A suspended thread also stops acting
// on cancellation until it is resumed.

// requestSuspend asks t to park at its next safe point.
func (t *Thread) requestSuspend() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.suspendReq.Load() || t.state.Finished() {
		return
	}
	t.resume = make(chan struct{})
	t.suspendReq.Store(true)
}

// requestResume releases a pending or active suspension. It reports whether
// there was one.
func (t *Thread) requestResume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.suspendReq.Load() {
		return false
	}
	t.suspendReq.Store(false)
	close(t.resume)
	return true
}

// safePoint parks the calling thread, which must be t, while a suspension
// is requested.
func (t *Thread) safePoint() {
	if !t.suspendReq.Load() {
		return
	}

	t.mu.Lock()
	if !t.suspendReq.Load() {
		t.mu.Unlock()
		return
	}
	ch := t.resume
	prev := t.state
	t.state = StateSuspended
	t.mu.Unlock()

	<-ch

	t.mu.Lock()
	if t.state == StateSuspended {
		t.state = prev
	}
	t.mu.Unlock()
}
