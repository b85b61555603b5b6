// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry tracks live objects in a dense, generation-tagged arena.
//
// Each registered value occupies one slot. A handle.Handle is the pair
// (slot, generation); validating it is an O(1) comparison against the
// slot's current generation. Released slots go on a free stack and are
// handed out again, always with a new generation, so a stale handle can
// never resolve to the object that now lives in its slot.
//
// The registry also emulates thread-local storage: Bind associates the
// calling goroutine with a handle, Current returns it.
//
// Thread Safety: all methods are safe for concurrent use. The registry lock
// is private and never held while calling back into user code.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/gopthread/internal/handle"
)

type slot[T any] struct {
	value T
	gen   uint32
	seq   uint64
	live  bool
}

// Registry is an arena of T values addressed by handle.
type Registry[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	// free is a stack of released slot indices.
	free []uint32
	live int

	// seq issues sequence numbers; never reset, so it orders registrations
	// across slot reuse.
	seq atomic.Uint64

	// self maps goroutine id to the handle bound by that goroutine.
	self sync.Map
}

// New returns an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Register stores v in a free slot and returns its handle and sequence
// number.
//
// Parameters:
//   - v: the value to store; the registry keeps a reference until Release
//
// Returns:
//   - handle.Handle: names v until it is released; never handle.Nil
//   - uint64: the registration's sequence number, starting at 1 and
//     strictly increasing across the registry's lifetime
//
// A slot from the free stack is reused when one is available, with its
// generation already bumped by Release. Otherwise the arena grows by one.
//
// Thread Safety: safe for concurrent use.
func (r *Registry[T]) Register(v T) (handle.Handle, uint64) {
	seq := r.seq.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		//nolint:gosec // G115: slot count is bounded by memory long before 2^32.
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot[T]{})
	}

	s := &r.slots[idx]
	if s.gen == 0 {
		s.gen = 1
	}
	s.value = v
	s.seq = seq
	s.live = true
	r.live++
	return handle.New(idx, s.gen), seq
}

// lookupLocked returns the slot named by h, or nil. Caller holds r.mu.
func (r *Registry[T]) lookupLocked(h handle.Handle) *slot[T] {
	if h.IsNil() {
		return nil
	}
	idx, gen := h.Decode()
	if int(idx) >= len(r.slots) {
		return nil
	}
	s := &r.slots[idx]
	if !s.live || s.gen != gen {
		return nil
	}
	return s
}

// Validate reports whether h names a live registration.
//
// Parameters:
//   - h: any handle, including handle.Nil and handles from other registries
//
// Returns:
//   - true if h's slot exists and carries h's generation
//
// A released handle stays invalid forever, even after its slot is reused.
//
// Thread Safety: safe for concurrent use; the answer may be stale as soon
// as it is returned if another goroutine releases h.
func (r *Registry[T]) Validate(h handle.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupLocked(h) != nil
}

// Lookup returns the value registered under h.
func (r *Registry[T]) Lookup(h handle.Handle) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.lookupLocked(h); s != nil {
		return s.value, true
	}
	var zero T
	return zero, false
}

// Sequence returns the sequence number stamped on h at registration.
func (r *Registry[T]) Sequence(h handle.Handle) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.lookupLocked(h); s != nil {
		return s.seq, true
	}
	return 0, false
}

// Release retires h. The slot's generation is bumped and the slot becomes
// reusable. Releasing a stale or nil handle returns false and changes
// nothing.
func (r *Registry[T]) Release(h handle.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.lookupLocked(h)
	if s == nil {
		return false
	}
	var zero T
	s.value = zero
	s.live = false
	s.gen = handle.NextGeneration(s.gen)
	r.free = append(r.free, h.Slot())
	r.live--
	return true
}

// Len returns the number of live registrations.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Range calls fn for a snapshot of the live registrations, in slot order.
// fn runs without the registry lock held and may call back into r.
func (r *Registry[T]) Range(fn func(h handle.Handle, seq uint64, v T) bool) {
	type entry struct {
		h   handle.Handle
		seq uint64
		v   T
	}

	r.mu.Lock()
	entries := make([]entry, 0, r.live)
	for i := range r.slots {
		s := &r.slots[i]
		if s.live {
			//nolint:gosec // G115: see Register.
			entries = append(entries, entry{handle.New(uint32(i), s.gen), s.seq, s.value})
		}
	}
	r.mu.Unlock()

	for _, e := range entries {
		if !fn(e.h, e.seq, e.v) {
			return
		}
	}
}

// Bind makes h the "self" handle of the calling goroutine.
func (r *Registry[T]) Bind(h handle.Handle) {
	r.self.Store(GoroutineID(), h)
}

// Unbind removes the calling goroutine's self binding.
func (r *Registry[T]) Unbind() {
	r.self.Delete(GoroutineID())
}

// Current returns the handle bound by the calling goroutine.
func (r *Registry[T]) Current() (handle.Handle, bool) {
	v, ok := r.self.Load(GoroutineID())
	if !ok {
		return handle.Nil, false
	}
	return v.(handle.Handle), true
}

// Scavenge drops self bindings whose goroutine has exited and returns the
// handles they pointed at. Slots are not released; the caller decides what
// an orphaned handle means.
func (r *Registry[T]) Scavenge() []handle.Handle {
	live := liveGoroutineIDs()

	var orphans []handle.Handle
	r.self.Range(func(key, value any) bool {
		gid := key.(int64)
		if _, ok := live[gid]; !ok {
			r.self.Delete(gid)
			orphans = append(orphans, value.(handle.Handle))
		}
		return true
	})
	return orphans
}
