// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thread

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/kolkov/gopthread/internal/callsite"
	"github.com/kolkov/gopthread/internal/handle"
)

// Thread is the record behind a thread handle.
//
// Fields under mu may be read by any goroutine. The cleanup stack and the
// exiting flag belong to the owning goroutine alone.
type Thread struct {
	m       *Manager
	h       handle.Handle
	seq     uint64
	name    string
	site    uint64
	adopted bool
	native  atomic.Int64

	mu        sync.Mutex
	state     State
	detached  bool
	joining   bool
	exitValue any
	done      chan struct{}

	suspendReq atomic.Bool
	resume     chan struct{} // guarded by mu; closed by Resume

	cancelState   atomic.Uint32
	cancelType    atomic.Uint32
	cancelPending atomic.Bool
	cancelOnce    sync.Once
	cancelCh      chan struct{}

	// Owner-only.
	cleanup []Frame
	exiting bool
}

func newThread(m *Manager, name string, detached, adopted bool) *Thread {
	t := &Thread{
		m:        m,
		name:     name,
		adopted:  adopted,
		detached: detached,
		state:    StateCreated,
		done:     make(chan struct{}),
		cancelCh: make(chan struct{}),
	}
	t.cancelState.Store(uint32(CancelEnable))
	t.cancelType.Store(uint32(CancelDeferred))
	return t
}

// Handle returns the thread's handle.
func (t *Thread) Handle() handle.Handle { return t.h }

// Sequence returns the sequence number assigned at registration.
func (t *Thread) Sequence() uint64 { return t.seq }

// Name returns the name given at creation.
func (t *Thread) Name() string { return t.name }

// Native returns the host identifier of the thread: the OS thread id on
// Linux, the goroutine id elsewhere.
func (t *Thread) Native() int64 { return t.native.Load() }

// Adopted reports whether the thread is a goroutine that was not started by
// Create.
func (t *Thread) Adopted() bool { return t.adopted }

// State returns the current lifecycle state.
func (t *Thread) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Thread) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Detached reports whether the thread is non-joinable.
func (t *Thread) Detached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.detached
}

// CancelState returns the current cancel state.
func (t *Thread) CancelState() CancelState {
	return CancelState(t.cancelState.Load())
}

// CancelType returns the current cancel type.
func (t *Thread) CancelType() CancelType {
	return CancelType(t.cancelType.Load())
}

// CancelPending reports whether a cancellation request is outstanding.
func (t *Thread) CancelPending() bool {
	return t.cancelPending.Load()
}

// Info is a point-in-time description of a thread, for diagnostics.
type Info struct {
	Handle   handle.Handle
	Sequence uint64
	Name     string
	State    State
	Native   int64
	Detached bool
	Adopted  bool
	Pending  bool
	// Site is the call site of Create, empty for adopted threads.
	Site uint64
}

// CreatedAt returns "function file:line" of the code that created the
// thread, or "" when unknown.
func (i Info) CreatedAt() string {
	return callsite.Lookup(i.Site).Top()
}

// CreationStack returns the full stack that created the thread, one frame
// per two lines.
func (i Info) CreationStack() string {
	return callsite.Lookup(i.Site).Format()
}

// Info returns a snapshot of t.
func (t *Thread) Info() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Info{
		Handle:   t.h,
		Sequence: t.seq,
		Name:     t.name,
		State:    t.state,
		Native:   t.native.Load(),
		Detached: t.detached,
		Adopted:  t.adopted,
		Pending:  t.cancelPending.Load(),
		Site:     t.site,
	}
}
