// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sem

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/kolkov/gopthread/internal/errno"
	"github.com/kolkov/gopthread/internal/thread"
)

// OpenFlag selects open behaviour.
type OpenFlag int

const (
	// OCreate creates the object when it does not exist.
	OCreate OpenFlag = 0o100
	// OExcl with OCreate fails with EEXIST when the object exists.
	OExcl OpenFlag = 0o200
)

// Kernel is a table of named, reference-counted semaphore objects.
type Kernel interface {
	// Open returns a new reference to the object called name, creating it
	// with value when flags allow. mode is recorded but not enforced.
	Open(ctx context.Context, name string, flags OpenFlag, mode uint32, value uint32) (Object, error)

	// Unlink removes name so later opens create a new object. References
	// already held keep working.
	Unlink(ctx context.Context, name string) error

	// Backend names the implementation for logs and metrics.
	Backend() string

	Close() error
}

// Object is one reference on a kernel semaphore.
type Object interface {
	TryWait(ctx context.Context) error
	// Wait blocks self until a unit is taken or the deadline (zero: none)
	// passes. A cancellation request acted on during the wait unwinds self
	// and does not return.
	Wait(ctx context.Context, self *thread.Thread, deadline time.Time) error
	Post(ctx context.Context) error
	Value(ctx context.Context) (int, error)
	// Release drops the reference; the object is destroyed with the last
	// one.
	Release(ctx context.Context) error
}

// memoryKernel keeps objects in process memory.
type memoryKernel struct {
	mu      sync.Mutex
	objects map[string]*memoryObject
}

// sharedMemory is the table behind every memory backend of this process,
// so two Namespaces opening the same name see the same counter.
var sharedMemory = NewMemoryKernel()

// NewMemoryKernel returns an empty, private in-process table.
func NewMemoryKernel() Kernel {
	return &memoryKernel{objects: make(map[string]*memoryObject)}
}

func (k *memoryKernel) Backend() string { return "memory" }

func (k *memoryKernel) Open(_ context.Context, name string, flags OpenFlag, _ uint32, value uint32) (Object, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if o, ok := k.objects[name]; ok {
		if flags&OCreate != 0 && flags&OExcl != 0 {
			return nil, errors.Wrapf(errno.EEXIST, "semaphore %q", name)
		}
		o.refs++
		return &memoryRef{o: o}, nil
	}
	if flags&OCreate == 0 {
		return nil, errors.Wrapf(errno.ENOENT, "semaphore %q", name)
	}

	o := &memoryObject{k: k, name: name, refs: 1, linked: true}
	if err := o.sem.Init(true, value); err != nil {
		return nil, err
	}
	k.objects[name] = o
	return &memoryRef{o: o}, nil
}

func (k *memoryKernel) Unlink(_ context.Context, name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	o, ok := k.objects[name]
	if !ok {
		return errors.Wrapf(errno.ENOENT, "semaphore %q", name)
	}
	o.linked = false
	delete(k.objects, name)
	return nil
}

func (k *memoryKernel) Close() error { return nil }

// memoryObject is guarded by its kernel's mutex, except sem which locks
// itself.
type memoryObject struct {
	k      *memoryKernel
	name   string
	sem    Semaphore
	refs   int
	linked bool
}

type memoryRef struct {
	o        *memoryObject
	released bool // guarded by o.k.mu
}

func (r *memoryRef) TryWait(context.Context) error { return r.o.sem.TryWait() }

func (r *memoryRef) Wait(_ context.Context, self *thread.Thread, deadline time.Time) error {
	return r.o.sem.wait(self, deadline)
}

func (r *memoryRef) Post(context.Context) error { return r.o.sem.Post() }

func (r *memoryRef) Value(context.Context) (int, error) { return r.o.sem.GetValue() }

func (r *memoryRef) Release(context.Context) error {
	k := r.o.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if r.released {
		return errors.Wrap(errno.EINVAL, "semaphore already closed")
	}
	r.released = true
	r.o.refs--
	if r.o.refs > 0 {
		return nil
	}
	if r.o.linked {
		delete(k.objects, r.o.name)
	}
	return nil
}
