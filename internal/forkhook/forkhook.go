// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package forkhook keeps the ordered prepare/parent/child handlers that run
// around process duplication.
//
// The Go runtime cannot fork a running process, so duplication is
// delegated to a Duplicator. ExecDuplicator starts a fresh copy of the
// current binary; the copy calls ChildStart early in main to run the child
// handlers registered there.
package forkhook

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/kolkov/gopthread/internal/metrics"
)

// Side tells a Fork caller which process it is running in.
type Side int

const (
	Parent Side = iota
	Child
)

func (s Side) String() string {
	if s == Child {
		return "child"
	}
	return "parent"
}

// Duplicator performs the actual process duplication.
type Duplicator interface {
	Duplicate() (Side, error)
}

// DuplicatorFunc adapts a function to Duplicator.
type DuplicatorFunc func() (Side, error)

func (f DuplicatorFunc) Duplicate() (Side, error) { return f() }

// Entry is one Atfork registration. Any handler may be nil.
type Entry struct {
	Prepare func()
	Parent  func()
	Child   func()
}

// Registry is an append-only list of handlers.
type Registry struct {
	logger  log.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	entries []Entry
}

// New returns an empty registry.
func New(logger log.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Registry{logger: log.With(logger, "component", "forkhook"), metrics: m}
}

// Atfork appends a registration. There is no way to remove one.
func (r *Registry) Atfork(prepare, parent, child func()) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Prepare: prepare, Parent: parent, Child: child})
	r.mu.Unlock()
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Fork runs the prepare handlers in reverse registration order, duplicates
// the process with dup, then runs the parent or child handlers in
// registration order. If duplication fails the parent handlers still run
// and the error is returned.
func (r *Registry) Fork(dup Duplicator) (Side, error) {
	entries := r.snapshot()

	for i := len(entries) - 1; i >= 0; i-- {
		if f := entries[i].Prepare; f != nil {
			f()
		}
	}

	side, err := dup.Duplicate()
	if err != nil {
		r.metrics.Forks.WithLabelValues("failed").Inc()
		level.Warn(r.logger).Log("msg", "process duplication failed", "err", err)
		runParent(entries)
		return Parent, errors.Wrap(err, "fork")
	}

	r.metrics.Forks.WithLabelValues(side.String()).Inc()
	level.Debug(r.logger).Log("msg", "process duplicated", "side", side, "handlers", len(entries))
	if side == Child {
		runChild(entries)
	} else {
		runParent(entries)
	}
	return side, nil
}

func runParent(entries []Entry) {
	for _, e := range entries {
		if e.Parent != nil {
			e.Parent()
		}
	}
}

func runChild(entries []Entry) {
	for _, e := range entries {
		if e.Child != nil {
			e.Child()
		}
	}
}

var std = New(nil, nil)

// Std returns the process-wide registry.
func Std() *Registry { return std }
