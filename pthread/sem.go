// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pthread

import (
	"time"

	"github.com/kolkov/gopthread/internal/sem"
)

type (
	// Sem is an unnamed semaphore.
	Sem = sem.Semaphore
	// NamedSem is an open named semaphore.
	NamedSem = sem.Named
	// Semaphore is implemented by both Sem and NamedSem.
	Semaphore = sem.Sem
	// OpenFlag is the oflag argument of SemOpen.
	OpenFlag = sem.OpenFlag
)

// SemOpen flags.
//
//nolint:revive // POSIX names.
const (
	O_CREAT = sem.OCreate
	O_EXCL  = sem.OExcl
)

// SemValueMax is the largest semaphore value.
const SemValueMax = sem.SemValueMax

// SemInit initializes the unnamed semaphore s with value.
func SemInit(s *Sem, pshared bool, value uint32) error {
	return s.Init(pshared, value)
}

// SemDestroy invalidates s.
func SemDestroy(s *Sem) error {
	return s.Destroy()
}

// SemOpen opens the named semaphore name. See sem.Namespace.Open for the
// flag semantics. Names are mangled before they reach the backend:
// backslashes become slashes, and a global prefix is added when configured.
func SemOpen(name string, oflag OpenFlag, mode uint32, value uint32) (*NamedSem, error) {
	return namespace().Open(name, oflag, mode, value)
}

// SemClose closes s.
func SemClose(s *NamedSem) error {
	return s.Close()
}

// SemUnlink removes name; open handles keep working.
func SemUnlink(name string) error {
	return namespace().Unlink(name)
}

// SemWait decrements s, blocking while it is zero. Cancellation point.
func SemWait(s Semaphore) error { return s.Wait() }

// SemTryWait decrements s or fails with EAGAIN.
func SemTryWait(s Semaphore) error { return s.TryWait() }

// SemTimedWait is SemWait with an absolute deadline. Cancellation point.
func SemTimedWait(s Semaphore, abstime time.Time) error {
	return s.TimedWait(abstime)
}

// SemPost increments s.
func SemPost(s Semaphore) error { return s.Post() }

// SemGetValue returns a snapshot of the value of s.
func SemGetValue(s Semaphore) (int, error) { return s.GetValue() }
