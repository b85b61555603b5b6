// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pthread

import (
	"time"

	"github.com/kolkov/gopthread/internal/psync"
)

// Synchronization objects. They must be initialized with their Init
// function before use.
type (
	Mutex      = psync.Mutex
	MutexAttr  = psync.MutexAttr
	Cond       = psync.Cond
	CondAttr   = psync.CondAttr
	RWLock     = psync.RWLock
	RWLockAttr = psync.RWLockAttr
	MutexKind  = psync.Kind
	Scope      = psync.Scope
)

// Mutex kinds.
const (
	MutexNormal     = psync.KindNormal
	MutexRecursive  = psync.KindRecursive
	MutexErrorCheck = psync.KindErrorCheck
	MutexDefault    = psync.KindDefault
)

// Process-sharing scopes. ProcessShared objects are accepted but only
// shared within this process.
const (
	ProcessPrivate = psync.ScopePrivate
	ProcessShared  = psync.ScopeShared
)

// MutexInit initializes m. A nil attr selects a default mutex.
func MutexInit(m *Mutex, attr *MutexAttr) error {
	return m.Init(attr)
}

// MutexLock locks m.
func MutexLock(m *Mutex) error { return m.Lock() }

// MutexTryLock locks m or fails with EBUSY.
func MutexTryLock(m *Mutex) error { return m.TryLock() }

// MutexUnlock unlocks m.
func MutexUnlock(m *Mutex) error { return m.Unlock() }

// MutexDestroy invalidates m.
func MutexDestroy(m *Mutex) error { return m.Destroy() }

// CondInit initializes c.
func CondInit(c *Cond, attr *CondAttr) error {
	return c.Init(attr)
}

// CondWait releases m, waits for c and locks m again. Cancellation point.
func CondWait(c *Cond, m *Mutex) error { return c.Wait(m) }

// CondTimedWait is CondWait with an absolute deadline. Cancellation point.
func CondTimedWait(c *Cond, m *Mutex, abstime time.Time) error {
	return c.TimedWait(m, abstime)
}

// CondSignal wakes one waiter of c.
func CondSignal(c *Cond) error { return c.Signal() }

// CondBroadcast wakes every waiter of c.
func CondBroadcast(c *Cond) error { return c.Broadcast() }

// CondDestroy invalidates c.
func CondDestroy(c *Cond) error { return c.Destroy() }

// RWLockInit initializes l.
func RWLockInit(l *RWLock, attr *RWLockAttr) error {
	return l.Init(attr)
}

// RWLockRdLock takes a read lock on l.
func RWLockRdLock(l *RWLock) error { return l.RdLock() }

// RWLockTryRdLock takes a read lock on l or fails with EBUSY.
func RWLockTryRdLock(l *RWLock) error { return l.TryRdLock() }

// RWLockWrLock takes the write lock on l.
func RWLockWrLock(l *RWLock) error { return l.WrLock() }

// RWLockTryWrLock takes the write lock on l or fails with EBUSY.
func RWLockTryWrLock(l *RWLock) error { return l.TryWrLock() }

// RWLockUnlock releases the caller's lock on l.
func RWLockUnlock(l *RWLock) error { return l.Unlock() }

// RWLockDestroy invalidates l.
func RWLockDestroy(l *RWLock) error { return l.Destroy() }
