// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/gopthread/internal/config"
	"github.com/kolkov/gopthread/internal/errno"
)

func TestDeferredCancelAtTestCancel(t *testing.T) {
	m := newTestManager(t, config.ThreadsConfig{})
	started := make(chan struct{})
	release := make(chan struct{})
	var cleaned, after bool

	h, err := m.Create(nil, func(any) any {
		self := m.Self()
		self.PushCleanup(func(any) { cleaned = true }, nil)
		close(started)
		// Not a cancellation point: the request stays pending.
		self.Park(release, time.Time{}, Uninterruptible)
		self.TestCancel()
		after = true
		return "not canceled"
	}, nil)
	require.NoError(t, err)

	<-started
	require.NoError(t, m.Cancel(h))
	close(release)

	v, err := m.Join(h)
	require.NoError(t, err)
	assert.Equal(t, Canceled, v)
	assert.True(t, cleaned)
	assert.False(t, after)
}

func TestCancelDisabled(t *testing.T) {
	m := newTestManager(t, config.ThreadsConfig{})
	started := make(chan struct{})
	release := make(chan struct{})
	var reenabled bool

	h, err := m.Create(nil, func(any) any {
		self := m.Self()
		old, err := self.SetCancelState(CancelDisable)
		if err != nil || old != CancelEnable {
			return "bad state"
		}
		close(started)
		self.Park(release, time.Time{}, CancelPoint)
		self.TestCancel()
		if !self.CancelPending() {
			return "request lost"
		}
		_, _ = self.SetCancelState(CancelEnable)
		reenabled = true
		self.TestCancel()
		return "not canceled"
	}, nil)
	require.NoError(t, err)

	<-started
	require.NoError(t, m.Cancel(h))
	close(release)

	v, err := m.Join(h)
	require.NoError(t, err)
	assert.Equal(t, Canceled, v)
	assert.True(t, reenabled, "request is held while disabled")
}

func TestCancelInterruptsJoin(t *testing.T) {
	m := newTestManager(t, config.ThreadsConfig{})
	release := make(chan struct{})

	target, err := m.Create(nil, func(any) any { <-release; return "target" }, nil)
	require.NoError(t, err)

	joining := make(chan struct{})
	joiner, err := m.Create(nil, func(any) any {
		close(joining)
		v, _ := m.Join(target)
		return v
	}, nil)
	require.NoError(t, err)

	<-joining
	require.Eventually(t, func() bool {
		th, _ := m.Lookup(target)
		th.mu.Lock()
		defer th.mu.Unlock()
		return th.joining
	}, time.Second, time.Millisecond)

	require.NoError(t, m.Cancel(joiner))
	v, err := m.Join(joiner)
	require.NoError(t, err)
	assert.Equal(t, Canceled, v)

	// The canceled joiner gave the target back.
	close(release)
	v, err = m.Join(target)
	require.NoError(t, err)
	assert.Equal(t, "target", v)
}

func TestAsyncCancelInterruptsWait(t *testing.T) {
	m := newTestManager(t, config.ThreadsConfig{})
	started := make(chan struct{})
	never := make(chan struct{})

	h, err := m.Create(nil, func(any) any {
		self := m.Self()
		if _, err := self.SetCancelType(CancelAsynchronous); err != nil {
			return err
		}
		close(started)
		if self.Park(never, time.Time{}, Uninterruptible) == Interrupted {
			self.Unwind()
		}
		return "woken"
	}, nil)
	require.NoError(t, err)

	<-started
	require.NoError(t, m.Cancel(h))

	v, err := m.Join(h)
	require.NoError(t, err)
	assert.Equal(t, Canceled, v)
}

func TestAsyncSelfCancel(t *testing.T) {
	m := newTestManager(t, config.ThreadsConfig{})
	h, err := m.Create(nil, func(any) any {
		self := m.Self()
		_, _ = self.SetCancelType(CancelAsynchronous)
		_ = m.Cancel(self.Handle())
		return "survived"
	}, nil)
	require.NoError(t, err)

	v, err := m.Join(h)
	require.NoError(t, err)
	assert.Equal(t, Canceled, v)
}

func TestDeferredSelfCancel(t *testing.T) {
	m := newTestManager(t, config.ThreadsConfig{})
	h, err := m.Create(nil, func(any) any {
		self := m.Self()
		_ = m.Cancel(self.Handle())
		if !self.CancelPending() {
			return "not pending"
		}
		self.TestCancel()
		return "survived"
	}, nil)
	require.NoError(t, err)

	v, err := m.Join(h)
	require.NoError(t, err)
	assert.Equal(t, Canceled, v)
}

func TestCleanupOnCancel(t *testing.T) {
	m := newTestManager(t, config.ThreadsConfig{})
	var order []int

	h, err := m.Create(nil, func(any) any {
		self := m.Self()
		for i := 1; i <= 3; i++ {
			self.PushCleanup(func(arg any) {
				order = append(order, arg.(int))
				// Cancellation is disabled while unwinding.
				self.TestCancel()
			}, i)
		}
		_ = m.Cancel(self.Handle())
		self.TestCancel()
		return nil
	}, nil)
	require.NoError(t, err)

	v, err := m.Join(h)
	require.NoError(t, err)
	assert.Equal(t, Canceled, v)
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestSetCancelInvalid(t *testing.T) {
	m := newTestManager(t, config.ThreadsConfig{})
	self := m.Self()

	_, err := self.SetCancelState(CancelState(7))
	assert.ErrorIs(t, err, errno.EINVAL)
	_, err = self.SetCancelType(CancelType(7))
	assert.ErrorIs(t, err, errno.EINVAL)

	assert.Equal(t, CancelEnable, self.CancelState())
	assert.Equal(t, CancelDeferred, self.CancelType())
}

func TestParkTimeout(t *testing.T) {
	m := newTestManager(t, config.ThreadsConfig{})
	self := m.Self()
	never := make(chan struct{})

	assert.Equal(t, TimedOut, self.Park(never, time.Now().Add(5*time.Millisecond), CancelPoint))
	assert.Equal(t, TimedOut, self.Park(never, time.Now().Add(-time.Second), CancelPoint))

	ready := make(chan struct{})
	close(ready)
	assert.Equal(t, Woken, self.Park(ready, time.Now().Add(-time.Second), CancelPoint))
	assert.Equal(t, Woken, self.Park(ready, time.Time{}, CancelPoint))
}

func TestCanceledValue(t *testing.T) {
	assert.Equal(t, "PTHREAD_CANCELED", Canceled.(interface{ String() string }).String())
}

func TestOnceRetriesAfterExit(t *testing.T) {
	m := newTestManager(t, config.ThreadsConfig{})
	var once Once
	calls := 0

	h, err := m.Create(nil, func(any) any {
		once.Do(func() {
			calls++
			m.Exit("inside once")
		})
		return "unreachable"
	}, nil)
	require.NoError(t, err)

	v, err := m.Join(h)
	require.NoError(t, err)
	assert.Equal(t, "inside once", v)
	assert.False(t, once.Done())

	once.Do(func() { calls++ })
	once.Do(func() { calls++ })
	assert.True(t, once.Done())
	assert.Equal(t, 2, calls)
}
