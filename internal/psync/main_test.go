// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package psync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kolkov/gopthread/internal/handle"
	"github.com/kolkov/gopthread/internal/thread"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// spawn runs fn on a new joinable thread of the process-wide manager.
func spawn(t *testing.T, fn func() any) handle.Handle {
	t.Helper()
	h, err := thread.Std().Create(nil, func(any) any { return fn() }, nil)
	require.NoError(t, err)
	return h
}

func join(t *testing.T, h handle.Handle) any {
	t.Helper()
	v, err := thread.Std().Join(h)
	require.NoError(t, err)
	return v
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func (m *Mutex) waiters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q.Len()
}

func (l *RWLock) waiters() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Len()
}
