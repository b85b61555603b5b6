// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package psync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/gopthread/internal/errno"
	"github.com/kolkov/gopthread/internal/handle"
)

func TestMutexZeroValue(t *testing.T) {
	var m Mutex
	assert.ErrorIs(t, m.Lock(), errno.EINVAL)
	assert.ErrorIs(t, m.Unlock(), errno.EINVAL)
	assert.ErrorIs(t, m.Destroy(), errno.EINVAL)
}

func TestMutexAttrValidation(t *testing.T) {
	tests := []struct {
		name string
		attr MutexAttr
		err  error
	}{
		{"default", MutexAttr{}, nil},
		{"recursive shared", MutexAttr{Kind: KindRecursive, Scope: ScopeShared}, nil},
		{"unknown kind", MutexAttr{Kind: Kind(9)}, errno.EINVAL},
		{"unknown scope", MutexAttr{Scope: Scope(5)}, errno.EINVAL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMutex(&tt.attr)
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestRecursiveMutex(t *testing.T) {
	m, err := NewMutex(&MutexAttr{Kind: KindRecursive})
	require.NoError(t, err)

	const n = 5
	for i := 0; i < n; i++ {
		require.NoError(t, m.Lock())
	}
	require.NoError(t, m.TryLock())
	for i := 0; i < n; i++ {
		require.NoError(t, m.Unlock())
	}

	// Still held once: another thread cannot take it.
	h := spawn(t, func() any { return m.TryLock() })
	assert.ErrorIs(t, join(t, h).(error), errno.EBUSY)

	require.NoError(t, m.Unlock())
	assert.ErrorIs(t, m.Unlock(), errno.EPERM)

	h = spawn(t, func() any {
		if err := m.TryLock(); err != nil {
			return err
		}
		return m.Unlock()
	})
	assert.Nil(t, join(t, h))
}

func TestErrorCheckMutex(t *testing.T) {
	m, err := NewMutex(&MutexAttr{Kind: KindErrorCheck})
	require.NoError(t, err)

	require.NoError(t, m.Lock())
	assert.ErrorIs(t, m.Lock(), errno.EDEADLK)

	h := spawn(t, func() any { return m.Unlock() })
	assert.ErrorIs(t, join(t, h).(error), errno.EPERM)

	h = spawn(t, func() any { return m.TryLock() })
	assert.ErrorIs(t, join(t, h).(error), errno.EBUSY, "foreign unlock left the mutex locked")

	require.NoError(t, m.Unlock())
	assert.ErrorIs(t, m.Unlock(), errno.EPERM)
}

func TestMutexHandoffFIFO(t *testing.T) {
	m, err := NewMutex(nil)
	require.NoError(t, err)
	require.NoError(t, m.Lock())

	var order []int
	var hs []handle.Handle
	for i := 0; i < 3; i++ {
		id := i
		h := spawn(t, func() any {
			if err := m.Lock(); err != nil {
				return err
			}
			order = append(order, id)
			return m.Unlock()
		})
		hs = append(hs, h)
		waitFor(t, func() bool { return m.waiters() == id+1 })
	}

	require.NoError(t, m.Unlock())
	for _, h := range hs {
		assert.Nil(t, join(t, h))
	}
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestMutexDestroy(t *testing.T) {
	m, err := NewMutex(nil)
	require.NoError(t, err)

	require.NoError(t, m.Lock())
	assert.ErrorIs(t, m.Destroy(), errno.EBUSY)
	assert.ErrorIs(t, m.Init(nil), errno.EBUSY)
	require.NoError(t, m.Unlock())

	require.NoError(t, m.Destroy())
	assert.ErrorIs(t, m.Lock(), errno.EINVAL)

	require.NoError(t, m.Init(&MutexAttr{Kind: KindErrorCheck}))
	assert.Equal(t, KindErrorCheck, m.Kind())
	require.NoError(t, m.Lock())
	require.NoError(t, m.Unlock())
}

func TestMutexCounter(t *testing.T) {
	m, err := NewMutex(nil)
	require.NoError(t, err)

	const workers, iters = 8, 500
	counter := 0

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for j := 0; j < iters; j++ {
				if err := m.Lock(); err != nil {
					return err
				}
				counter++
				if err := m.Unlock(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, workers*iters, counter)
}
