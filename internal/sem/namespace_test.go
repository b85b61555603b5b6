// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sem

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/kolkov/gopthread/internal/config"
	"github.com/kolkov/gopthread/internal/errno"
	"github.com/kolkov/gopthread/internal/metrics"
)

type backendFactory func(t *testing.T) *Namespace

func memoryNamespace(*testing.T) *Namespace {
	return NewNamespaceWithKernel(config.SemaphoreConfig{}, NewMemoryKernel(), nil, nil)
}

func redisConfig(t *testing.T) (config.SemaphoreConfig, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	cfg := config.Default().Semaphore
	cfg.Backend = config.BackendRedis
	cfg.Redis.Endpoint = srv.Addr()
	return cfg, srv
}

func redisNamespace(t *testing.T) *Namespace {
	t.Helper()
	cfg, _ := redisConfig(t)
	ns, err := NewNamespace(cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, ns.Close()) })
	return ns
}

var backends = map[string]backendFactory{
	"memory": memoryNamespace,
	"redis":  redisNamespace,
}

func forEachBackend(t *testing.T, fn func(t *testing.T, ns *Namespace)) {
	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestOpenSharesCounter(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Namespace) {
		a, err := ns.Open("/shared", OCreate, 0o600, 0)
		require.NoError(t, err)
		b, err := ns.Open("/shared", OCreate, 0o600, 5)
		require.NoError(t, err, "second create opens the existing object")

		require.NoError(t, a.Post())
		v, err := b.GetValue()
		require.NoError(t, err)
		assert.Equal(t, 1, v, "value of the second open is ignored")

		require.NoError(t, b.TryWait())
		assert.ErrorIs(t, a.TryWait(), errno.EAGAIN)

		assert.Equal(t, 2, ns.OpenHandles())
		require.NoError(t, a.Close())
		require.NoError(t, b.Close())
		assert.Zero(t, ns.OpenHandles())
	})
}

func TestOpenFlags(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Namespace) {
		_, err := ns.Open("/absent", 0, 0, 0)
		assert.ErrorIs(t, err, errno.ENOENT)

		s, err := ns.Open("/excl", OCreate|OExcl, 0o600, 1)
		require.NoError(t, err)
		_, err = ns.Open("/excl", OCreate|OExcl, 0o600, 1)
		assert.ErrorIs(t, err, errno.EEXIST)

		o, err := ns.Open("/excl", 0, 0, 0)
		require.NoError(t, err)
		require.NoError(t, o.Close())
		require.NoError(t, s.Close())
		assert.ErrorIs(t, s.Close(), errno.EINVAL)
		assert.ErrorIs(t, s.Post(), errno.EINVAL)

		// Gone with its last reference.
		_, err = ns.Open("/excl", 0, 0, 0)
		assert.ErrorIs(t, err, errno.ENOENT)
	})
}

func TestOpenTooLongLeavesNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Namespace) {
		_, err := ns.Open(strings.Repeat("x", MaxPath+1), OCreate, 0o600, 1)
		assert.ErrorIs(t, err, errno.EINVAL)
		_, err = ns.Open("", OCreate, 0o600, 1)
		assert.ErrorIs(t, err, errno.ENOENT)
		assert.Zero(t, ns.OpenHandles())

		s, err := ns.Open(strings.Repeat("x", MaxPath), OCreate|OExcl, 0o600, 1)
		require.NoError(t, err, "nothing was created by the failed opens")
		require.NoError(t, s.Close())
	})
}

func TestUnlink(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Namespace) {
		old, err := ns.Open("/u", OCreate, 0o600, 3)
		require.NoError(t, err)

		require.NoError(t, ns.Unlink("/u"))
		assert.ErrorIs(t, ns.Unlink("/u"), errno.ENOENT)

		fresh, err := ns.Open("/u", OCreate|OExcl, 0o600, 0)
		require.NoError(t, err, "unlinked name can be created again")

		v, err := old.GetValue()
		require.NoError(t, err)
		assert.Equal(t, 3, v, "existing handle keeps the old object")
		v, err = fresh.GetValue()
		require.NoError(t, err)
		assert.Zero(t, v)

		require.NoError(t, old.Close())
		require.NoError(t, fresh.Close())
	})
}

func TestNamedTimedWait(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Namespace) {
		s, err := ns.Open("/tw", OCreate, 0o600, 0)
		require.NoError(t, err)
		defer func() { require.NoError(t, s.Close()) }()

		err = s.TimedWait(time.Now().Add(20 * time.Millisecond))
		assert.ErrorIs(t, err, errno.ETIMEDOUT)

		h := spawn(t, func() any {
			return s.TimedWait(time.Now().Add(5 * time.Second))
		})
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, s.Post())
		assert.Nil(t, join(t, h))
	})
}

func TestNamedOverflow(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Namespace) {
		s, err := ns.Open("/max", OCreate, 0o600, SemValueMax)
		require.NoError(t, err)
		assert.ErrorIs(t, s.Post(), errno.EOVERFLOW)
		require.NoError(t, s.Close())
	})
}

func TestGlobalNamespace(t *testing.T) {
	k := NewMemoryKernel()
	global := NewNamespaceWithKernel(config.SemaphoreConfig{GlobalNamespace: true}, k, nil, nil)
	local := NewNamespaceWithKernel(config.SemaphoreConfig{}, k, nil, nil)

	g, err := global.Open(`a\b`, OCreate, 0o600, 0)
	require.NoError(t, err)
	assert.Equal(t, `Global\a/b`, g.Name())

	_, err = local.Open(`a\b`, 0, 0, 0)
	assert.ErrorIs(t, err, errno.ENOENT, "prefixed and unprefixed names differ")

	_, err = local.Open(`Global\a\b`, 0, 0, 0)
	assert.ErrorIs(t, err, errno.ENOENT, "the prefix cannot be spelled by hand")

	require.NoError(t, g.Close())
}

func TestSharedMemoryAcrossNamespaces(t *testing.T) {
	a, err := NewNamespace(config.SemaphoreConfig{Backend: config.BackendMemory}, nil, nil)
	require.NoError(t, err)
	b, err := NewNamespace(config.SemaphoreConfig{}, nil, nil)
	require.NoError(t, err)

	x, err := a.Open("/process-wide", OCreate|OExcl, 0o600, 0)
	require.NoError(t, err)
	y, err := b.Open("/process-wide", 0, 0, 0)
	require.NoError(t, err)

	require.NoError(t, y.Post())
	require.NoError(t, x.TryWait())
	require.NoError(t, x.Close())
	require.NoError(t, y.Close())
}

func TestRedisIncompatibleFormat(t *testing.T) {
	cfg, srv := redisConfig(t)
	ns, err := NewNamespace(cfg, nil, nil)
	require.NoError(t, err)
	defer ns.Close()

	s, err := ns.Open("/v", OCreate, 0o600, 1)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// An object written by a future, incompatible version.
	srv.Set(cfg.Redis.KeyPrefix+":name:/v", "99")
	srv.HSet(cfg.Redis.KeyPrefix+":obj:99", "value", "1", "refs", "1", "version", "v2.0.0", "name", cfg.Redis.KeyPrefix+":name:/v", "id", "99")

	_, err = ns.Open("/v", 0, 0, 0)
	assert.ErrorIs(t, err, errno.EINVAL)
	assert.Equal(t, "1", srv.HGet(cfg.Redis.KeyPrefix+":obj:99", "refs"), "refused open released its reference")
}

func TestRedisUnreachable(t *testing.T) {
	cfg := config.Default().Semaphore
	cfg.Backend = config.BackendRedis
	cfg.Redis.Endpoint = "127.0.0.1:1"
	_, err := NewNamespace(cfg, nil, nil)
	assert.Error(t, err)
}

func TestNamespaceMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	ns := NewNamespaceWithKernel(config.SemaphoreConfig{}, NewMemoryKernel(), nil, m)

	s, err := ns.Open("/m", OCreate, 0o600, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SemaphoresOpen.WithLabelValues("memory")))

	assert.ErrorIs(t, s.TimedWait(time.Now().Add(time.Millisecond)), errno.ETIMEDOUT)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SemaphoreTimeout))

	require.NoError(t, s.Close())
	assert.Zero(t, testutil.ToFloat64(m.SemaphoresOpen.WithLabelValues("memory")))
}

// flakyKernel wraps a Kernel whose next failReleases releases fail.
type flakyKernel struct {
	Kernel
	failReleases atomic.Int32
	closes       atomic.Int32
}

func (k *flakyKernel) Open(ctx context.Context, name string, flags OpenFlag, mode uint32, value uint32) (Object, error) {
	obj, err := k.Kernel.Open(ctx, name, flags, mode, value)
	if err != nil {
		return nil, err
	}
	return &flakyObject{Object: obj, k: k}, nil
}

func (k *flakyKernel) Close() error {
	k.closes.Inc()
	return nil
}

type flakyObject struct {
	Object
	k *flakyKernel
}

func (o *flakyObject) Release(ctx context.Context) error {
	if o.k.failReleases.Dec() >= 0 {
		return errors.New("connection reset by peer")
	}
	return o.Object.Release(ctx)
}

func TestNamedCloseFailureKeepsHandle(t *testing.T) {
	k := &flakyKernel{Kernel: NewMemoryKernel()}
	k.failReleases.Store(1)
	ns := NewNamespaceWithKernel(config.SemaphoreConfig{}, k, nil, nil)

	s, err := ns.Open("/flaky", OCreate, 0o600, 0)
	require.NoError(t, err)

	err = s.Close()
	require.Error(t, err)
	assert.NotErrorIs(t, err, errno.EINVAL)
	assert.Equal(t, 1, ns.OpenHandles())

	require.NoError(t, s.Post(), "handle is still usable")
	v, err := s.GetValue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, s.Close(), "close can be retried")
	assert.Zero(t, ns.OpenHandles())
	assert.ErrorIs(t, s.Close(), errno.EINVAL)

	_, err = ns.Open("/flaky", 0, 0, 0)
	assert.ErrorIs(t, err, errno.ENOENT, "object went with its last reference")
}

func TestNamespaceRetire(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		k := &flakyKernel{Kernel: NewMemoryKernel()}
		ns := NewNamespaceWithKernel(config.SemaphoreConfig{}, k, nil, nil)
		require.NoError(t, ns.Retire())
		assert.Equal(t, int32(1), k.closes.Load())
	})

	t.Run("open handles", func(t *testing.T) {
		k := &flakyKernel{Kernel: NewMemoryKernel()}
		ns := NewNamespaceWithKernel(config.SemaphoreConfig{}, k, nil, nil)
		a, err := ns.Open("/r", OCreate, 0o600, 0)
		require.NoError(t, err)
		b, err := ns.Open("/r", 0, 0, 0)
		require.NoError(t, err)

		require.NoError(t, ns.Retire())
		assert.Zero(t, k.closes.Load(), "handles still use the backend")

		require.NoError(t, a.Post())
		require.NoError(t, a.Close())
		assert.Zero(t, k.closes.Load())
		require.NoError(t, b.TryWait())
		require.NoError(t, b.Close())
		assert.Equal(t, int32(1), k.closes.Load(), "closed with the last handle")
	})
}
