// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sem

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/backoff"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/mod/semver"

	"github.com/kolkov/gopthread/internal/config"
	"github.com/kolkov/gopthread/internal/errno"
	"github.com/kolkov/gopthread/internal/thread"
)

// formatVersion is stamped on every object this package creates. Objects
// with a different major version are refused.
const formatVersion = "v1.0.0"

// Key layout, below the configured prefix:
//
//	<prefix>:seq            object id allocator
//	<prefix>:name:<name>    id of the object currently linked under name
//	<prefix>:obj:<id>       hash {value, refs, version, name, id}
//
// Names point at objects, so unlinking a name leaves open references on
// the old object working.
var (
	openScript = redis.NewScript(`
local id = redis.call('GET', KEYS[1])
if id then
  if ARGV[2] == '1' then return redis.error_reply('EEXIST') end
  local obj = ARGV[5] .. id
  redis.call('HINCRBY', obj, 'refs', 1)
  return {id, redis.call('HGET', obj, 'version')}
end
if ARGV[1] ~= '1' then return redis.error_reply('ENOENT') end
id = tostring(redis.call('INCR', KEYS[2]))
redis.call('HSET', ARGV[5] .. id, 'value', ARGV[3], 'refs', 1, 'version', ARGV[4], 'name', KEYS[1], 'id', id)
redis.call('SET', KEYS[1], id)
return {id, ARGV[4]}
`)

	tryWaitScript = redis.NewScript(`
local v = tonumber(redis.call('HGET', KEYS[1], 'value'))
if v == nil then return redis.error_reply('EINVAL') end
if v <= 0 then return 0 end
redis.call('HINCRBY', KEYS[1], 'value', -1)
return 1
`)

	postScript = redis.NewScript(`
local v = tonumber(redis.call('HGET', KEYS[1], 'value'))
if v == nil then return redis.error_reply('EINVAL') end
if v >= tonumber(ARGV[1]) then return redis.error_reply('EOVERFLOW') end
return redis.call('HINCRBY', KEYS[1], 'value', 1)
`)

	releaseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return redis.error_reply('EINVAL') end
local refs = redis.call('HINCRBY', KEYS[1], 'refs', -1)
if refs > 0 then return refs end
local name = redis.call('HGET', KEYS[1], 'name')
local id = redis.call('HGET', KEYS[1], 'id')
if name and redis.call('GET', name) == id then redis.call('DEL', name) end
redis.call('DEL', KEYS[1])
return 0
`)
)

// scriptErrors maps error replies of the scripts back to status codes.
var scriptErrors = []errno.Errno{errno.EEXIST, errno.ENOENT, errno.EINVAL, errno.EOVERFLOW}

func scriptError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, e := range scriptErrors {
		if strings.Contains(msg, e.Name()) {
			return e
		}
	}
	return err
}

type redisKernel struct {
	cfg    config.RedisConfig
	client redis.UniversalClient
	logger log.Logger
}

// NewRedisKernel connects to the Redis endpoint in cfg. Objects are shared
// with every process using the same endpoint and key prefix.
func NewRedisKernel(cfg config.RedisConfig, logger log.Logger) (Kernel, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Endpoint,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connect to redis at %s", cfg.Endpoint)
	}
	return &redisKernel{
		cfg:    cfg,
		client: client,
		logger: log.With(logger, "backend", "redis"),
	}, nil
}

func (k *redisKernel) Backend() string { return config.BackendRedis }

func (k *redisKernel) nameKey(name string) string { return k.cfg.KeyPrefix + ":name:" + name }
func (k *redisKernel) objPrefix() string          { return k.cfg.KeyPrefix + ":obj:" }
func (k *redisKernel) seqKey() string             { return k.cfg.KeyPrefix + ":seq" }

// command bounds one round trip by the configured timeout.
func (k *redisKernel) command(ctx context.Context) (context.Context, context.CancelFunc) {
	if k.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, k.cfg.Timeout)
}

func luaBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (k *redisKernel) Open(ctx context.Context, name string, flags OpenFlag, _ uint32, value uint32) (Object, error) {
	if value > SemValueMax {
		return nil, errors.Wrapf(errno.EINVAL, "semaphore open: value %d exceeds %d", value, SemValueMax)
	}
	ctx, cancel := k.command(ctx)
	defer cancel()

	create := flags&OCreate != 0
	excl := create && flags&OExcl != 0
	res, err := openScript.Run(ctx, k.client,
		[]string{k.nameKey(name), k.seqKey()},
		luaBool(create), luaBool(excl), value, formatVersion, k.objPrefix(),
	).StringSlice()
	if err = scriptError(err); err != nil {
		return nil, errors.Wrapf(err, "semaphore %q", name)
	}
	if len(res) != 2 {
		return nil, errors.Errorf("semaphore %q: unexpected open reply %v", name, res)
	}

	ref := &redisRef{k: k, key: k.objPrefix() + res[0]}
	if version := res[1]; !semver.IsValid(version) || semver.Major(version) != semver.Major(formatVersion) {
		level.Warn(k.logger).Log("msg", "refusing semaphore with incompatible format", "name", name, "version", version, "want", formatVersion)
		_ = ref.Release(ctx)
		return nil, errors.Wrapf(errno.EINVAL, "semaphore %q has format %s, want %s", name, version, semver.Major(formatVersion))
	}
	return ref, nil
}

func (k *redisKernel) Unlink(ctx context.Context, name string) error {
	ctx, cancel := k.command(ctx)
	defer cancel()
	n, err := k.client.Del(ctx, k.nameKey(name)).Result()
	if err != nil {
		return errors.Wrapf(err, "unlink semaphore %q", name)
	}
	if n == 0 {
		return errors.Wrapf(errno.ENOENT, "semaphore %q", name)
	}
	return nil
}

func (k *redisKernel) Close() error {
	return k.client.Close()
}

type redisRef struct {
	k   *redisKernel
	key string
}

func (r *redisRef) TryWait(ctx context.Context) error {
	ctx, cancel := r.k.command(ctx)
	defer cancel()
	ok, err := tryWaitScript.Run(ctx, r.k.client, []string{r.key}).Int64()
	if err = scriptError(err); err != nil {
		return errors.Wrap(err, "semaphore trywait")
	}
	if ok == 0 {
		return errors.Wrap(errno.EAGAIN, "semaphore trywait")
	}
	return nil
}

// Wait polls TryWait with jittered exponential backoff. Between attempts
// the thread parks at a cancellation point.
func (r *redisRef) Wait(ctx context.Context, self *thread.Thread, deadline time.Time) error {
	b := backoff.New(ctx, backoff.Config{
		MinBackoff: r.k.cfg.MinBackoff,
		MaxBackoff: r.k.cfg.MaxBackoff,
	})
	for b.Ongoing() {
		err := r.TryWait(ctx)
		if !errors.Is(err, errno.EAGAIN) {
			return err
		}

		until := time.Now().Add(b.NextDelay())
		last := !deadline.IsZero() && !until.Before(deadline)
		if last {
			until = deadline
		}
		switch self.Park(nil, until, thread.CancelPoint) {
		case thread.Interrupted:
			self.Unwind()
		case thread.TimedOut:
			if last {
				if err := r.TryWait(ctx); !errors.Is(err, errno.EAGAIN) {
					return err
				}
				return errors.Wrap(errno.ETIMEDOUT, "semaphore timedwait")
			}
		}
	}
	return errors.Wrap(b.Err(), "semaphore wait")
}

func (r *redisRef) Post(ctx context.Context) error {
	ctx, cancel := r.k.command(ctx)
	defer cancel()
	err := postScript.Run(ctx, r.k.client, []string{r.key}, SemValueMax).Err()
	return errors.Wrap(scriptError(err), "semaphore post")
}

func (r *redisRef) Value(ctx context.Context) (int, error) {
	ctx, cancel := r.k.command(ctx)
	defer cancel()
	v, err := r.k.client.HGet(ctx, r.key, "value").Int()
	if errors.Is(err, redis.Nil) {
		return 0, errors.Wrap(errno.EINVAL, "semaphore getvalue: object is gone")
	}
	return v, errors.Wrap(err, "semaphore getvalue")
}

func (r *redisRef) Release(ctx context.Context) error {
	ctx, cancel := r.k.command(ctx)
	defer cancel()
	err := releaseScript.Run(ctx, r.k.client, []string{r.key}).Err()
	return errors.Wrap(scriptError(err), "semaphore close")
}

func (r *redisRef) String() string {
	return fmt.Sprintf("redis semaphore %s", r.key)
}
