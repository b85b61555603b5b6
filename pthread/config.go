// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pthread

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kolkov/gopthread/internal/config"
	"github.com/kolkov/gopthread/internal/forkhook"
	"github.com/kolkov/gopthread/internal/metrics"
	"github.com/kolkov/gopthread/internal/sem"
	"github.com/kolkov/gopthread/internal/thread"
)

// Config is the runtime configuration. Its zero value is not valid; start
// from DefaultConfig.
type Config = config.Config

// DefaultConfig returns the configuration with every default applied.
func DefaultConfig() Config {
	return config.Default()
}

type options struct {
	logger     log.Logger
	registerer prometheus.Registerer
}

// Option customizes Configure.
type Option func(*options)

// WithLogger sets the logger of every component.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the runtime metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

var (
	mu sync.Mutex
	ns *sem.Namespace
)

// Configure applies cfg to the process-wide runtime.
//
// The thread manager is reconfigured in place: threads created before the
// call keep their handles, and Join, Cancel, Exit and the cleanup handlers
// work on them as before. The thread limit, logger and metrics of cfg apply
// from now on. A runtime that was shut down accepts new threads again.
//
// The semaphore namespace is replaced. Named semaphores opened before the
// call stay bound to the namespace that opened them; the old namespace is
// closed when the last of them is closed.
func Configure(cfg Config, opts ...Option) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	o := options{logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if cfg.LogLevel != "" {
		logger = level.NewFilter(logger, LevelOption(cfg.LogLevel))
	}
	m := metrics.New(o.registerer)

	space, err := sem.NewNamespace(cfg.Semaphore, logger, m)
	if err != nil {
		return err
	}

	mu.Lock()
	old := ns
	ns = space
	mu.Unlock()
	thread.Std().Reconfigure(cfg.Threads, logger, m)

	if old != nil {
		if err := old.Retire(); err != nil {
			level.Warn(logger).Log("msg", "closing previous semaphore namespace", "err", err)
		}
	}
	level.Debug(logger).Log("msg", "runtime configured", "semaphore_backend", space.Backend(), "max_threads", cfg.Threads.MaxThreads)
	return nil
}

// LevelOption maps a log_level value to a go-kit level filter.
func LevelOption(lvl string) level.Option {
	switch lvl {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

func threads() *thread.Manager {
	return thread.Std()
}

func namespace() *sem.Namespace {
	mu.Lock()
	defer mu.Unlock()
	if ns == nil {
		// The memory backend cannot fail.
		ns, _ = sem.NewNamespace(config.Default().Semaphore, nil, nil)
	}
	return ns
}

// Fork handlers outlive Configure: they belong to the process.
func forkHooks() *forkhook.Registry {
	return forkhook.Std()
}
