// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config defines the runtime configuration for gopthread.
//
// Configuration is a YAML document whose every field can also be set by a
// command-line flag. Flags registered by RegisterFlags carry the defaults;
// a YAML file loaded afterwards overrides only the keys it names.
package config

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Semaphore backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the top-level runtime configuration.
type Config struct {
	Threads   ThreadsConfig   `yaml:"threads"`
	Semaphore SemaphoreConfig `yaml:"semaphore"`
	LogLevel  string          `yaml:"log_level"`
}

// ThreadsConfig configures the thread lifecycle manager.
type ThreadsConfig struct {
	// MaxThreads bounds threads started by Create and not yet reaped; 0
	// means unlimited. Create fails with EAGAIN beyond it. Goroutines
	// adopted as threads do not count.
	MaxThreads int `yaml:"max_threads"`

	// AllowSuspend enables the non-POSIX suspend/continue extension.
	AllowSuspend bool `yaml:"allow_suspend"`

	// BindOSThreads pins every created thread to its own OS thread.
	BindOSThreads bool `yaml:"bind_os_threads"`

	// ScavengeInterval is the number of goroutine adoptions between scans
	// for adopted goroutines that have exited.
	ScavengeInterval int `yaml:"scavenge_interval"`
}

// SemaphoreConfig configures the named semaphore namespace.
type SemaphoreConfig struct {
	Backend string `yaml:"backend"`

	// GlobalNamespace prepends the session-independent prefix to every
	// mangled name.
	GlobalNamespace bool `yaml:"global_namespace"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis semaphore backend.
type RedisConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	KeyPrefix  string        `yaml:"key_prefix"`
	Timeout    time.Duration `yaml:"timeout"`
	MinBackoff time.Duration `yaml:"min_backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// RegisterFlags adds the flags required to config this to the given FlagSet.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.Threads.RegisterFlags(f)
	cfg.Semaphore.RegisterFlags(f)
	f.StringVar(&cfg.LogLevel, "log.level", "info", "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error]")
}

// RegisterFlags adds the flags required to config this to the given FlagSet.
func (cfg *ThreadsConfig) RegisterFlags(f *flag.FlagSet) {
	f.IntVar(&cfg.MaxThreads, "threads.max", 0, "Maximum number of created threads not yet joined or finished detached. 0 means unlimited.")
	f.BoolVar(&cfg.AllowSuspend, "threads.allow-suspend", false, "Enable the unsafe suspend/continue extension. A thread suspended while holding a lock can deadlock the process.")
	f.BoolVar(&cfg.BindOSThreads, "threads.bind-os-threads", false, "Pin every created thread to a dedicated OS thread.")
	f.IntVar(&cfg.ScavengeInterval, "threads.scavenge-interval", 1000, "Number of adopted goroutines between scans that reclaim exited ones.")
}

// RegisterFlags adds the flags required to config this to the given FlagSet.
func (cfg *SemaphoreConfig) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.Backend, "semaphore.backend", BackendMemory, "Named semaphore backend. Valid values: [memory, redis]")
	f.BoolVar(&cfg.GlobalNamespace, "semaphore.global-namespace", false, `Prefix mangled semaphore names with "Global\" so they are visible across sessions.`)
	cfg.Redis.RegisterFlagsWithPrefix("semaphore.", f)
}

// RegisterFlagsWithPrefix adds the flags required to config this to the given FlagSet.
func (cfg *RedisConfig) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Endpoint, prefix+"redis.endpoint", "", "Redis endpoint (host:port) of the named semaphore store.")
	f.StringVar(&cfg.Username, prefix+"redis.username", "", "Username for Redis ACL authentication.")
	f.StringVar(&cfg.Password, prefix+"redis.password", "", "Password for Redis authentication.")
	f.IntVar(&cfg.DB, prefix+"redis.db", 0, "Redis database index.")
	f.StringVar(&cfg.KeyPrefix, prefix+"redis.key-prefix", "gopthread:sem", "Prefix of the Redis keys holding semaphore state.")
	f.DurationVar(&cfg.Timeout, prefix+"redis.timeout", 500*time.Millisecond, "Timeout of a single Redis command.")
	f.DurationVar(&cfg.MinBackoff, prefix+"redis.min-backoff", time.Millisecond, "Initial poll interval of a blocked semaphore wait.")
	f.DurationVar(&cfg.MaxBackoff, prefix+"redis.max-backoff", 50*time.Millisecond, "Maximum poll interval of a blocked semaphore wait.")
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	if cfg.Threads.MaxThreads < 0 {
		return errors.New("threads.max_threads must not be negative")
	}
	if cfg.Threads.ScavengeInterval < 0 {
		return errors.New("threads.scavenge_interval must not be negative")
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	return cfg.Semaphore.Validate()
}

// Validate checks the semaphore configuration.
func (cfg *SemaphoreConfig) Validate() error {
	switch cfg.Backend {
	case "", BackendMemory:
		return nil
	case BackendRedis:
		if cfg.Redis.Endpoint == "" {
			return errors.New("semaphore.redis.endpoint is required by the redis backend")
		}
		if cfg.Redis.Timeout <= 0 {
			return errors.New("semaphore.redis.timeout must be positive")
		}
		if cfg.Redis.MinBackoff <= 0 {
			return errors.New("semaphore.redis.min_backoff must be positive")
		}
		if cfg.Redis.MaxBackoff < cfg.Redis.MinBackoff {
			return errors.New("semaphore.redis.max_backoff must not be less than min_backoff")
		}
		return nil
	default:
		return errors.Errorf("unknown semaphore.backend %q", cfg.Backend)
	}
}

// Default returns the configuration with every flag default applied.
func Default() Config {
	var cfg Config
	fs := flag.NewFlagSet("defaults", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	return cfg
}

// Load reads YAML from r on top of cfg. Unknown keys are an error.
func Load(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(err, "decode config")
	}
	return nil
}

// LoadFile reads the YAML file at path on top of cfg.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open config file")
	}
	defer f.Close()
	return Load(f, cfg)
}

// Dump renders cfg as YAML with the password redacted.
func Dump(cfg Config) ([]byte, error) {
	if cfg.Semaphore.Redis.Password != "" {
		cfg.Semaphore.Redis.Password = "********"
	}
	out, err := yaml.Marshal(cfg)
	return out, errors.Wrap(err, "encode config")
}
