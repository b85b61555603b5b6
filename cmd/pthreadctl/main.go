// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pthreadctl inspects and drives the gopthread runtime.
//
// Usage:
//
//	pthreadctl sem open /jobs --create --value 4 --hold 1h   # keep a named semaphore alive
//	pthreadctl sem post /jobs                                # from another shell or host
//	pthreadctl sem wait /jobs --timeout 5s
//	pthreadctl threads demo --workers 8                      # spawn, cancel and join threads
//	pthreadctl fork                                          # run atfork handlers around a re-exec
//	pthreadctl config                                        # print the effective configuration
//
// Named semaphores outlive a single invocation only with the redis backend
// (--semaphore.backend=redis) and while some process holds them open.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/kolkov/gopthread/internal/config"
	"github.com/kolkov/gopthread/pthread"
)

const configFileFlag = "config.file"

func main() {
	// A process started by `pthreadctl fork` runs its child handlers first.
	registerForkHandlers()
	pthread.ChildStart()

	app := kingpin.New("pthreadctl", "Drive the gopthread runtime: named semaphores, threads and fork hooks.")
	app.Version(pthread.Version)
	app.HelpFlag.Short('h')
	app.Flag(configFileFlag, "YAML configuration file. Flags override its values.").String()

	var cfg config.Config
	bindConfigFlags(app, &cfg)
	if path := configFile(os.Args[1:]); path != "" {
		if err := config.LoadFile(path, &cfg); err != nil {
			exitWithErr(err)
		}
	}

	app.PreAction(func(*kingpin.ParseContext) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		return pthread.Configure(cfg, pthread.WithLogger(newLogger(cfg.LogLevel)))
	})

	semCmd := app.Command("sem", "Operate on named semaphores.")
	registerSemCommands(semCmd)

	threadsCmd := app.Command("threads", "Thread runtime tools.")
	demo := &demoCommand{}
	demoCmd := threadsCmd.Command("demo", "Start workers, cancel half of them and join all.").Action(demo.run)
	demo.workers = demoCmd.Flag("workers", "Number of worker threads.").Default("8").Int()
	demo.work = demoCmd.Flag("work", "How long uncanceled workers run.").Default("50ms").Duration()
	demo.list = demoCmd.Flag("list", "Print the thread table before canceling.").Bool()
	demo.stacks = demoCmd.Flag("stacks", "Print the thread table and every creation stack before canceling.").Bool()

	app.Command("fork", "Run registered atfork handlers around a re-execution of this program.").Action(func(*kingpin.ParseContext) error {
		return runFork()
	})

	app.Command("config", "Print the effective configuration as YAML.").Action(func(*kingpin.ParseContext) error {
		out, err := config.Dump(cfg)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	})

	app.Command("version", "Print the library version.").Action(func(*kingpin.ParseContext) error {
		info := pthread.GetInfo()
		fmt.Printf("pthreadctl %s (semaphore backend: %s)\n", info.Version, info.SemaphoreBackend)
		return nil
	})

	if _, err := app.Parse(os.Args[1:]); err != nil {
		exitWithErr(err)
	}
}

// configFile finds --config.file before the full parse, so the file can be
// loaded underneath the flags.
func configFile(args []string) string {
	for i, a := range args {
		for _, prefix := range []string{"--" + configFileFlag, "-" + configFileFlag} {
			switch {
			case a == prefix && i+1 < len(args):
				return args[i+1]
			case strings.HasPrefix(a, prefix+"="):
				return strings.TrimPrefix(a, prefix+"=")
			}
		}
	}
	return ""
}

// bindConfigFlags stores the flag defaults in cfg and exposes every config
// flag as a kingpin flag writing into it. The kingpin flags carry no
// defaults of their own, so values loaded from the config file survive
// unless a flag overrides them.
func bindConfigFlags(app *kingpin.Application, cfg *config.Config) {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	fs.VisitAll(func(f *flag.Flag) {
		app.Flag(f.Name, f.Usage).SetValue(f.Value)
	})
}

func newLogger(lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, pthread.LevelOption(lvl))
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}

func exitWithErr(err error) {
	fmt.Fprintf(os.Stderr, "pthreadctl: %v\n", err)
	os.Exit(1)
}
