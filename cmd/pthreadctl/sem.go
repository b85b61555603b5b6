// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/kolkov/gopthread/pthread"
)

// semCommand holds the arguments shared by the sem subcommands.
type semCommand struct {
	name *string
}

func registerSemCommands(parent *kingpin.CmdClause) {
	open := &semOpenCommand{}
	cmd := parent.Command("open", "Open (and optionally create) a semaphore, print its value and keep it open.").Action(open.run)
	open.name = cmd.Arg("name", "Semaphore name.").Required().String()
	open.create = cmd.Flag("create", "Create the semaphore if it does not exist.").Bool()
	open.excl = cmd.Flag("excl", "With --create, fail if the semaphore exists.").Bool()
	open.value = cmd.Flag("value", "Initial value of a created semaphore.").Default("0").Uint32()
	open.hold = cmd.Flag("hold", "Keep the semaphore open this long; 0 until interrupted.").Default("0s").Duration()

	post := &semPostCommand{}
	cmd = parent.Command("post", "Post a semaphore.").Action(post.run)
	post.name = cmd.Arg("name", "Semaphore name.").Required().String()
	post.count = cmd.Flag("count", "Number of posts.").Default("1").Int()

	wait := &semWaitCommand{}
	cmd = parent.Command("wait", "Wait on a semaphore.").Action(wait.run)
	wait.name = cmd.Arg("name", "Semaphore name.").Required().String()
	wait.timeout = cmd.Flag("timeout", "Give up after this long; 0 waits forever.").Default("0s").Duration()

	try := &semTryWaitCommand{}
	cmd = parent.Command("trywait", "Decrement a semaphore without blocking.").Action(try.run)
	try.name = cmd.Arg("name", "Semaphore name.").Required().String()

	get := &semGetValueCommand{}
	cmd = parent.Command("getvalue", "Print the value of a semaphore.").Action(get.run)
	get.name = cmd.Arg("name", "Semaphore name.").Required().String()

	unlink := &semUnlinkCommand{}
	cmd = parent.Command("unlink", "Remove a semaphore name.").Action(unlink.run)
	unlink.name = cmd.Arg("name", "Semaphore name.").Required().String()
}

// with opens the existing semaphore, runs fn and closes it.
func (c *semCommand) with(fn func(s *pthread.NamedSem) error) error {
	s, err := pthread.SemOpen(*c.name, 0, 0, 0)
	if err != nil {
		return err
	}
	defer func() { _ = pthread.SemClose(s) }()
	return fn(s)
}

type semOpenCommand struct {
	semCommand
	create, excl *bool
	value        *uint32
	hold         *time.Duration
}

func (c *semOpenCommand) run(*kingpin.ParseContext) error {
	var flags pthread.OpenFlag
	if *c.create {
		flags |= pthread.O_CREAT
	}
	if *c.excl {
		flags |= pthread.O_EXCL
	}
	s, err := pthread.SemOpen(*c.name, flags, 0o600, *c.value)
	if err != nil {
		return err
	}
	defer func() { _ = pthread.SemClose(s) }()

	v, err := pthread.SemGetValue(s)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%d\n", s.Name(), v)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *c.hold > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *c.hold)
		defer cancel()
	}
	<-ctx.Done()
	return nil
}

type semPostCommand struct {
	semCommand
	count *int
}

func (c *semPostCommand) run(*kingpin.ParseContext) error {
	return c.with(func(s *pthread.NamedSem) error {
		for i := 0; i < *c.count; i++ {
			if err := pthread.SemPost(s); err != nil {
				return err
			}
		}
		return nil
	})
}

type semWaitCommand struct {
	semCommand
	timeout *time.Duration
}

func (c *semWaitCommand) run(*kingpin.ParseContext) error {
	return c.with(func(s *pthread.NamedSem) error {
		if *c.timeout > 0 {
			return pthread.SemTimedWait(s, time.Now().Add(*c.timeout))
		}
		return pthread.SemWait(s)
	})
}

type semTryWaitCommand struct {
	semCommand
}

func (c *semTryWaitCommand) run(*kingpin.ParseContext) error {
	return c.with(func(s *pthread.NamedSem) error {
		return pthread.SemTryWait(s)
	})
}

type semGetValueCommand struct {
	semCommand
}

func (c *semGetValueCommand) run(*kingpin.ParseContext) error {
	return c.with(func(s *pthread.NamedSem) error {
		v, err := pthread.SemGetValue(s)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	})
}

type semUnlinkCommand struct {
	semCommand
}

func (c *semUnlinkCommand) run(*kingpin.ParseContext) error {
	return pthread.SemUnlink(*c.name)
}
