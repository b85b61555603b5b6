// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/kolkov/gopthread/pthread"
)

func registerForkHandlers() {
	_ = pthread.Atfork(
		func() { fmt.Fprintf(os.Stderr, "atfork: prepare (pid %d)\n", os.Getpid()) },
		func() { fmt.Fprintf(os.Stderr, "atfork: parent (pid %d)\n", os.Getpid()) },
		func() { fmt.Fprintf(os.Stderr, "atfork: child (pid %d)\n", os.Getpid()) },
	)
}

// runFork re-executes this program as `pthreadctl version` and waits for
// it. The child prints its own atfork line from ChildStart.
func runFork() error {
	dup := &pthread.ExecDuplicator{
		Args:   []string{"version"},
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if _, err := pthread.Fork(dup); err != nil {
		return err
	}
	if err := dup.Cmd.Wait(); err != nil {
		return fmt.Errorf("child: %w", err)
	}
	return nil
}
