// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forkhook

import (
	"io"
	"os"
	"os/exec"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// ChildEnv marks a process started by ExecDuplicator.
const ChildEnv = "GOPTHREAD_FORK_CHILD"

// ExecDuplicator duplicates the process by starting the current executable
// again with ChildEnv set. It always reports the Parent side; the child
// side is reached through ChildStart in the new process.
type ExecDuplicator struct {
	// Args replaces os.Args[1:] for the child when non-nil.
	Args []string
	// Env is appended to the parent's environment.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Cmd is the started child, set by Duplicate.
	Cmd *exec.Cmd
}

// Duplicate starts the child process.
func (d *ExecDuplicator) Duplicate() (Side, error) {
	exe, err := os.Executable()
	if err != nil {
		return Parent, errors.Wrap(err, "locate executable")
	}
	args := d.Args
	if args == nil {
		args = os.Args[1:]
	}

	cmd := exec.Command(exe, args...)
	cmd.Env = append(append(os.Environ(), d.Env...), ChildEnv+"=1")
	cmd.Stdin = d.Stdin
	cmd.Stdout = d.Stdout
	cmd.Stderr = d.Stderr
	if err := cmd.Start(); err != nil {
		return Parent, errors.Wrapf(err, "start %s", exe)
	}
	d.Cmd = cmd
	return Parent, nil
}

// IsChild reports whether this process was started by ExecDuplicator.
func IsChild() bool {
	return os.Getenv(ChildEnv) == "1"
}

// ChildStart runs the child handlers when this process was started by
// ExecDuplicator, and reports whether it did. The marker is removed so
// grandchildren are not mistaken for fork children.
func (r *Registry) ChildStart() bool {
	if !IsChild() {
		return false
	}
	_ = os.Unsetenv(ChildEnv)

	entries := r.snapshot()
	r.metrics.Forks.WithLabelValues(Child.String()).Inc()
	level.Debug(r.logger).Log("msg", "running child fork handlers", "handlers", len(entries))
	runChild(entries)
	return true
}
