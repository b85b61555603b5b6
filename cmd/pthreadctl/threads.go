// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/gopthread/pthread"
)

type demoCommand struct {
	workers *int
	work    *time.Duration
	list    *bool
	stacks  *bool
}

type demoResult struct {
	thread   pthread.Thread
	seq      uint64
	canceled bool
	value    any
}

// worker spins until its deadline, honoring cancellation between steps.
// It returns the number of steps taken.
func worker(arg any) any {
	deadline := arg.(time.Time)
	steps := 0
	for time.Now().Before(deadline) {
		pthread.TestCancel()
		time.Sleep(time.Millisecond)
		steps++
	}
	return steps
}

func (c *demoCommand) run(*kingpin.ParseContext) error {
	if *c.workers <= 0 {
		return fmt.Errorf("--workers must be positive, got %d", *c.workers)
	}

	deadline := time.Now().Add(*c.work)
	results := make([]demoResult, *c.workers)
	for i := range results {
		t, err := pthread.Create(&pthread.Attr{Name: fmt.Sprintf("worker-%d", i)}, worker, deadline)
		if err != nil {
			return err
		}
		results[i].thread = t
		if results[i].seq, err = pthread.GetSequenceNP(t); err != nil {
			return err
		}
	}

	if *c.list || *c.stacks {
		listThreads(os.Stdout, *c.stacks)
	}

	for i := 0; i < len(results); i += 2 {
		if err := pthread.Cancel(results[i].thread); err != nil {
			return err
		}
		results[i].canceled = true
	}

	var g errgroup.Group
	for i := range results {
		r := &results[i]
		g.Go(func() error {
			v, err := pthread.Join(r.thread)
			r.value = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "THREAD\tSEQ\tCANCEL REQUESTED\tEXIT VALUE")
	for i, r := range results {
		fmt.Fprintf(w, "worker-%d\t%d\t%t\t%v\n", i, r.seq, r.canceled, r.value)
	}
	return w.Flush()
}

// listThreads prints the registered threads and where they were created.
// With stacks, the full creation stack of every created thread follows the
// table.
func listThreads(out io.Writer, stacks bool) {
	infos := pthread.Threads()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HANDLE\tSEQ\tNAME\tSTATE\tCREATED AT")
	for _, info := range infos {
		at := info.CreatedAt()
		if info.Adopted {
			at = "(adopted)"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", info.Handle, info.Sequence, info.Name, info.State, at)
	}
	_ = w.Flush()
	fmt.Fprintln(out)

	if !stacks {
		return
	}
	for _, info := range infos {
		if info.Adopted {
			continue
		}
		fmt.Fprintf(out, "%s (%s) created by:\n%s\n", info.Handle, info.Name, info.CreationStack())
	}
}
