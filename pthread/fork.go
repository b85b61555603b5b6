// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pthread

import "github.com/kolkov/gopthread/internal/forkhook"

type (
	// Side tells Fork's caller which process it runs in.
	Side = forkhook.Side
	// Duplicator performs process duplication for Fork.
	Duplicator = forkhook.Duplicator
	// DuplicatorFunc adapts a function to Duplicator.
	DuplicatorFunc = forkhook.DuplicatorFunc
	// ExecDuplicator starts a new copy of the program.
	ExecDuplicator = forkhook.ExecDuplicator
)

const (
	ParentSide = forkhook.Parent
	ChildSide  = forkhook.Child
)

// Atfork registers handlers around Fork. prepare handlers run before
// duplication, last registered first; parent and child handlers run
// afterwards in registration order. Any handler may be nil.
func Atfork(prepare, parent, child func()) error {
	forkHooks().Atfork(prepare, parent, child)
	return nil
}

// Fork duplicates the process with dup, running the Atfork handlers around
// it.
func Fork(dup Duplicator) (Side, error) {
	return forkHooks().Fork(dup)
}

// ChildStart runs the child Atfork handlers if this process was started by
// an ExecDuplicator. Call it early in main, after registering handlers.
func ChildStart() bool {
	return forkHooks().ChildStart()
}
