// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thread

import (
	"sync/atomic"

	"github.com/kolkov/gopthread/internal/config"
)

var std atomic.Pointer[Manager]

// Std returns the process-wide manager, creating one with default settings
// on first use. The manager is never replaced; use Reconfigure to change
// its settings.
func Std() *Manager {
	if m := std.Load(); m != nil {
		return m
	}
	m := NewManager(config.Default().Threads, nil, nil)
	if std.CompareAndSwap(nil, m) {
		return m
	}
	return std.Load()
}

// Current returns the calling thread of the process-wide manager.
func Current() *Thread {
	return Std().Self()
}
