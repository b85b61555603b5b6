// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package callsite records where threads were created.
//
// Thread creation sites are captured as a fixed number of program counters,
// deduplicated by hash in a process-wide depot, and formatted lazily when a
// diagnostic (thread listing, leak report) needs them. A thread record only
// keeps the 8-byte hash.
//
// Usage:
//
//	id := callsite.Capture(1) // skip the caller's own frame
//	...
//	fmt.Print(callsite.Lookup(id).Format())
package callsite

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// MaxFrames is the number of frames kept per call site.
const MaxFrames = 8

// Trace is a captured call site.
type Trace struct {
	PC [MaxFrames]uintptr
}

// depot maps hash → *Trace.
var depot sync.Map

// Capture records the calling stack and returns its id. skip is the number
// of frames above Capture's caller to omit. It returns 0 if no frames were
// available.
func Capture(skip int) uint64 {
	var pcs [MaxFrames]uintptr
	// +2 skips runtime.Callers and Capture.
	n := runtime.Callers(skip+2, pcs[:])
	if n == 0 {
		return 0
	}

	id := hashPCs(pcs[:n])
	if _, ok := depot.Load(id); !ok {
		depot.Store(id, &Trace{PC: pcs})
	}
	return id
}

// Lookup returns the trace recorded under id, or nil.
func Lookup(id uint64) *Trace {
	if id == 0 {
		return nil
	}
	v, ok := depot.Load(id)
	if !ok {
		return nil
	}
	return v.(*Trace)
}

func hashPCs(pcs []uintptr) uint64 {
	buf := make([]byte, 8*len(pcs))
	for i, pc := range pcs {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(pc))
	}
	return xxhash.Sum64(buf)
}

// frames yields the non-runtime frames of t.
func (t *Trace) frames(fn func(runtime.Frame) bool) {
	if t == nil {
		return
	}
	n := 0
	for n < MaxFrames && t.PC[n] != 0 {
		n++
	}
	frames := runtime.CallersFrames(t.PC[:n])
	for {
		frame, more := frames.Next()
		if frame.PC != 0 && !strings.HasPrefix(frame.Function, "runtime.") {
			if !fn(frame) {
				return
			}
		}
		if !more {
			return
		}
	}
}

// Format renders the trace one frame per two lines, like a panic trace.
func (t *Trace) Format() string {
	var buf strings.Builder
	t.frames(func(f runtime.Frame) bool {
		fmt.Fprintf(&buf, "  %s()\n      %s:%d\n", f.Function, f.File, f.Line)
		return true
	})
	if buf.Len() == 0 {
		return "  <unknown>\n"
	}
	return buf.String()
}

// Top returns "function file:line" for the innermost frame, or "".
func (t *Trace) Top() string {
	var top string
	t.frames(func(f runtime.Frame) bool {
		top = fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line)
		return false
	})
	return top
}
