// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Goroutine ID extraction.
//
// Go has no thread-local storage. The registry emulates a per-thread "self"
// slot by keying bindings on the goroutine id, which is parsed from the
// first line of runtime.Stack output ("goroutine 123 [running]:").
// Goroutine ids are never reused by the runtime, so a binding can only be
// observed by the goroutine that created it.

package registry

import "runtime"

// goroutinePrefix is the header runtime.Stack writes for every goroutine.
const goroutinePrefix = "goroutine "

// GoroutineID returns the id of the calling goroutine, or 0 if it cannot be
// determined.
func GoroutineID() int64 {
	// Only the first line is needed.
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the goroutine id from a "goroutine N [...]" line.
// It returns 0 if the format does not match.
func parseGID(buf []byte) int64 {
	if len(buf) < len(goroutinePrefix) || string(buf[:len(goroutinePrefix)]) != goroutinePrefix {
		return 0
	}

	var gid int64
	for i := len(goroutinePrefix); i < len(buf); i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return gid
}

// liveGoroutineIDs returns the ids of all goroutines currently alive.
//
// This calls runtime.Stack with all=true, which stops the world; callers
// amortize it (see Registry.Scavenge).
func liveGoroutineIDs() map[int64]struct{} {
	buf := make([]byte, 1<<20)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		// Truncated dump would drop goroutines and make them look dead.
		buf = make([]byte, 2*len(buf))
	}
	return parseAllGIDs(buf)
}

// parseAllGIDs collects the id from every "goroutine N" header line.
func parseAllGIDs(buf []byte) map[int64]struct{} {
	gids := make(map[int64]struct{})
	for i := 0; i < len(buf); {
		end := i
		for end < len(buf) && buf[end] != '\n' {
			end++
		}
		if gid := parseGID(buf[i:end]); gid != 0 {
			gids[gid] = struct{}{}
		}
		i = end + 1
	}
	return gids
}
