// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package handle implements the packed (slot, generation) thread handle.
//
// A Handle names one registry slot at one point in its life:
//   - Top 32 bits: generation of the slot when the handle was issued
//   - Bottom 32 bits: slot index in the registry table
//
// Every release of a slot bumps its generation, so a handle kept after its
// thread was reaped no longer matches the slot and fails validation even
// when the slot (or the OS thread id behind it) has been reused.
package handle

import "strconv"

// Handle is an opaque thread identity. The zero value is Nil.
//
// Example: 0x0000000300000005 is generation 3 of slot 5.
type Handle uint64

const (
	// SlotBits is the number of bits holding the slot index.
	SlotBits = 32

	// SlotMask extracts the slot index.
	SlotMask = (1 << SlotBits) - 1
)

// Nil is the handle that never names a thread.
const Nil Handle = 0

// New packs a slot index and generation into a handle.
//
// Generation 0 is reserved for Nil; registries start generations at 1.
func New(slot, gen uint32) Handle {
	return Handle(uint64(gen)<<SlotBits | uint64(slot))
}

// Decode extracts the slot index and generation.
func (h Handle) Decode() (slot, gen uint32) {
	//nolint:gosec // G115: intentional truncation of the packed halves.
	slot = uint32(h & SlotMask)
	//nolint:gosec // G115: see above.
	gen = uint32(h >> SlotBits)
	return
}

// Slot returns the slot index.
func (h Handle) Slot() uint32 {
	s, _ := h.Decode()
	return s
}

// Generation returns the slot generation the handle was issued for.
func (h Handle) Generation() uint32 {
	_, g := h.Decode()
	return g
}

// IsNil reports whether h is the nil handle.
func (h Handle) IsNil() bool {
	return h.Generation() == 0
}

// String renders the handle as "gen@slot", e.g. "3@5".
func (h Handle) String() string {
	if h.IsNil() {
		return "nil"
	}
	slot, gen := h.Decode()
	return strconv.FormatUint(uint64(gen), 10) + "@" + strconv.FormatUint(uint64(slot), 10)
}

// NextGeneration returns the generation following g, skipping the reserved 0.
func NextGeneration(g uint32) uint32 {
	g++
	if g == 0 {
		g = 1
	}
	return g
}
