// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thread

// State is the lifecycle state of a thread.
type State uint32

const (
	// StateCreated: registered, goroutine not yet running.
	StateCreated State = iota
	// StateRunning: start routine executing.
	StateRunning
	// StateSuspended: parked at a safe point by Suspend.
	StateSuspended
	// StateExiting: running its cleanup stack.
	StateExiting
	// StateJoinableZombie: finished, waiting for Join or Detach.
	StateJoinableZombie
	// StateDetachedReaped: finished and released without a join.
	StateDetachedReaped
	// StateJoined: finished and released by Join.
	StateJoined
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateExiting:
		return "exiting"
	case StateJoinableZombie:
		return "zombie"
	case StateDetachedReaped:
		return "reaped"
	case StateJoined:
		return "joined"
	default:
		return "unknown"
	}
}

// Finished reports whether the start routine has completed.
func (s State) Finished() bool {
	return s >= StateJoinableZombie
}

// CancelState enables or disables acting on cancellation requests.
type CancelState uint32

// Values match PTHREAD_CANCEL_ENABLE / PTHREAD_CANCEL_DISABLE.
const (
	CancelEnable  CancelState = 0
	CancelDisable CancelState = 1
)

func (s CancelState) String() string {
	switch s {
	case CancelEnable:
		return "enable"
	case CancelDisable:
		return "disable"
	default:
		return "unknown"
	}
}

// CancelType selects when an enabled request is acted on.
type CancelType uint32

// Values match PTHREAD_CANCEL_DEFERRED / PTHREAD_CANCEL_ASYNCHRONOUS.
const (
	CancelDeferred     CancelType = 0
	CancelAsynchronous CancelType = 1
)

func (t CancelType) String() string {
	switch t {
	case CancelDeferred:
		return "deferred"
	case CancelAsynchronous:
		return "asynchronous"
	default:
		return "unknown"
	}
}

type canceledValue struct{}

func (canceledValue) String() string { return "PTHREAD_CANCELED" }

// Canceled is the exit value of a thread that acted on a cancellation
// request.
var Canceled any = canceledValue{}
