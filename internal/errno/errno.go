// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errno defines the POSIX status codes returned by every gopthread
// operation.
//
// Operations never panic to report failure. They return an error whose root
// cause is an Errno; callers match it with errors.Is or extract it with Of:
//
//	if err := m.Unlock(); errors.Is(err, errno.EPERM) {
//		// unlock by a non-owner of an error-checking mutex
//	}
//
// Numeric values follow Linux so they can be compared with values reported
// by C code sharing the same named objects.
package errno

import (
	"errors"
	"strconv"
)

// Errno is a POSIX error number.
type Errno int

// Status codes used by gopthread.
const (
	EPERM        Errno = 1
	ENOENT       Errno = 2
	ESRCH        Errno = 3
	EINTR        Errno = 4
	EAGAIN       Errno = 11
	ENOMEM       Errno = 12
	EBUSY        Errno = 16
	EEXIST       Errno = 17
	EINVAL       Errno = 22
	EDEADLK      Errno = 35
	ENAMETOOLONG Errno = 36
	ENOSYS       Errno = 38
	EOVERFLOW    Errno = 75
	ENOTSUP      Errno = 95
	ETIMEDOUT    Errno = 110
)

var messages = map[Errno]string{
	EPERM:        "operation not permitted",
	ENOENT:       "no such file or directory",
	ESRCH:        "no such process",
	EINTR:        "interrupted system call",
	EAGAIN:       "resource temporarily unavailable",
	ENOMEM:       "cannot allocate memory",
	EBUSY:        "device or resource busy",
	EEXIST:       "file exists",
	EINVAL:       "invalid argument",
	EDEADLK:      "resource deadlock avoided",
	ENAMETOOLONG: "file name too long",
	ENOSYS:       "function not implemented",
	EOVERFLOW:    "value too large for defined data type",
	ENOTSUP:      "operation not supported",
	ETIMEDOUT:    "connection timed out",
}

// Error implements the error interface.
func (e Errno) Error() string {
	if msg, ok := messages[e]; ok {
		return msg
	}
	return "errno " + strconv.Itoa(int(e))
}

// Name returns the symbolic name of the code, e.g. "EINVAL".
func (e Errno) Name() string {
	switch e {
	case EPERM:
		return "EPERM"
	case ENOENT:
		return "ENOENT"
	case ESRCH:
		return "ESRCH"
	case EINTR:
		return "EINTR"
	case EAGAIN:
		return "EAGAIN"
	case ENOMEM:
		return "ENOMEM"
	case EBUSY:
		return "EBUSY"
	case EEXIST:
		return "EEXIST"
	case EINVAL:
		return "EINVAL"
	case EDEADLK:
		return "EDEADLK"
	case ENAMETOOLONG:
		return "ENAMETOOLONG"
	case ENOSYS:
		return "ENOSYS"
	case EOVERFLOW:
		return "EOVERFLOW"
	case ENOTSUP:
		return "ENOTSUP"
	case ETIMEDOUT:
		return "ETIMEDOUT"
	default:
		return "E" + strconv.Itoa(int(e))
	}
}

// Temporary reports whether retrying the operation may succeed.
func (e Errno) Temporary() bool {
	return e == EAGAIN || e == EINTR || e == EBUSY || e == ETIMEDOUT
}

// Timeout reports whether the code is a deadline expiry.
func (e Errno) Timeout() bool {
	return e == ETIMEDOUT
}

// Of returns the Errno at the root of err, 0 for a nil error and EINVAL for
// errors that do not carry one.
func Of(err error) Errno {
	if err == nil {
		return 0
	}
	var e Errno
	if errors.As(err, &e) {
		return e
	}
	return EINVAL
}
