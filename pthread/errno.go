// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pthread

import "github.com/kolkov/gopthread/internal/errno"

// Errno is the status code carried by every error of this package.
type Errno = errno.Errno

// Status codes.
const (
	EPERM        = errno.EPERM
	ENOENT       = errno.ENOENT
	ESRCH        = errno.ESRCH
	EINTR        = errno.EINTR
	EAGAIN       = errno.EAGAIN
	ENOMEM       = errno.ENOMEM
	EBUSY        = errno.EBUSY
	EEXIST       = errno.EEXIST
	EINVAL       = errno.EINVAL
	EDEADLK      = errno.EDEADLK
	ENAMETOOLONG = errno.ENAMETOOLONG
	ENOSYS       = errno.ENOSYS
	EOVERFLOW    = errno.EOVERFLOW
	ENOTSUP      = errno.ENOTSUP
	ETIMEDOUT    = errno.ETIMEDOUT
)

// ErrnoOf returns the status code of err: 0 for nil, EINVAL for errors
// that did not come from this package.
func ErrnoOf(err error) Errno {
	return errno.Of(err)
}
