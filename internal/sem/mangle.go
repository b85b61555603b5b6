// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sem

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/kolkov/gopthread/internal/errno"
)

const (
	// MaxPath is the longest raw name accepted without a prefix.
	MaxPath = 260

	// GlobalPrefix makes an object visible across login sessions.
	GlobalPrefix = `Global\`
)

// Mangle turns a user-visible semaphore name into the backend object name.
//
// The result must stay bit-for-bit stable: other programs open the same
// objects by mangled name. Backslashes are the backend's namespace
// separator and become forward slashes, so "a\b" and "a/b" name the same
// object.
func Mangle(raw string, global bool) (string, error) {
	if raw == "" {
		return "", errors.Wrap(errno.ENOENT, "semaphore name is empty")
	}
	limit := MaxPath
	if global {
		limit -= len(GlobalPrefix)
	}
	if len(raw) > limit {
		return "", errors.Wrapf(errno.EINVAL, "semaphore name is %d bytes, limit %d", len(raw), limit)
	}

	var b strings.Builder
	b.Grow(len(GlobalPrefix) + len(raw))
	if global {
		b.WriteString(GlobalPrefix)
	}
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c == '\\' {
			b.WriteByte('/')
		} else {
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
