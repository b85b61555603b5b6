// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package thread

import "golang.org/x/sys/unix"

// nativeID returns the kernel thread id the calling goroutine runs on. It
// is only stable for threads bound with BindOSThread.
func nativeID() int64 {
	return int64(unix.Gettid())
}
