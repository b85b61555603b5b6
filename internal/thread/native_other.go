// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package thread

import "github.com/kolkov/gopthread/internal/registry"

func nativeID() int64 {
	return registry.GoroutineID()
}
