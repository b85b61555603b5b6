// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pthread

import "golang.org/x/mod/semver"

// Version is the library version.
const Version = "v0.1.0"

// Info describes the library runtime.
type Info struct {
	Version string
	// SemaphoreBackend is the backend of SemOpen.
	SemaphoreBackend string
	// Threads is the number of registered threads.
	Threads int
}

// GetInfo returns information about the runtime.
func GetInfo() Info {
	return Info{
		Version:          Version,
		SemaphoreBackend: namespace().Backend(),
		Threads:          len(Threads()),
	}
}

// Compatible reports whether code built against version v can use this
// library: same major version, and not newer.
func Compatible(v string) bool {
	if !semver.IsValid(v) {
		return false
	}
	return semver.Major(v) == semver.Major(Version) && semver.Compare(v, Version) <= 0
}
