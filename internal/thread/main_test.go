// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thread

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/kolkov/gopthread/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestManager(t *testing.T, cfg config.ThreadsConfig) *Manager {
	t.Helper()
	return NewManager(cfg, nil, nil)
}
