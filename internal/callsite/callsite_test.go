// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package callsite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureHere() uint64 {
	return Capture(0)
}

func TestCaptureDeduplicates(t *testing.T) {
	var ids []uint64
	for i := 0; i < 3; i++ {
		ids = append(ids, captureHere())
	}
	require.NotZero(t, ids[0])
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[1], ids[2])
}

func TestLookupFormat(t *testing.T) {
	id := captureHere()
	tr := Lookup(id)
	require.NotNil(t, tr)

	assert.Contains(t, tr.Format(), "callsite.captureHere")
	assert.Contains(t, tr.Top(), "callsite.captureHere")
	assert.Contains(t, tr.Top(), "callsite_test.go")
}

func TestLookupUnknown(t *testing.T) {
	assert.Nil(t, Lookup(0))
	assert.Nil(t, Lookup(12345))

	var tr *Trace
	assert.Equal(t, "  <unknown>\n", tr.Format())
	assert.Equal(t, "", tr.Top())
}
