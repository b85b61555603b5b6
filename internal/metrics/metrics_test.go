// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegisters(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg)

	m.ThreadsCreated.Inc()
	m.ThreadsExited.WithLabelValues("canceled").Inc()
	m.SemaphoresOpen.WithLabelValues("memory").Set(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ThreadsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ThreadsExited.WithLabelValues("canceled")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewNilRegisterer(t *testing.T) {
	// Two instances must not collide when nothing is registered.
	a := New(nil)
	b := New(nil)
	a.ThreadsLive.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ThreadsLive))
}
