// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics holds the Prometheus collectors shared by the thread,
// semaphore and fork-hook components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gopthread"

// Metrics is the set of collectors for one runtime instance.
type Metrics struct {
	ThreadsCreated   prometheus.Counter
	ThreadsExited    *prometheus.CounterVec
	ThreadsLive      prometheus.Gauge
	ThreadsAdopted   prometheus.Counter
	CancelRequests   prometheus.Counter
	JoinWaitSeconds  prometheus.Histogram
	SemaphoresOpen   *prometheus.GaugeVec
	SemaphoreTimeout prometheus.Counter
	Forks            *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests and library users without a
// metrics endpoint want.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ThreadsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_created_total",
			Help:      "Total number of threads created.",
		}),
		ThreadsExited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_exited_total",
			Help:      "Total number of threads that finished, by how they finished.",
		}, []string{"reason"}),
		ThreadsLive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threads_live",
			Help:      "Number of registered thread objects, including unreaped zombies.",
		}),
		ThreadsAdopted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_adopted_total",
			Help:      "Goroutines given a thread identity on first use without Create.",
		}),
		CancelRequests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancel_requests_total",
			Help:      "Total number of cancellation requests.",
		}),
		JoinWaitSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "join_wait_seconds",
			Help:      "Time spent blocked in join.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		SemaphoresOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "semaphores_open",
			Help:      "Named semaphore handles currently open, by backend.",
		}, []string{"backend"}),
		SemaphoreTimeout: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "semaphore_wait_timeouts_total",
			Help:      "Semaphore timed waits that reached their deadline.",
		}),
		Forks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forks_total",
			Help:      "Process duplications run through the fork hook registry, by outcome.",
		}, []string{"outcome"}),
	}
}
