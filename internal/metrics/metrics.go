// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exposes the collector's internals through prometheus,
// the library equivalent of runtime.ReadMemStats/debug.GCStats for this
// module's own collector (see src/runtime/extern.go in the teacher for
// the precedent of surfacing GC internals through a typed API).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector groups the counters and gauges a running Collector updates
// every cycle. The zero value is not usable; construct with New.
type Collector struct {
	Cycles            prometheus.Counter
	Promotions        prometheus.Counter
	Deletions         prometheus.Counter
	HandshakeTimeouts prometheus.Counter
	KnownObjects      prometheus.Gauge
	SurvivorObjects   prometheus.Gauge
}

// New registers a fresh set of collector metrics with reg. reg may be a
// custom *prometheus.Registry (as in tests, to avoid collisions across
// parallel test Collectors) or prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concurrentgc_cycles_total",
			Help: "Number of completed collector cycles.",
		}),
		Promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concurrentgc_promotions_total",
			Help: "Number of cycles that promoted at least one k from mask_for_tracing to mask_for_deleting.",
		}),
		Deletions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concurrentgc_deletions_total",
			Help: "Number of objects deleted during the trace/sweep pass.",
		}),
		HandshakeTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concurrentgc_handshake_timeouts_total",
			Help: "Number of idle waits that ended because the handshake timeout elapsed.",
		}),
		KnownObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "concurrentgc_known_objects",
			Help: "Current size of the collector's known-objects bag.",
		}),
		SurvivorObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "concurrentgc_survivor_objects",
			Help: "Size of the survivors bag at the end of the last cycle.",
		}),
	}
	reg.MustRegister(c.Cycles, c.Promotions, c.Deletions, c.HandshakeTimeouts, c.KnownObjects, c.SurvivorObjects)
	return c
}
