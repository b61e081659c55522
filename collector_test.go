// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrygc/concurrentgc/internal/metrics"
)

type recordingLeaf struct {
	Base
	swept bool
}

func (r *recordingLeaf) Scan(*TraceContext) {}
func (r *recordingLeaf) Sweep(Color) Color  { r.swept = true; return r.Color() }

func TestNewRegistersCollectorAsOwnSession(t *testing.T) {
	c := New(Options{})
	require.Len(t, c.known, 1)
	assert.Same(t, c.Self, c.known[0])
	assert.True(t, c.idle())
}

func TestBecomeWaitsInEntrantsUntilHarvested(t *testing.T) {
	c := New(Options{})
	s := c.Become("newcomer")
	assert.Len(t, c.known, 1, "not yet harvested")

	c.harvestEntrants()
	assert.Contains(t, c.known, s)
}

func TestAdvanceMasksStartsNewWaveWhenNoneActive(t *testing.T) {
	c := New(Options{})
	p := c.advanceMasks()
	assert.NotZero(t, p.Low(), "a fresh wave's grey bit should be assigned")
	assert.Zero(t, p.High(), "a freshly started wave is not yet confirmed black")
	assert.NotZero(t, c.colorInUse, "the assigned k must be marked in use")
}

func TestAdvanceMasksConfirmsGreyToBlackAfterOneStableCycle(t *testing.T) {
	c := New(Options{})
	p1 := c.advanceMasks()
	c.publish(p1)

	p2 := c.advanceMasks()
	assert.Equal(t, p1.Low(), p2.Low(), "the grey bit persists across the confirmation cycle")
	assert.Equal(t, p1.Low().LowToHigh(), p2.High(), "one full cycle confirms the wave: allocate-black begins")
}

func TestAdvanceMasksRetiresClearedBits(t *testing.T) {
	c := New(Options{})
	c.colorInUse = kBit(9)
	c.maskForClearing = kBit(9)
	c.colorForAllocation.store(kBit(9))

	c.advanceMasks()
	assert.Zero(t, c.colorInUse&kBit(9), "a fully cleared k is retired from colorInUse")
}

func TestAdvanceMasksPromotesStableTracingBitToDeleting(t *testing.T) {
	c := New(Options{})
	c.maskForTracing = kBit(3)
	c.shadeHistory.push(0)
	c.shadeHistory.push(0)
	c.shadeHistory.push(0)

	c.advanceMasks()
	assert.Zero(t, c.maskForTracing&kBit(3), "a k confirmed deletable leaves mask_for_tracing")
	assert.Equal(t, kBit(3), c.maskForDeleting&kBit(3))
}

func TestAdvanceMasksDoesNotPromoteWhileRecentlyShaded(t *testing.T) {
	c := New(Options{})
	c.maskForTracing = kBit(3)
	c.shadeHistory.push(greyBit(3))
	c.shadeHistory.push(0)
	c.shadeHistory.push(0)

	c.advanceMasks()
	assert.Equal(t, kBit(3), c.maskForTracing&kBit(3), "a bit shaded within the last 3 eras is not yet stable")
	assert.Zero(t, c.maskForDeleting&kBit(3))
}

func TestTraceAndSweepSeparatesSurvivorsFromGarbage(t *testing.T) {
	c := New(Options{})
	c.maskForDeleting = kBit(2)

	survivor := &recordingLeaf{}
	survivor.color.Store(uint64(blackBit(2)))
	garbage := &recordingLeaf{}

	c.knownObjects.Push(survivor)
	c.knownObjects.Push(garbage)

	c.traceAndSweep()

	assert.True(t, garbage.swept)
	assert.False(t, survivor.swept)
	assert.Equal(t, 1, c.knownObjects.Len())
}

func TestTraceAndSweepTrapsOnGreyUnderDelete(t *testing.T) {
	c := New(Options{})
	c.maskForDeleting = kBit(2)

	bug := &recordingLeaf{}
	bug.color.Store(uint64(greyBit(2)))
	c.knownObjects.Push(bug)

	assert.Panics(t, func() { c.traceAndSweep() })
}

func TestRunUntilCountsHandshakeTimeoutWhenNoOneWakesIt(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(Options{Metrics: m, HandshakeTimeout: 20 * time.Millisecond})
	// No mutator ever registers: the collector is alone, goes idle after its
	// first cycle, and nothing will ever broadcast c.cond before the short
	// per-wait timeout repeatedly elapses.

	c.RunUntil(time.Now().Add(80 * time.Millisecond))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.HandshakeTimeouts), 1.0)
}

func TestRunCycleEndToEndDoesNotPanicAcrossManyIterations(t *testing.T) {
	c := New(Options{})
	s := c.Become("mutator-a")
	root := NewScanOwned[*leaf](nil)

	obj := Allocate(s, &leaf{})
	root.Store(s, obj)
	s.Handshake()

	for i := 0; i < 8; i++ {
		assert.NotPanics(t, func() { c.RunCycle() })
	}

	root.Store(s, nil)
	s.Handshake()

	for i := 0; i < 8; i++ {
		assert.NotPanics(t, func() { c.RunCycle() })
	}
}
