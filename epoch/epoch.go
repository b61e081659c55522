// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package epoch implements the epoch-pinned bump allocator described in
// §4.5: a reclamation scheme for short-lived, collector-scanned
// auxiliary structures (skiplist nodes, work items) that must not
// involve the main GC. A global word packs the current epoch and the
// pin counts of the current and prior epoch into one atomic so the
// state machine advances with a single CAS.
package epoch

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

const slabSize = 4096

// word packs (epoch uint32, pinnedCurrent uint16, pinnedPrior uint16).
func pack(e uint32, cur, prior uint16) uint64 {
	return uint64(e)<<32 | uint64(cur)<<16 | uint64(prior)
}

func unpack(w uint64) (e uint32, cur, prior uint16) {
	return uint32(w >> 32), uint16(w >> 16), uint16(w)
}

// Allocator owns the global epoch word and hands out pinned Handles.
// Its zero value is not usable; construct with New.
type Allocator struct {
	word    atomic.Uint64
	metrics *Metrics
}

// Metrics are the optional prometheus counters exposing epoch
// advances and slab-chain reclamation, added in SPEC_FULL.md §2 so the
// allocator's behaviour is observable the way runtime.ReadMemStats
// exposes the real collector's internals.
type Metrics struct {
	Advances     prometheus.Counter
	SlabsAlloc   prometheus.Counter
	SlabsReclaim prometheus.Counter
}

// New constructs an Allocator starting at epoch 1 with no pins. metrics
// may be nil, in which case the allocator runs unobserved.
func New(metrics *Metrics) *Allocator {
	a := &Allocator{metrics: metrics}
	a.word.Store(pack(1, 0, 0))
	return a
}

// Pin enters the current epoch, incrementing its pin count, and
// advancing the epoch first if no thread remains pinned in the prior
// one (§4.5). It returns a Handle pinned in that epoch.
func (a *Allocator) Pin() *Handle {
	for {
		old := a.word.Load()
		e, cur, prior := unpack(old)
		var next uint64
		var pinned uint32
		if prior == 0 {
			next = pack(e+1, 1, cur)
			pinned = e + 1
		} else {
			next = pack(e, cur+1, prior)
			pinned = e
		}
		if a.word.CompareAndSwap(old, next) {
			if pinned != e && a.metrics != nil {
				a.metrics.Advances.Inc()
			}
			return &Handle{a: a, epoch: pinned}
		}
	}
}

// unpin decrements the pin count for epoch e, which must be either the
// current or the immediately prior epoch, then tries to advance just
// like repin does (§4.5: "unpin(e) atomically decrements the matching
// counter, possibly advancing" — epoch_service.hpp's
// `expected.unpin(occupied).try_advance()`). When the decrement is what
// brings the prior epoch's count to zero, that epoch's slab chains are
// now unreachable from any live Handle and safe to reclaim; we only have
// a counter for that event, not an actual shared arena to free, since
// each Handle owns its own slab chain.
func (a *Allocator) unpin(e uint32) {
	for {
		old := a.word.Load()
		curE, cur, prior := unpack(old)
		var cur2, prior2 uint16
		switch e {
		case curE:
			cur2, prior2 = cur-1, prior
		case curE - 1:
			cur2, prior2 = cur, prior-1
		default:
			// Pinned in an epoch that has already fully aged out from
			// under it; nothing left to decrement.
			return
		}
		reclaimed := e == curE-1 && prior == 1 && prior2 == 0

		var next uint64
		advanced := false
		if prior2 == 0 {
			next = pack(curE+1, 0, cur2)
			advanced = true
		} else {
			next = pack(curE, cur2, prior2)
		}
		if a.word.CompareAndSwap(old, next) {
			if a.metrics != nil {
				if advanced {
					a.metrics.Advances.Inc()
				}
				if reclaimed {
					a.metrics.SlabsReclaim.Inc()
				}
			}
			return
		}
	}
}

// repin unpins e and immediately re-pins in one step, bounding epoch lag
// to at most one advance per call even under a tight service loop
// (§4.5).
func (a *Allocator) repin(e uint32) uint32 {
	for {
		old := a.word.Load()
		curE, cur, prior := unpack(old)
		var cur2, prior2 uint16
		switch e {
		case curE:
			cur2, prior2 = cur-1, prior
		default:
			cur2, prior2 = cur, prior-1
		}
		var next uint64
		var pinned uint32
		if prior2 == 0 {
			next = pack(curE+1, 1, cur2)
			pinned = curE + 1
		} else {
			next = pack(curE, cur2+1, prior2)
			pinned = curE
		}
		if a.word.CompareAndSwap(old, next) {
			if pinned != curE && a.metrics != nil {
				a.metrics.Advances.Inc()
			}
			return pinned
		}
	}
}

// Epoch returns the current epoch, for diagnostics/tests only.
func (a *Allocator) Epoch() uint32 {
	e, _, _ := unpack(a.word.Load())
	return e
}

// slabNode is one fixed-size bump-allocation page.
type slabNode struct {
	next *slabNode
	buf  [slabSize]byte
	off  int
}

// Handle is a single pin: the guarantee in §4.5 is that any allocation
// made while a Handle is pinned at epoch e remains readable by any
// thread pinned at e or later that has not yet unpinned. A Handle must
// be used by one goroutine at a time and must not outlive its Unpin.
type Handle struct {
	a     *Allocator
	epoch uint32
	slab  *slabNode
}

// Epoch reports the epoch this handle is pinned in.
func (h *Handle) Epoch() uint32 { return h.epoch }

// Unpin releases the pin. The handle must not be used afterwards.
func (h *Handle) Unpin() { h.a.unpin(h.epoch) }

// Repin releases and immediately reacquires a pin, bounding how far
// this thread can lag behind the allocator's current epoch.
func (h *Handle) Repin() { h.epoch = h.a.repin(h.epoch) }

// Alloc bump-allocates size bytes from the handle's slab chain,
// appending a new slab when the current one cannot fit the request.
// size must not exceed slabSize.
func (h *Handle) Alloc(size int) []byte {
	if h.slab == nil || h.slab.off+size > slabSize {
		n := &slabNode{next: h.slab}
		h.slab = n
		if h.a.metrics != nil {
			h.a.metrics.SlabsAlloc.Inc()
		}
	}
	b := h.slab.buf[h.slab.off : h.slab.off+size : h.slab.off+size]
	h.slab.off += size
	return b
}
