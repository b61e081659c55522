// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gc implements a concurrent, incremental, tricolor garbage
// collector and the lock-free data structures it needs to exchange work
// between mutator threads and a dedicated collector thread.
//
// The collector is soft real-time for mutators: no mutator operation
// blocks on the collector, there is no stop-the-world phase, and every
// mutator-side primitive (allocation, the write barrier, the handshake)
// is lock-free and bounded in work per call.
//
// The design encodes color as a 64-bit word with two 32-bit halves so
// that several independent marking waves, identified by a bit index k,
// can be in flight at once. This is what lets allocation-black, tracing,
// sweeping, and bit recycling pipeline without ever pausing a mutator.
// See color_for_allocation and the cycle in collector.go for the palette
// state machine that drives k through its life: unused, grey, tracing,
// deleting, clearing, unused again.
package gc

import "sync/atomic"

// Color is a 64-bit word: bit k in the low half means "k-grey", bit k+32
// in the high half means "k-black". Neither bit set means "k-white".
// Multiple k in [0, maxColorBits) may be live in the same word at once.
type Color uint64

const (
	maxColorBits = 32

	lowMask  Color = 0x00000000ffffffff
	highMask Color = 0xffffffff00000000
)

// greyBit is the low-half bit for marking wave k.
func greyBit(k uint) Color { return Color(1) << k }

// blackBit is the high-half bit for marking wave k.
func blackBit(k uint) Color { return Color(1) << (k + maxColorBits) }

// kBit sets both the grey and black position for k. Masks that gate a
// transition (mask_for_tracing, mask_for_deleting, mask_for_clearing) are
// built from kBit so that a single AND-NOT against the mask clears both
// halves of a recycled k, and a single AND against the mask tests either
// half of an object's color for that k (see collector_trace.go).
func kBit(k uint) Color { return greyBit(k) | blackBit(k) }

// Grey reports whether bit k is grey in c.
func (c Color) Grey(k uint) bool { return c&greyBit(k) != 0 }

// Black reports whether bit k is black in c.
func (c Color) Black(k uint) bool { return c&blackBit(k) != 0 }

// White reports whether bit k is neither grey nor black in c.
func (c Color) White(k uint) bool { return !c.Grey(k) && !c.Black(k) }

// Low returns the grey half of c with the black half cleared.
func (c Color) Low() Color { return c & lowMask }

// High returns the black half of c with the grey half cleared.
func (c Color) High() Color { return c & highMask }

// HighToLow remaps each set high-half bit (position k+32) down to its
// low-half position (k), discarding the low half. Used by the collector
// to compare a black-confirmation mask against shading history, which is
// only ever reported in low-half positions.
func (c Color) HighToLow() Color { return Color(uint64(c&highMask) >> maxColorBits) }

// LowToHigh remaps each set low-half bit (position k) up to its
// high-half position (k+32), discarding the high half. Used by the
// collector to fold a newly-confirmed-grey or newly-ready-to-delete set
// of k indices into the high half of a dual kBit mask.
func (c Color) LowToHigh() Color { return Color(uint64(c&lowMask) << maxColorBits) }

// lowestUnset returns the lowest bit index in [0, maxColorBits) for which
// neither the grey nor black bit is set in inUse, and ok=false if all
// maxColorBits waves are currently live. This implements the tie-break in
// §4.1: "bits are assigned in ascending order."
func lowestUnset(inUse Color) (k uint, ok bool) {
	for k = 0; k < maxColorBits; k++ {
		if inUse&kBit(k) == 0 {
			return k, true
		}
	}
	return 0, false
}

// colorHistory is a depth-4 ring of recent palette snapshots, newest
// first. Depth 4 is what §4.1 needs: the three-consecutive-handshake
// stability check on shading reports looks back three entries, and the
// grey/black confirmation check looks back two.
type colorHistory struct {
	entries [4]Color
}

// push records c as the newest entry, shifting older entries back and
// discarding the oldest.
func (h *colorHistory) push(c Color) {
	h.entries[3] = h.entries[2]
	h.entries[2] = h.entries[1]
	h.entries[1] = h.entries[0]
	h.entries[0] = c
}

// at returns the i-th most recent entry (0 = newest), or the zero Color
// if the ring has not yet been filled that far back.
func (h *colorHistory) at(i int) Color {
	if i < 0 || i >= len(h.entries) {
		return 0
	}
	return h.entries[i]
}

// atomicColor is a thin wrapper over atomic.Uint64 typed as Color, used
// for the globally-visible color_for_allocation word (§4.1 step 4: a
// relaxed store is sufficient because mutators synchronize through the
// session protocol, not this variable).
type atomicColor struct {
	v atomic.Uint64
}

func (a *atomicColor) load() Color   { return Color(a.v.Load()) }
func (a *atomicColor) store(c Color) { a.v.Store(uint64(c)) }

// or performs a fetch-or and returns the value as it was *before* the OR,
// so callers can compute which bits they newly raised. Built on a CAS
// loop rather than atomic.Uint64.Or/And (added in Go 1.23) to keep this
// module buildable against the Go 1.21 toolchain declared in go.mod.
func (a *atomicColor) or(mask Color) Color {
	for {
		old := a.v.Load()
		new := old | uint64(mask)
		if new == old {
			return Color(old)
		}
		if a.v.CompareAndSwap(old, new) {
			return Color(old)
		}
	}
}
