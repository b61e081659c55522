// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import "sync/atomic"

// Base is the mandatory state every managed object carries: a single
// atomically-updated Color word. Concrete leaf types embed Base and
// implement Managed.
type Base struct {
	color atomic.Uint64
}

// base lets Managed be satisfied purely by embedding Base, without
// forcing every leaf type to hand-write an accessor.
func (b *Base) base() *Base { return b }

// Color returns the object's current color. Reads are relaxed: the
// collector always re-reads a color before acting on it (see
// collector_trace.go), so no ordering is required on this load alone.
func (b *Base) Color() Color { return Color(b.color.Load()) }

// compareAndSwapColor is used only by the collector's trace/sweep pass.
func (b *Base) compareAndSwapColor(old, new Color) bool {
	return b.color.CompareAndSwap(uint64(old), uint64(new))
}

// Shade applies mask to the object's color with a relaxed fetch-or and
// returns the subset of mask that was not already set, i.e. the bits
// this call newly raised. This mirrors mbarrier.go's gcmarkwb_m: the
// barrier always shades the referent regardless of the slot's prior
// color (the Dijkstra barrier coarsened to avoid needing a second fence
// to order the slot's color against the store).
func (b *Base) Shade(mask Color) Color {
	for {
		old := b.color.Load()
		merged := old | uint64(mask)
		if merged == old {
			return 0
		}
		if b.color.CompareAndSwap(old, merged) {
			return mask &^ Color(old)
		}
	}
}

// Sweep is the optional terminal hook (§3): by default it does nothing
// but report the current color. A leaf type that participates in an
// interning structure (see internstring.go) overrides Sweep with its own
// method of the same name and signature, shadowing this one through
// normal Go embedding, to attempt a single WHITE→RED transition and
// deregister itself.
func (b *Base) Sweep(Color) Color { return b.Color() }

// Managed is implemented by every type the collector can trace. Concrete
// types embed Base (for base, Color, Shade, Sweep) and implement Scan.
type Managed interface {
	base() *Base

	// Scan enumerates the object's outgoing strong references by calling
	// ctx.Trace(child) exactly once per reference. Called by the
	// collector only, during the fused trace/sweep pass.
	Scan(ctx *TraceContext)
}

// sweeper is the Sweep hook. Every Managed type that embeds Base
// satisfies it, either through the default Base.Sweep or through its own
// override (such as HeapString's interning-aware one).
type sweeper interface {
	Sweep(deleteMask Color) Color
}

// TraceContext is threaded through a Scan call so the collector (or, for
// the const/no-barrier Scan[T] variant, a mutator enumerating roots) can
// push reachable children for further tracing. One TraceContext is
// constructed per trace/sweep pass; ctx.bits is the mask_for_tracing
// snapshot for that pass (see collector_trace.go).
type TraceContext struct {
	stack *objectStack
	bits  Color
}

// Trace conservatively shades child with ctx.bits and, if that raised
// any black bit on child, pushes child onto the collector's tracing
// stack for its own Scan to run later. Safe to call with a nil child.
func (ctx *TraceContext) Trace(child Managed) {
	if child == nil {
		return
	}
	b := child.base()
	for {
		old := b.Color()
		new := old | ctx.bits
		if new == old {
			return
		}
		if b.compareAndSwapColor(old, new) {
			if (new &^ old) & highMask != 0 {
				ctx.stack.push(child)
			}
			return
		}
	}
}
