// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

// advanceMasks is step 3: the palette algebra's core transition. It
// returns the new color_for_allocation to be published in step 4.
//
// The k-pipeline runs deleting -> clearing -> recycled, one stage per
// cycle: a k promoted into mask_for_deleting here gets its first
// deletion pass in this same cycle's step 6; next cycle's advanceMasks
// moves it to mask_for_clearing (step 6 then strips the bit from every
// surviving object's color instead of deleting under it); the cycle
// after that, its bits are finally retired from color_in_use and
// color_for_allocation, freeing k for reuse. This matches spec.md's "a
// cycle of deletion ... moved to mask_for_clearing ... the following
// cycle ... recycling k" read as a three-stage pipeline rather than an
// open-ended residency in any one stage.
func (c *Collector) advanceMasks() Color {
	old := c.colorForAllocation.load()

	// Retire k's that finished a full clearing cycle.
	c.colorInUse &^= c.maskForClearing
	old &^= c.maskForClearing

	// deleting -> clearing: this cycle's step 6 will strip these bits
	// from every surviving object instead of deleting under them.
	c.maskForClearing = c.maskForDeleting
	c.maskForDeleting = 0

	h0, h1 := c.paletteHistory.at(0), c.paletteHistory.at(1)

	// A k newly confirmed grey by all threads (stable across one full
	// cycle of color_for_allocation) is promoted to also being black:
	// new allocations are born already confirmed for k ("allocate
	// black").
	newlyGrey := h0.Low() &^ h1.Low()
	old |= newlyGrey.LowToHigh()

	// A k newly confirmed black is added to mask_for_tracing, in dual
	// (both-halves) form so step 6's `(old & mask_for_tracing) << 32`
	// upgrade and the later AND-against-mask_for_deleting tests both
	// work directly against an object's raw color word.
	newlyBlack := h0.High() &^ h1.High()
	if newlyBlack != 0 {
		c.maskForTracing |= newlyBlack | newlyBlack.HighToLow()
	}

	// A k in mask_for_tracing with three consecutive handshakes of no
	// mutator raising it is stable enough to delete under.
	shade0, shade1, shade2 := c.shadeHistory.at(0), c.shadeHistory.at(1), c.shadeHistory.at(2)
	neverShaded := ^(shade0.Low() | shade1.Low() | shade2.Low()) & lowMask
	readyLow := c.maskForTracing.HighToLow() & neverShaded
	if readyLow != 0 {
		c.maskForDeleting |= readyLow | readyLow.LowToHigh()
		c.maskForTracing &^= readyLow.LowToHigh()
		if c.metrics != nil {
			c.metrics.Promotions.Inc()
		}
	}

	// If no marking wave is currently in its grey phase, start one.
	if old.Low() == 0 {
		if k, ok := lowestUnset(c.colorInUse); ok {
			old |= greyBit(k)
			c.colorInUse |= kBit(k)
		}
	}

	c.paletteHistory.push(old)
	return old
}

// traceAndSweep is step 6, the fused trace & sweep pass. It drains
// knownObjects into a local slice, applies the per-object palette
// upgrade formula and depth-first propagates mask_for_tracing through
// the live graph via Scan (the "trace" half), then makes the
// survivorship decision for every object from its fully settled color
// (the "sweep" half), moving reachable objects into survivors and
// invoking the sweep hook on the rest.
//
// Splitting "apply + propagate" from "decide" into two passes over the
// same slice (rather than one interleaved pass) avoids a real ordering
// hazard spec.md's prose does not resolve: a depth-first Scan can reach
// an object the outer walk has not visited yet, or has already visited,
// in either order, since the known-objects bag has no relationship to
// graph order. Deciding survivorship only after every reachable color
// update has settled makes the outcome independent of that order.
func (c *Collector) traceAndSweep() {
	var objs []Managed
	for {
		v, ok := c.knownObjects.TryPop()
		if !ok {
			break
		}
		objs = append(objs, v)
	}

	ctx := &TraceContext{stack: &objectStack{}, bits: c.maskForTracing}
	for _, obj := range objs {
		if c.applyPaletteUpgrade(obj) {
			ctx.stack.push(obj)
		}
	}
	for {
		obj, ok := ctx.stack.pop()
		if !ok {
			break
		}
		obj.Scan(ctx)
	}

	deleteHigh := c.maskForDeleting.High()
	deleteLow := c.maskForDeleting.Low()
	for _, obj := range objs {
		color := obj.base().Color()
		switch {
		case c.maskForDeleting == 0:
			// No k is being deleted under this cycle: everything survives.
			c.survivors.Push(obj)
		case color&deleteHigh != 0:
			c.survivors.Push(obj)
		case color&deleteLow != 0:
			trapf(ErrGreyUnderDelete, "object grey under deleting color %#x (color %#x)", uint64(c.maskForDeleting), uint64(color))
		default:
			if sw, ok := obj.(sweeper); ok {
				sw.Sweep(c.maskForDeleting)
			}
			if c.metrics != nil {
				c.metrics.Deletions.Inc()
			}
		}
	}

	c.knownObjects.Splice(&c.survivors)
}

// applyPaletteUpgrade performs the object-local half of step 6's
// formula: new = (old | ((old & mask_for_tracing) << 32)) &^
// mask_for_clearing, CAS-retried until it commits, and reports whether
// the CAS raised any high-half (black) bit.
func (c *Collector) applyPaletteUpgrade(obj Managed) bool {
	b := obj.base()
	for {
		old := b.Color()
		upgraded := Color(uint64(old&c.maskForTracing) << maxColorBits)
		next := (old | upgraded) &^ c.maskForClearing
		if next == old {
			return false
		}
		if b.compareAndSwapColor(old, next) {
			return (next&^old)&highMask != 0
		}
	}
}
