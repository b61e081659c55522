// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import gc "github.com/wrygc/concurrentgc"

// box is the "Box<int>-like object" scenario S1 asks for: a managed node
// holding an int payload and a single outgoing reference.
type box struct {
	gc.Base
	value int
	next  *gc.ScanOwned[*box]
}

func newBox(s *gc.Session, value int) *box {
	b := &box{value: value, next: gc.NewScanOwned[*box](nil)}
	return gc.Alloc(s, b)
}

// Scan enumerates box's one outgoing reference.
func (b *box) Scan(ctx *gc.TraceContext) {
	if next := b.next.LoadCollector(); next != nil {
		ctx.Trace(next)
	}
}

func (b *box) setNext(s *gc.Session, next *box) {
	b.next.Store(s, next)
}
