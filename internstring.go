// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"sync"
	"sync/atomic"
)

// HeapString is the example leaf type SPEC_FULL.md §4 asks for: a
// minimal interned string exercising the terminal WHITE->RED sweep hook
// the original's HeapString.cpp describes, backed here by a sync.Map
// rather than the original's bespoke open-addressed table (spec.md
// treats the interning structure's internals as out of scope; only the
// hook contract is in scope).
//
// HeapString has no outgoing references, so Scan is a no-op; it exists
// purely to exercise the Sweep override path in object.go's sweeper
// interface.
type HeapString struct {
	Base
	value string
	table *InternTable

	// red is 0 (still interned) or 1 (swept, deregistered). It is a
	// separate axis from Base's tricolor Color: WHITE/RED here names an
	// interning lifecycle state, not a marking color.
	red atomic.Uint32
}

// Value returns the interned text.
func (h *HeapString) Value() string { return h.value }

// Scan enumerates HeapString's outgoing references: none.
func (h *HeapString) Scan(*TraceContext) {}

// Sweep overrides Base.Sweep (§3's terminal hook): the first call to
// find this object unreachable performs the single WHITE->RED
// transition and deregisters it from its table, so a later Intern call
// for the same text allocates a fresh HeapString instead of returning
// one already being torn down. Matches HeapString.cpp's single-use
// resurrection-proof sweep in the original source.
func (h *HeapString) Sweep(deleteMask Color) Color {
	if h.red.CompareAndSwap(0, 1) {
		h.table.forget(h.value, h)
	}
	return h.Color()
}

// InternTable is a minimal content-addressed table of HeapStrings. It is
// deliberately not lock-free or epoch-managed: spec.md's §9 Open
// Questions treat the interning structure itself as an external
// collaborator, so a plain sync.Map is enough to exercise the Sweep
// contract end to end.
type InternTable struct {
	m sync.Map // string -> *HeapString
}

// NewInternTable constructs an empty table.
func NewInternTable() *InternTable { return &InternTable{} }

// Intern returns the HeapString for value, allocating and registering a
// new one against s if this is the first time value has been seen (or
// the previous one has already been swept and forgotten).
func (t *InternTable) Intern(s *Session, value string) *HeapString {
	if v, ok := t.m.Load(value); ok {
		return v.(*HeapString)
	}
	hs := &HeapString{value: value, table: t}
	actual, loaded := t.m.LoadOrStore(value, hs)
	if loaded {
		return actual.(*HeapString)
	}
	return Allocate(s, hs)
}

// forget deregisters hs from the table if it is still the current
// occupant of value's slot.
func (t *InternTable) forget(value string, hs *HeapString) {
	t.m.CompareAndDelete(value, hs)
}
