// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import "sync/atomic"

// scanBox is the immutable value a Scan handle swaps atomically. Go has
// no atomic storage for arbitrary interface values (atomic.Pointer needs
// a concrete pointee type), so a Scan handle swaps a pointer to a
// freshly-allocated, never-mutated box holding the interface value —
// the same "atomic.Pointer to an immutable snapshot" idiom session.go
// uses for the handshake tag.
type scanBox[T Managed] struct{ v T }

// ScanConst wraps a pointer that is fixed after construction (§4.3): no
// barrier is needed for Load, since the value can never change. The
// held value still must be shaded whenever the enclosing object is
// scanned; callers do this by calling ctx.Trace on Load()'s result from
// within their Scan method, the same as for any other field.
type ScanConst[T Managed] struct {
	v T
}

// NewScanConst builds an immutable handle around v.
func NewScanConst[T Managed](v T) ScanConst[T] { return ScanConst[T]{v: v} }

// Load returns the held value. There is no barrier: it never changes.
func (s ScanConst[T]) Load() T { return s.v }

// ScanOwned is a single-writer atomic handle (§4.3): only the owning
// mutator stores into it, but the collector may load it concurrently.
// Store performs the write barrier, reads are plain atomic loads on both
// sides — Go's sync/atomic does not distinguish relaxed-by-owner from
// acquire-by-collector, so both Load methods are identical; the two
// names exist to document which caller is expected at each call site.
//
// A handle is empty when it holds T's zero value (a nil pointer for the
// usual pointer T). Storing that value is allowed; the barrier skips the
// nil side (see Session.ShadeField).
type ScanOwned[T Managed] struct {
	box atomic.Pointer[scanBox[T]]
}

// NewScanOwned builds a handle already holding v.
func NewScanOwned[T Managed](v T) *ScanOwned[T] {
	s := &ScanOwned[T]{}
	s.box.Store(&scanBox[T]{v: v})
	return s
}

// LoadOwner is a relaxed load by the owning mutator thread.
func (s *ScanOwned[T]) LoadOwner() T { return s.load() }

// LoadCollector is an acquire load by the collector thread.
func (s *ScanOwned[T]) LoadCollector() T { return s.load() }

func (s *ScanOwned[T]) load() T {
	b := s.box.Load()
	if b == nil {
		var zero T
		return zero
	}
	return b.v
}

// Store performs the write barrier (§4.3): load old, store new, then
// shade both the overwritten and the newly-written value through sess,
// the owning mutator's session.
func (s *ScanOwned[T]) Store(sess *Session, v T) {
	old := s.box.Swap(&scanBox[T]{v: v})
	var oldVal T
	if old != nil {
		oldVal = old.v
	}
	sess.ShadeField(oldVal)
	sess.ShadeField(v)
}

// ScanAtomic is a fully atomic, multi-writer handle (§4.3). Every store
// barriers both sides; CompareAndSwap barriers both sides only when it
// succeeds.
type ScanAtomic[T Managed] struct {
	box atomic.Pointer[scanBox[T]]
}

// NewScanAtomic builds a handle already holding v.
func NewScanAtomic[T Managed](v T) *ScanAtomic[T] {
	s := &ScanAtomic[T]{}
	s.box.Store(&scanBox[T]{v: v})
	return s
}

// Load is an acquire load, safe from any thread.
func (s *ScanAtomic[T]) Load() T {
	b := s.box.Load()
	if b == nil {
		var zero T
		return zero
	}
	return b.v
}

// Store barriers both the overwritten and newly-written value.
func (s *ScanAtomic[T]) Store(sess *Session, v T) {
	old := s.box.Swap(&scanBox[T]{v: v})
	var oldVal T
	if old != nil {
		oldVal = old.v
	}
	sess.ShadeField(oldVal)
	sess.ShadeField(v)
}

// CompareAndSwap succeeds only if the handle currently holds a value
// identical to old (compared as interface values, which is safe here
// since every Managed implementation is a pointer type). On success it
// barriers both curr and next; on failure it performs no barrier at all,
// matching §4.3's "barrier both sides on success only".
func (s *ScanAtomic[T]) CompareAndSwap(sess *Session, old, next T) bool {
	for {
		cur := s.box.Load()
		var curVal T
		if cur != nil {
			curVal = cur.v
		}
		if any(curVal) != any(old) {
			return false
		}
		if s.box.CompareAndSwap(cur, &scanBox[T]{v: next}) {
			sess.ShadeField(curVal)
			sess.ShadeField(next)
			return true
		}
	}
}
