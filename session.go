// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"reflect"
	"sync/atomic"

	"github.com/google/uuid"
)

// sessionTag is the 2-bit handshake request state from §4.2, widened to
// a byte since Go has no sub-byte atomic field.
type sessionTag uint8

const (
	tagCollectorShouldConsume sessionTag = iota
	tagMutatorShouldPublish
	tagCollectorShouldConsumeAndRelease
	tagMutatorShouldPublishAndNotify
)

// logNode is one published snapshot of a mutator's activity between two
// handshakes (§3): the bag of objects it allocated, and the bits it
// raised on pre-existing objects via shading.
type logNode struct {
	next  *logNode
	bag   Bag[Managed]
	shade Color
}

// sessionState is the atomically-swapped snapshot a Session's handshake
// protocol pivots on. It plays the role spec.md assigns to a single
// tagged atomic word (tag packed into a pointer's spare bits); this
// module instead swaps a pointer to an immutable value, which is the
// idiomatic Go equivalent (no unsafe pointer tagging) and keeps log
// nodes visible to Go's own garbage collector at every instant, not just
// the ones this module tracks.
type sessionState struct {
	tag  sessionTag
	head *logNode
}

// Session represents one mutator's participation window (§3). A Session
// must be used by exactly one goroutine: its thread-local fields
// (localBag, localShade, cachedColor) are not synchronised, matching the
// design's assumption of one Session per mutator thread.
type Session struct {
	Name string

	collector *Collector
	state     atomic.Pointer[sessionState]
	refcount  atomic.Int32
	resigned  atomic.Bool
	done      atomic.Bool

	// nextEntrant links Sessions on the collector's entrant stack between
	// mutator_become and the collector's first harvest of them.
	nextEntrant *Session

	// cachedColor is the mutator's locally-cached color_for_allocation,
	// refreshed at every handshake (§4.2: "Refresh the cached
	// color_for_allocation from the global variable").
	cachedColor Color

	localBag   Bag[Managed]
	localShade Color
}

// newSession constructs a Session with the two initial reference-count
// holders required by §3: the mutator (the caller of mutator_become) and
// the collector (which will track it in its known-sessions list once
// harvested).
func newSession(c *Collector, name string) *Session {
	if name == "" {
		name = "mutator-" + uuid.NewString()
	}
	s := &Session{Name: name, collector: c}
	s.state.Store(&sessionState{tag: tagCollectorShouldConsume})
	s.refcount.Store(2)
	s.cachedColor = c.colorForAllocation.load()
	return s
}

// IsDone reports whether the collector has fully released this session
// (drained its final log and dropped its own reference).
func (s *Session) IsDone() bool { return s.done.Load() }

// release drops one reference. It traps on underflow (§7): a Session's
// refcount must never go below zero.
func (s *Session) release() {
	if n := s.refcount.Add(-1); n < 0 {
		trapf(ErrRefcountUnderflow, "session %s refcount went negative", s.Name)
	}
}

// publish moves the Session's thread-local bag and shade bitmap into a
// freshly allocated log node and links it onto the published stack,
// tagging the new state as newTag. It is the shared core of Handshake
// and Resign (§4.2: "Mutator side handshake ... Resign is the same
// operation but with tag COLLECTOR_SHOULD_CONSUME_AND_RELEASE").
func (s *Session) publish(newTag sessionTag) {
	node := &logNode{shade: s.localShade}
	node.bag.Splice(&s.localBag)
	s.localShade = 0
	for {
		old := s.state.Load()
		node.next = old.head
		next := &sessionState{tag: newTag, head: node}
		if s.state.CompareAndSwap(old, next) {
			if old.tag == tagMutatorShouldPublishAndNotify {
				s.collector.wake()
			}
			return
		}
	}
}

// Handshake may publish the mutator's pending allocations and shading,
// and always refreshes the cached color_for_allocation (§4.2). It must
// be called frequently (per-frame or per-N-allocations) by any goroutine
// holding the session; it performs no blocking work.
func (s *Session) Handshake() {
	if s.resigned.Load() {
		trapf(ErrDoubleResign, "handshake on resigned session %s", s.Name)
	}
	if tag := s.state.Load().tag; tag == tagMutatorShouldPublish || tag == tagMutatorShouldPublishAndNotify {
		s.publish(tagCollectorShouldConsume)
	}
	s.cachedColor = s.collector.colorForAllocation.load()
}

// Resign performs a final publish and marks the session for collector-
// side release. It must be called exactly once; a second call, or any
// later Handshake, traps (§4.2, §7).
func (s *Session) Resign() {
	if !s.resigned.CompareAndSwap(false, true) {
		trapf(ErrDoubleResign, "session %s resigned more than once", s.Name)
	}
	s.publish(tagCollectorShouldConsumeAndRelease)
	s.release()
}

// Allocate registers a freshly-constructed managed object with this
// session: it stamps the object with the mutator's cached
// color_for_allocation and enrols it in the thread-local bag (§3
// Lifecycle, §6 alloc<T>). The caller constructs v itself; Allocate only
// performs the bookkeeping the collector depends on.
func Allocate[T Managed](s *Session, v T) T {
	b := v.base()
	b.color.Store(uint64(s.cachedColor))
	s.localBag.Push(v)
	return v
}

// ShadeField is the mutator-side shade operation (§3, §4.3): it applies
// the session's cached shading mask (the low 32 bits of
// color_for_allocation) to p's color and folds any newly-raised bits
// into the session's locally accumulated color_did_shade, which the
// collector reads at the next handshake to detect mutator-originated
// tricolor violations. Safe to call with a nil p, including a nil
// pointer of a concrete Managed type.
func (s *Session) ShadeField(p Managed) {
	if p == nil {
		return
	}
	if v := reflect.ValueOf(p); v.Kind() == reflect.Pointer && v.IsNil() {
		return
	}
	raised := p.base().Shade(s.cachedColor.Low())
	s.localShade |= raised
}
