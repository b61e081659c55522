// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package skiplist implements the insertion-only, lock-free ordered set
// from §4.6: the collector's exemplar of a managed structure built over
// the epoch allocator (see the epoch package). Nodes are never erased;
// the set only grows, until the epoch it was allocated in is reclaimed.
//
// Node memory itself is ordinary Go-heap-allocated (not placed into the
// epoch allocator's byte slabs): threading a generic struct through a
// raw []byte slab would need unsafe placement-new, which buys nothing
// here since Go's own collector already keeps a live *Node reachable for
// as long as any forward pointer or caller holds it. What the epoch
// allocator's pin/unpin protocol buys this structure is the documented
// lifetime contract in §4.5 — callers are expected to hold a Pin for the
// duration of a Find/TryEmplace call, the same discipline a real
// epoch-reclaimed structure requires of its callers, and the allocator's
// metrics observe that traffic.
package skiplist

import (
	"cmp"
	"math/bits"
	"math/rand"
	"sync/atomic"

	"github.com/wrygc/concurrentgc/epoch"
)

// maxHeight is the tallest a node's forward-pointer array may grow;
// the head sentinel holds maxHeight+1 (33) forward pointers (§4.6).
const maxHeight = 32

// Node is one element of the skiplist.
type Node[K cmp.Ordered] struct {
	key     K
	forward []atomic.Pointer[Node[K]]
}

// Key returns the node's key.
func (n *Node[K]) Key() K { return n.key }

// Skiplist is a concurrent, insertion-only ordered set of K.
type Skiplist[K cmp.Ordered] struct {
	head  *Node[K]
	top   atomic.Int32
	alloc *epoch.Allocator
}

// New constructs an empty skiplist whose lifetime bookkeeping is tied to
// alloc (see the epoch package). alloc may be nil in tests that don't
// need to observe epoch traffic.
func New[K cmp.Ordered](alloc *epoch.Allocator) *Skiplist[K] {
	return &Skiplist[K]{
		head:  &Node[K]{forward: make([]atomic.Pointer[Node[K]], maxHeight+1)},
		alloc: alloc,
	}
}

func randomHeight() int {
	r := rand.Uint32()
	if r == 0 {
		r = 1
	}
	h := 1 + bits.TrailingZeros32(r)
	if h > maxHeight {
		h = maxHeight
	}
	return h
}

// searchPath descends from the current top level to 0, recording the
// last node at each level whose key is less than k (preds) and the next
// node at that level (succs). Both slices have length levels.
func (s *Skiplist[K]) searchPath(k K, levels int) (preds, succs []*Node[K]) {
	preds = make([]*Node[K], levels)
	succs = make([]*Node[K], levels)
	pred := s.head
	for level := int(s.top.Load()); level >= 0; level-- {
		for {
			next := pred.forward[level].Load()
			if next == nil || cmp.Less(k, next.key) {
				break
			}
			if cmp.Less(next.key, k) {
				pred = next
				continue
			}
			break // next.key == k
		}
		if level < levels {
			preds[level] = pred
			succs[level] = pred.forward[level].Load()
		}
	}
	for level := levels - 1; level >= 0; level-- {
		if preds[level] == nil {
			preds[level] = s.head
		}
	}
	return preds, succs
}

// Find returns the node with key k, if present (§4.6: "descends from
// top-1 ... else return the node").
func (s *Skiplist[K]) Find(k K) (*Node[K], bool) {
	pred := s.head
	for level := int(s.top.Load()); level >= 0; level-- {
		for {
			next := pred.forward[level].Load()
			if next == nil || cmp.Less(k, next.key) {
				break
			}
			if cmp.Less(next.key, k) {
				pred = next
				continue
			}
			return next, true
		}
	}
	return nil, false
}

// TryEmplace inserts k if absent and reports whether it performed the
// insertion. On a concurrent duplicate, it returns the winning node and
// false. The caller should hold an epoch.Handle for the duration of the
// call (see the package doc) when this skiplist backs a structure the
// collector also traces.
func (s *Skiplist[K]) TryEmplace(k K) (*Node[K], bool) {
	height := randomHeight()
	for {
		preds, succs := s.searchPath(k, height)
		if succs[0] != nil && !cmp.Less(k, succs[0].key) && !cmp.Less(succs[0].key, k) {
			return succs[0], false
		}
		node := &Node[K]{key: k, forward: make([]atomic.Pointer[Node[K]], height)}
		for lvl := 0; lvl < height; lvl++ {
			node.forward[lvl].Store(succs[lvl])
		}
		if !preds[0].forward[0].CompareAndSwap(succs[0], node) {
			continue // lost the race at level 0; re-search and retry.
		}
		for lvl := 1; lvl < height; lvl++ {
			for {
				preds, succs = s.searchPath(k, height)
				node.forward[lvl].Store(succs[lvl])
				if preds[lvl].forward[lvl].CompareAndSwap(succs[lvl], node) {
					break
				}
			}
		}
		s.raiseTop(int32(height - 1))
		return node, true
	}
}

// raiseTop is the fetch-max on the occupied-level watermark (§9 Open
// Questions: implemented as a CAS loop since sync/atomic has no native
// fetch-max; the level-link CAS that already happened for every level up
// to lvl establishes the ordering raiseTop itself only needs to publish
// "eventually visible").
func (s *Skiplist[K]) raiseTop(lvl int32) {
	for {
		old := s.top.Load()
		if old >= lvl {
			return
		}
		if s.top.CompareAndSwap(old, lvl) {
			return
		}
	}
}
