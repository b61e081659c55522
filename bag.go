// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

// bagNodeCapacity is the number of slots per node, sized to keep a node
// in the neighbourhood of 4KiB for pointer-sized elements (§4.4).
const bagNodeCapacity = 512

// bagNode is one fixed-capacity page of a Bag.
type bagNode[T any] struct {
	next  *bagNode[T]
	n     int
	items [bagNodeCapacity]T
}

// Bag is an unrolled singly-linked list of fixed-capacity nodes (§3,
// §4.4). It is a pure accumulator: neither ordered nor deduplicated.
// Push is amortised O(1); Splice is O(1) because both head and tail are
// tracked. A Bag's zero value is ready to use.
type Bag[T any] struct {
	head, tail *bagNode[T]
	size       int
}

// Push appends v, allocating a new node only when the tail node is full.
func (b *Bag[T]) Push(v T) {
	if b.tail == nil || b.tail.n == bagNodeCapacity {
		n := &bagNode[T]{}
		if b.tail != nil {
			b.tail.next = n
		}
		b.tail = n
		if b.head == nil {
			b.head = n
		}
	}
	b.tail.items[b.tail.n] = v
	b.tail.n++
	b.size++
}

// TryPop removes and returns one element, draining from the head node.
// It reports false if the bag is empty.
func (b *Bag[T]) TryPop() (v T, ok bool) {
	for b.head != nil {
		if b.head.n == 0 {
			next := b.head.next
			if b.head == b.tail {
				b.tail = nil
			}
			b.head = next
			continue
		}
		b.head.n--
		b.size--
		return b.head.items[b.head.n], true
	}
	return v, false
}

// Splice concatenates other onto the tail of b in O(1) and empties
// other. Both bags must belong to the same goroutine, or to goroutines
// that have otherwise synchronised ownership transfer (as session.go
// does across a handshake).
func (b *Bag[T]) Splice(other *Bag[T]) {
	if other == nil || other.head == nil {
		return
	}
	if b.tail == nil {
		b.head, b.tail = other.head, other.tail
	} else {
		b.tail.next = other.head
		b.tail = other.tail
	}
	b.size += other.size
	other.head, other.tail, other.size = nil, nil, 0
}

// Leak abandons the bag's contents without visiting them, for when
// ownership of the underlying nodes has already moved elsewhere (e.g.
// into a log node that is about to be published to the collector).
func (b *Bag[T]) Leak() {
	b.head, b.tail, b.size = nil, nil, 0
}

// Len reports the number of elements currently held.
func (b *Bag[T]) Len() int { return b.size }

// Empty reports whether the bag holds no elements.
func (b *Bag[T]) Empty() bool { return b.size == 0 }

// ForEach visits every element exactly once, in node order. The caller
// must not concurrently mutate b; this is used only by the collector,
// which owns its bags exclusively between handshakes.
func (b *Bag[T]) ForEach(fn func(T)) {
	for n := b.head; n != nil; n = n.next {
		for i := 0; i < n.n; i++ {
			fn(n.items[i])
		}
	}
}

// objectStack is the collector's tracing stack (§4.4): structurally a
// Bag, but accessed only by the collector goroutine during a single
// trace/sweep pass, so it needs no synchronisation of its own.
type objectStack struct {
	bag Bag[Managed]
}

func (s *objectStack) push(v Managed)       { s.bag.Push(v) }
func (s *objectStack) pop() (Managed, bool) { return s.bag.TryPop() }
func (s *objectStack) empty() bool          { return s.bag.Empty() }
