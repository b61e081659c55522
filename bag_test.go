// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBagPushPopReturnsEveryElementWithinNode(t *testing.T) {
	var b Bag[int]
	for i := 0; i < 10; i++ {
		b.Push(i)
	}
	require.Equal(t, 10, b.Len())

	var got []int
	for {
		v, ok := b.TryPop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Len(t, got, 10)
	assert.True(t, b.Empty())
}

func TestBagSpansMultipleNodes(t *testing.T) {
	var b Bag[int]
	n := bagNodeCapacity*2 + 17
	for i := 0; i < n; i++ {
		b.Push(i)
	}
	assert.Equal(t, n, b.Len())

	count := 0
	for {
		_, ok := b.TryPop()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, n, count)
}

func TestBagSplice(t *testing.T) {
	var a, b Bag[int]
	a.Push(1)
	a.Push(2)
	b.Push(3)
	b.Push(4)

	a.Splice(&b)
	assert.Equal(t, 4, a.Len())
	assert.True(t, b.Empty())
	assert.Equal(t, 0, b.Len())
}

func TestBagSpliceOntoEmpty(t *testing.T) {
	var a, b Bag[int]
	b.Push(1)
	a.Splice(&b)
	assert.Equal(t, 1, a.Len())
}

func TestBagForEachVisitsEveryElementOnce(t *testing.T) {
	var b Bag[int]
	want := bagNodeCapacity + 3
	for i := 0; i < want; i++ {
		b.Push(i)
	}
	seen := 0
	b.ForEach(func(int) { seen++ })
	assert.Equal(t, want, seen)
}

func TestBagLeak(t *testing.T) {
	var b Bag[int]
	b.Push(1)
	b.Leak()
	assert.True(t, b.Empty())
	assert.Equal(t, 0, b.Len())
}
