// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ringdeque

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushBackThenPopFrontIsFIFO(t *testing.T) {
	d := New[int]()
	for i := 0; i < 20; i++ {
		d.PushBack(i)
	}
	for i := 0; i < 20; i++ {
		v, ok := d.PopFront()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, d.Len())
}

func TestPushFrontThenPopBackIsFIFO(t *testing.T) {
	d := New[int]()
	for i := 0; i < 20; i++ {
		d.PushFront(i)
	}
	for i := 0; i < 20; i++ {
		v, ok := d.PopBack()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestPopOnEmptyReportsFalse(t *testing.T) {
	d := New[int]()
	_, ok := d.PopBack()
	assert.False(t, ok)
	_, ok = d.PopFront()
	assert.False(t, ok)
}

func TestAtPanicsOutOfRange(t *testing.T) {
	d := New[int]()
	d.PushBack(1)
	assert.Panics(t, func() { d.At(1) })
	assert.Panics(t, func() { d.At(-1) })
}

// TestAgreesWithSliceOracleThroughGrowth mirrors the deque with a plain slice, asserting At and Len
// agree with it through many growth cycles and both push directions.
func TestAgreesWithSliceOracleThroughGrowth(t *testing.T) {
	d := New[int]()
	var oracle []int

	next := 0
	for n := 0; n < 2000; n++ {
		if n%3 == 0 {
			v := next
			next++
			d.PushFront(v)
			oracle = append([]int{v}, oracle...)
		} else {
			v := next
			next++
			d.PushBack(v)
			oracle = append(oracle, v)
		}
		require.Equal(t, len(oracle), d.Len())
		if n%97 == 0 || n == 1999 {
			for i, want := range oracle {
				assert.Equal(t, want, d.At(i), "index %d after %d pushes", i, n+1)
			}
		}
	}
}

func TestAlternatingDirectionPushesStayCorrect(t *testing.T) {
	d := New[int]()
	var oracle []int

	for i := 0; i < 500; i++ {
		if i%2 == 0 {
			d.PushBack(i)
			oracle = append(oracle, i)
		} else {
			d.PushFront(i)
			oracle = append([]int{i}, oracle...)
		}
	}
	require.Equal(t, len(oracle), d.Len())
	for i, want := range oracle {
		assert.Equal(t, want, d.At(i))
	}
}

func TestDrainToEmptyThenRegrow(t *testing.T) {
	d := New[int]()
	for i := 0; i < 100; i++ {
		d.PushBack(i)
	}
	for i := 0; i < 100; i++ {
		_, ok := d.PopFront()
		require.True(t, ok)
	}
	assert.Equal(t, 0, d.Len())

	d.PushBack(42)
	v, ok := d.PopFront()
	require.True(t, ok)
	assert.Equal(t, 42, v)
}
