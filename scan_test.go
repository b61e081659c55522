// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanConstLoad(t *testing.T) {
	child := &leaf{}
	sc := NewScanConst[*leaf](child)
	assert.Same(t, child, sc.Load())
}

func TestScanOwnedStoreShadesBothOldAndNew(t *testing.T) {
	c := New(Options{})
	s := c.Become("mutator-a")
	s.cachedColor = greyBit(2)

	oldChild := &leaf{}
	newChild := &leaf{}
	handle := NewScanOwned[*leaf](oldChild)

	handle.Store(s, newChild)
	assert.True(t, oldChild.Color().Grey(2), "the overwritten value must still be shaded")
	assert.True(t, newChild.Color().Grey(2))
	assert.Same(t, newChild, handle.LoadOwner())
	assert.Same(t, newChild, handle.LoadCollector())
}

func TestScanOwnedZeroValueBeforeFirstStore(t *testing.T) {
	var nilLeaf *leaf
	handle := NewScanOwned[*leaf](nilLeaf)
	assert.Nil(t, handle.LoadOwner())
}

func TestScanAtomicCompareAndSwap(t *testing.T) {
	c := New(Options{})
	s := c.Become("mutator-a")
	s.cachedColor = greyBit(0)

	first := &leaf{}
	second := &leaf{}
	handle := NewScanAtomic[*leaf](first)

	ok := handle.CompareAndSwap(s, second, second)
	assert.False(t, ok, "old does not match the held value")
	assert.Same(t, first, handle.Load())

	ok = handle.CompareAndSwap(s, first, second)
	require.True(t, ok)
	assert.Same(t, second, handle.Load())
	assert.True(t, first.Color().Grey(0))
	assert.True(t, second.Color().Grey(0))
}

func TestScanAtomicFailedCASShadesNothing(t *testing.T) {
	c := New(Options{})
	s := c.Become("mutator-a")
	s.cachedColor = greyBit(0)

	first := &leaf{}
	stale := &leaf{}
	candidate := &leaf{}
	handle := NewScanAtomic[*leaf](first)

	handle.CompareAndSwap(s, stale, candidate)
	assert.False(t, candidate.Color().Grey(0), "a failed CAS must not shade either side")
}
