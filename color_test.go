// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKBitDualHalves(t *testing.T) {
	for k := uint(0); k < maxColorBits; k++ {
		b := kBit(k)
		assert.Equal(t, greyBit(k), b.Low(), "k=%d", k)
		assert.Equal(t, blackBit(k), b.High(), "k=%d", k)
	}
}

func TestColorGreyBlackWhite(t *testing.T) {
	c := greyBit(3) | blackBit(7)
	assert.True(t, c.Grey(3))
	assert.False(t, c.Black(3))
	assert.True(t, c.Black(7))
	assert.False(t, c.Grey(7))
	assert.True(t, c.White(1))
}

func TestLowHighRoundtrip(t *testing.T) {
	c := kBit(0) | kBit(31)
	assert.Equal(t, c.Low()|c.High(), c)
	assert.Equal(t, c.Low().LowToHigh(), c.High())
	assert.Equal(t, c.High().HighToLow(), c.Low())
}

func TestLowestUnset(t *testing.T) {
	k, ok := lowestUnset(0)
	require.True(t, ok)
	assert.EqualValues(t, 0, k)

	var inUse Color
	for i := uint(0); i < maxColorBits; i++ {
		inUse |= kBit(i)
	}
	_, ok = lowestUnset(inUse)
	assert.False(t, ok, "all waves live: no index should be free")

	inUse &^= kBit(5)
	k, ok = lowestUnset(inUse)
	require.True(t, ok)
	assert.EqualValues(t, 5, k)
}

func TestColorHistoryDepth(t *testing.T) {
	var h colorHistory
	for i := Color(1); i <= 5; i++ {
		h.push(i)
	}
	assert.Equal(t, Color(5), h.at(0))
	assert.Equal(t, Color(4), h.at(1))
	assert.Equal(t, Color(3), h.at(2))
	assert.Equal(t, Color(2), h.at(3))
	assert.Equal(t, Color(0), h.at(4), "out of range returns zero")
}

func TestAtomicColorOrReturnsPriorValue(t *testing.T) {
	var a atomicColor
	a.store(greyBit(1))
	prior := a.or(greyBit(2))
	assert.Equal(t, greyBit(1), prior)
	assert.Equal(t, greyBit(1)|greyBit(2), a.load())
}
