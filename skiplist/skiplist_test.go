// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package skiplist

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryEmplaceThenFind(t *testing.T) {
	s := New[int](nil)
	node, inserted := s.TryEmplace(42)
	require.True(t, inserted)
	assert.Equal(t, 42, node.Key())

	found, ok := s.Find(42)
	require.True(t, ok)
	assert.Same(t, node, found)
}

func TestFindMissingKey(t *testing.T) {
	s := New[int](nil)
	s.TryEmplace(1)
	_, ok := s.Find(99)
	assert.False(t, ok)
}

func TestTryEmplaceDuplicateReturnsExistingNode(t *testing.T) {
	s := New[int](nil)
	first, inserted := s.TryEmplace(7)
	require.True(t, inserted)

	second, insertedAgain := s.TryEmplace(7)
	assert.False(t, insertedAgain)
	assert.Same(t, first, second)
}

func TestFindRespectsOrderingAcrossManyKeys(t *testing.T) {
	s := New[int](nil)
	keys := rand.Perm(2000)
	for _, k := range keys {
		s.TryEmplace(k)
	}
	for _, k := range keys {
		_, ok := s.Find(k)
		assert.True(t, ok, "key %d must be found", k)
	}
	_, ok := s.Find(2000)
	assert.False(t, ok)
}

func TestConcurrentInsertAllKeysSurviveAndAreFindable(t *testing.T) {
	s := New[int](nil)
	const threads = 4
	const perThread = 2000

	var wg sync.WaitGroup
	for t0 := 0; t0 < threads; t0++ {
		t0 := t0
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perThread; i++ {
				s.TryEmplace(t0*perThread + i)
			}
		}()
	}
	wg.Wait()

	for t0 := 0; t0 < threads; t0++ {
		for i := 0; i < perThread; i++ {
			k := t0*perThread + i
			_, ok := s.Find(k)
			assert.True(t, ok, "key %d must be found", k)
		}
	}
}
