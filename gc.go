// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import "time"

// MutatorBecome registers the calling goroutine as a mutator, creating
// and publishing a Session (§6 mutator_become). name may be empty.
func MutatorBecome(c *Collector, name string) *Session {
	return c.Become(name)
}

// MutatorHandshake is an alias for (*Session).Handshake, named to match
// §6's external interface table.
func MutatorHandshake(s *Session) { s.Handshake() }

// MutatorResign is an alias for (*Session).Resign, named to match §6.
func MutatorResign(s *Session) { s.Resign() }

// CollectorRunUntil drives the collector loop until deadline (§6
// collector_run_until), the entry point for the collector goroutine.
func CollectorRunUntil(c *Collector, deadline time.Time) { c.RunUntil(deadline) }

// Alloc allocates T's managed bookkeeping against s (§6 alloc<T>): it
// stamps v with the session's cached color_for_allocation and enrols it
// in the thread-local bag. The caller constructs v itself.
func Alloc[T Managed](s *Session, v T) T { return Allocate(s, v) }
