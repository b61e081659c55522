// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wrygc/concurrentgc/internal/metrics"
	"github.com/wrygc/concurrentgc/internal/xlog"
)

// Options configures a Collector. There is no file format and no
// environment variable read by the core (§6); Options is the only
// configuration surface, mirroring the teacher's tuning constants
// (mgc.go's _ConcurrentSweep, _DebugGC) being struct/compile-time values
// rather than parsed configuration.
type Options struct {
	// Metrics, if non-nil, receives cycle/promotion/deletion/timeout
	// counters and bag-depth gauges. Pass metrics.New(reg) or leave nil
	// to run unobserved (e.g. in unit tests that construct many
	// short-lived Collectors).
	Metrics *metrics.Collector

	// HandshakeTimeout bounds how long collector_run_until will wait in
	// step 7 for an idle notification before re-checking its deadline.
	// Zero selects the spec's suggested default of one second (§5:
	// "a bounded-timeout variant (1 second is reasonable)").
	HandshakeTimeout time.Duration
}

func (o Options) handshakeTimeout() time.Duration {
	if o.HandshakeTimeout <= 0 {
		return time.Second
	}
	return o.HandshakeTimeout
}

// Collector runs the palette algebra's 7-step cycle (§4.1). A Collector
// is itself registered as a mutator (via its own embedded Session) so it
// can allocate and trace roots the same way any other mutator does (§5:
// "The collector itself registers as a mutator").
type Collector struct {
	opts    Options
	metrics *metrics.Collector

	entrants atomicSessionStack

	mu   sync.Mutex
	cond *sync.Cond

	// known is collector-private: no other goroutine reads or writes it.
	known []*Session

	colorForAllocation atomicColor
	colorInUse         Color
	maskForTracing     Color
	maskForDeleting    Color
	maskForClearing    Color

	paletteHistory colorHistory
	shadeHistory   colorHistory

	knownObjects Bag[Managed]
	survivors    Bag[Managed]

	// Self is the Collector's own mutator session, used to allocate and
	// publish roots the same way any other mutator would.
	Self *Session
}

// atomicSessionStack is the global lock-free stack of entering sessions
// (§3, §5): mutator_become pushes via CAS; the collector harvests the
// whole stack at once with a single Swap in step 1.
type atomicSessionStack struct {
	head atomic.Pointer[Session]
}

func (s *atomicSessionStack) push(sess *Session) {
	for {
		old := s.head.Load()
		sess.nextEntrant = old
		if s.head.CompareAndSwap(old, sess) {
			return
		}
	}
}

func (s *atomicSessionStack) drain() *Session {
	return s.head.Swap(nil)
}

// New constructs a Collector and registers it as its own first mutator
// session (§5).
func New(opts Options) *Collector {
	c := &Collector{opts: opts, metrics: opts.Metrics}
	c.cond = sync.NewCond(&c.mu)
	c.colorForAllocation.store(0)
	c.Self = newSession(c, "collector")
	c.known = append(c.known, c.Self)
	return c
}

// Become registers a new mutator session with the collector (§6
// mutator_become). name may be empty, in which case a uuid-based name is
// generated (session.go's newSession).
func (c *Collector) Become(name string) *Session {
	s := newSession(c, name)
	c.entrants.push(s)
	c.wake()
	return s
}

// wake signals the collector's idle condition variable, used both when a
// new session enters and whenever a handshake publishes new work, so a
// parked collector notices promptly (§4.1 step 7, §5 suspension points).
func (c *Collector) wake() {
	c.mu.Lock()
	c.cond.Broadcast()
	c.mu.Unlock()
}

// RunCycle executes exactly one pass of the 7-step cycle (§4.1),
// returning without blocking even if step 7 would otherwise wait; callers
// that want the idle wait should use collector_run_until instead.
func (c *Collector) RunCycle() {
	c.harvestEntrants()
	eraShade := c.consumeMessages()
	c.shadeHistory.push(eraShade)

	c.processResignations()

	newPalette := c.advanceMasks()
	c.publish(newPalette)
	c.askMutatorsToPublish()

	c.traceAndSweep()

	if c.metrics != nil {
		c.metrics.Cycles.Inc()
		c.metrics.KnownObjects.Set(float64(c.knownObjects.Len()))
		c.metrics.SurvivorObjects.Set(float64(c.survivors.Len()))
	}
	xlog.Collector.WithField("known", c.knownObjects.Len()).Debug("cycle complete")
}

// RunUntil drives the collector loop until deadline elapses (§6
// collector_run_until). Each iteration runs one full cycle; if step 7's
// predicate holds (nothing tracked, no sessions pending) it parks on the
// idle condition variable, bounded by the handshake timeout, instead of
// busy-looping.
func (c *Collector) RunUntil(deadline time.Time) {
	for time.Now().Before(deadline) {
		c.RunCycle()
		if c.idle() {
			c.waitIdle(deadline)
		}
	}
}

// idle reports step 7's predicate: the known-objects bag is empty and no
// mutator besides the collector's own self session remains known. Self
// is always present in known (New registers it), so the comparison is
// against 1, not 0.
func (c *Collector) idle() bool {
	return c.knownObjects.Empty() && len(c.known) <= 1
}

// waitIdle parks on the condition variable until woken or deadline
// passes, generalizing the teacher's goroutine-park idiom (mgc.go's
// gchelper/forcegchelper) off goroutine parking, which is unavailable to
// a library outside package runtime, onto sync.Cond (§4.1 step 7). If
// the timer fires before any session publishes, this logs a warning and
// counts a handshake timeout (§7: "exceeding it logs a warning but does
// not abort — a slow mutator delays reclamation but cannot corrupt").
func (c *Collector) waitIdle(deadline time.Time) {
	timeout := c.opts.handshakeTimeout()
	if remaining := time.Until(deadline); remaining < timeout {
		timeout = remaining
	}
	if timeout <= 0 {
		return
	}

	var timedOut atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		c.wake()
	})
	defer timer.Stop()

	c.mu.Lock()
	if c.idle() {
		c.cond.Wait()
	}
	c.mu.Unlock()

	if timedOut.Load() {
		xlog.Collector.Warn("handshake wait timed out; a mutator may be slow to publish")
		if c.metrics != nil {
			c.metrics.HandshakeTimeouts.Inc()
		}
	}
}

// harvestEntrants drains the entrant stack and appends every new session
// to the collector-private known list (§4.1 step 1's implicit "for every
// known session" precondition).
func (c *Collector) harvestEntrants() {
	for s := c.entrants.drain(); s != nil; {
		next := s.nextEntrant
		s.nextEntrant = nil
		c.known = append(c.known, s)
		s = next
	}
}

// consumeMessages is step 1: for every known session, swap its log head
// out, splice any published bags into knownObjects, and fold its
// reported shading into this era's accumulator. Sessions mid-resignation
// (tag already COLLECTOR_SHOULD_CONSUME_AND_RELEASE) keep that tag so
// step 2 can find them; every other session is left in
// MUTATOR_SHOULD_PUBLISH, the "collector requests publish" tag.
func (c *Collector) consumeMessages() Color {
	var era Color
	for _, s := range c.known {
		head := c.drainSession(s)
		for n := head; n != nil; n = n.next {
			c.knownObjects.Splice(&n.bag)
			era |= n.shade
		}
	}
	return era
}

// drainSession atomically swaps s's published log stack for an empty
// one, leaving its tag at MUTATOR_SHOULD_PUBLISH — the "collector
// requests publish" tag (§4.1 step 1) — unless s is mid-resignation, in
// which case its COLLECTOR_SHOULD_CONSUME_AND_RELEASE tag is preserved
// so step 2 can find it. Returns the log chain published since the last
// drain.
func (c *Collector) drainSession(s *Session) *logNode {
	for {
		old := s.state.Load()
		tag := tagMutatorShouldPublish
		if old.tag == tagCollectorShouldConsumeAndRelease {
			tag = tagCollectorShouldConsumeAndRelease
		}
		next := &sessionState{tag: tag}
		if s.state.CompareAndSwap(old, next) {
			return old.head
		}
	}
}

// processResignations is step 2: sessions whose final log was tagged
// consume-and-release are removed from known and their reference count
// dropped.
func (c *Collector) processResignations() {
	kept := c.known[:0]
	for _, s := range c.known {
		if s.state.Load().tag == tagCollectorShouldConsumeAndRelease {
			s.release()
			s.done.Store(true)
			xlog.Session.WithField("session", s.Name).Debug("released")
			continue
		}
		kept = append(kept, s)
	}
	c.known = kept
}

// publish is step 4: store the newly computed palette into the single
// globally visible atomic. A relaxed store suffices (§4.1 step 4):
// mutators synchronise through the session protocol, not this variable.
func (c *Collector) publish(p Color) {
	c.colorForAllocation.store(p)
}

// askMutatorsToPublish is step 5: every session still waiting
// (MUTATOR_SHOULD_PUBLISH, "nothing to do") is re-armed, escalating to
// the notify variant when this cycle is about to idle-wait in step 7, so
// a subsequent publish performs the wake this collector is relying on.
// A session the CAS finds has already raced ahead (it published again,
// or is resigning) is left alone; "If CAS fails ... re-observe" (§4.1).
func (c *Collector) askMutatorsToPublish() {
	escalate := c.idle()
	for _, s := range c.known {
		old := s.state.Load()
		if old.tag != tagMutatorShouldPublish {
			continue
		}
		newTag := tagMutatorShouldPublish
		if escalate {
			newTag = tagMutatorShouldPublishAndNotify
		}
		next := &sessionState{tag: newTag}
		s.state.CompareAndSwap(old, next)
	}
}
