// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command gcbench drives the end-to-end scenarios from spec.md §8
// (S1, S2, S4, S5, S6) as runnable subcommands, for manual exercise and
// CI smoke-testing of the concurrentgc package outside the unit tests.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	gc "github.com/wrygc/concurrentgc"
	"github.com/wrygc/concurrentgc/epoch"
	"github.com/wrygc/concurrentgc/internal/metrics"
	"github.com/wrygc/concurrentgc/internal/xlog"
	"github.com/wrygc/concurrentgc/ringdeque"
	"github.com/wrygc/concurrentgc/skiplist"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "gcbench",
		Short: "Exercise concurrentgc's end-to-end scenarios (spec.md §8)",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				xlog.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newS1Cmd(), newS2Cmd(), newS4Cmd(), newS5Cmd(), newS6Cmd())
	return root
}

func newCollector() *gc.Collector {
	return gc.New(gc.Options{Metrics: metrics.New(prometheus.NewRegistry())})
}

// newEpochAllocator wires a fresh epoch.Allocator to its own prometheus
// registry, the same per-run-isolated pattern newCollector uses, so s4
// can report epoch advances and slab reclamation alongside its key counts.
func newEpochAllocator() *epoch.Allocator {
	reg := prometheus.NewRegistry()
	m := &epoch.Metrics{
		Advances: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concurrentgc_epoch_advances_total",
			Help: "Number of times the epoch allocator advanced its epoch.",
		}),
		SlabsAlloc: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concurrentgc_epoch_slabs_allocated_total",
			Help: "Number of bump-allocator slabs appended across all handles.",
		}),
		SlabsReclaim: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concurrentgc_epoch_slabs_reclaimed_total",
			Help: "Number of epochs fully vacated and safe to reclaim.",
		}),
	}
	reg.MustRegister(m.Advances, m.SlabsAlloc, m.SlabsReclaim)
	return epoch.New(m)
}

// runCollectorInBackground drives c until stop is closed, returning a
// channel closed once the collector goroutine has exited.
func runCollectorInBackground(c *gc.Collector, stop <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				c.RunUntil(time.Now().Add(50 * time.Millisecond))
			}
		}
	}()
	return done
}

func newS1Cmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "s1",
		Short: "Linear chain of boxes: reassign root to nil, then run the collector for 10s (reclamation is not checked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newCollector()
			s := c.Become("s1-mutator")
			root := gc.NewScanOwned[*box](nil)

			var head *box
			for i := 0; i < n; i++ {
				b := newBox(s, i)
				b.setNext(s, head)
				head = b
			}
			root.Store(s, head)
			s.Handshake()

			root.Store(s, nil)
			s.Handshake()

			stop := make(chan struct{})
			done := runCollectorInBackground(c, stop)
			deadline := time.Now().Add(10 * time.Second)
			for time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}
			close(stop)
			<-done

			fmt.Printf("s1: allocated %d boxes, root cleared, collector ran for 10s\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 1000, "chain length")
	return cmd
}

func newS2Cmd() *cobra.Command {
	var ops int
	cmd := &cobra.Command{
		Use:   "s2",
		Short: "Two mutators each keep replacing the box in their own globally-rooted slot (no swap between slots)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newCollector()
			slotA := gc.NewScanAtomic[*box](nil)
			slotB := gc.NewScanAtomic[*box](nil)

			stop := make(chan struct{})
			collectorDone := runCollectorInBackground(c, stop)

			g, _ := errgroup.WithContext(context.Background())
			mutator := func(name string, slot *gc.ScanAtomic[*box]) func() error {
				return func() error {
					s := c.Become(name)
					for i := 0; i < ops; i++ {
						cur := slot.Load()
						b := newBox(s, i)
						slot.CompareAndSwap(s, cur, b)
						if i%256 == 0 {
							s.Handshake()
						}
					}
					s.Resign()
					return nil
				}
			}
			g.Go(mutator("s2-a", slotA))
			g.Go(mutator("s2-b", slotB))
			if err := g.Wait(); err != nil {
				return err
			}

			close(stop)
			<-collectorDone
			fmt.Printf("s2: %d ops per mutator completed without crash\n", ops)
			return nil
		},
	}
	cmd.Flags().IntVar(&ops, "ops", 1_000_000, "operations per mutator")
	return cmd
}

func newS4Cmd() *cobra.Command {
	var threads, perThread int
	cmd := &cobra.Command{
		Use:   "s4",
		Short: "4 threads insert distinct random ints into the skiplist, then verify",
		RunE: func(cmd *cobra.Command, args []string) error {
			alloc := newEpochAllocator()
			list := skiplist.New[int](alloc)
			inserted := make([][]int, threads)

			g, _ := errgroup.WithContext(context.Background())
			for t := 0; t < threads; t++ {
				t := t
				inserted[t] = make([]int, perThread)
				g.Go(func() error {
					h := alloc.Pin()
					defer h.Unpin()
					h.Alloc(8) // exercises the slab chain for this handle's pin
					r := rand.New(rand.NewSource(int64(t) + 1))
					perm := r.Perm(perThread * 8)
					for i := 0; i < perThread; i++ {
						k := t*perThread*10 + perm[i]
						list.TryEmplace(k)
						inserted[t][i] = k
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			for _, ks := range inserted {
				for _, k := range ks {
					if _, ok := list.Find(k); !ok {
						return fmt.Errorf("s4: key %d not found after insertion", k)
					}
				}
			}
			fmt.Printf("s4: %d threads x %d keys verified present\n", threads, perThread)
			return nil
		},
	}
	cmd.Flags().IntVar(&threads, "threads", 4, "inserting goroutines")
	cmd.Flags().IntVar(&perThread, "n", 100_000, "keys per goroutine")
	return cmd
}

func newS5Cmd() *cobra.Command {
	var target int
	cmd := &cobra.Command{
		Use:   "s5",
		Short: "Interleave push_back/push_front growth against an oracle deque",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := ringdeque.New[int]()
			var oracle []int

			for len(oracle) < target {
				if len(oracle)%2 == 0 {
					v := len(oracle)
					d.PushBack(v)
					oracle = append(oracle, v)
				} else {
					v := -len(oracle)
					d.PushFront(v)
					oracle = append([]int{v}, oracle...)
				}
				if d.Len() != len(oracle) {
					return fmt.Errorf("s5: length mismatch at size %d: got %d want %d", len(oracle), d.Len(), len(oracle))
				}
				if len(oracle)%4096 == 0 || len(oracle) == target {
					for i, want := range oracle {
						if got := d.At(i); got != want {
							return fmt.Errorf("s5: mismatch at index %d: got %d want %d", i, got, want)
						}
					}
				}
			}
			fmt.Printf("s5: grew to %d elements, agrees with oracle throughout\n", target)
			return nil
		},
	}
	cmd.Flags().IntVar(&target, "target", 1_000_000, "final element count")
	return cmd
}

func newS6Cmd() *cobra.Command {
	var cycles int
	cmd := &cobra.Command{
		Use:   "s6",
		Short: "Force many successive trace/sweep cycles to exercise palette recycling",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newCollector()
			s := c.Become("s6-mutator")
			root := gc.NewScanOwned[*box](nil)

			for i := 0; i < cycles; i++ {
				b := newBox(s, i)
				root.Store(s, b)
				s.Handshake()
				c.RunCycle()
				root.Store(s, nil)
				s.Handshake()
				c.RunCycle()
			}
			fmt.Printf("s6: %d rounds (%d trace/sweep cycles) completed without invariant violation\n", cycles, 2*cycles)
			return nil
		},
	}
	cmd.Flags().IntVar(&cycles, "cycles", 40, "number of rounds, each forcing two collector cycles")
	return cmd
}
