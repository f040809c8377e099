package erre

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegistry(t *testing.T) {
	t.Run("Adds Once Per Listener", func(t *testing.T) {
		var reg registry[int]
		l := Watch("a", func(context.Context, int) {})

		if !reg.add(l) {
			t.Fatal("expected first add to succeed")
		}
		if reg.add(l) {
			t.Error("expected duplicate add to be ignored")
		}
		if reg.add(nil) {
			t.Error("expected nil listener to be ignored")
		}
		if len(reg.listeners) != 1 {
			t.Errorf("expected 1 listener, got %d", len(reg.listeners))
		}
	})

	t.Run("Keeps Insertion Order", func(t *testing.T) {
		var reg registry[int]
		a := Watch("a", func(context.Context, int) {})
		b := Watch("b", func(context.Context, int) {})
		c := Watch("c", func(context.Context, int) {})
		reg.add(a)
		reg.add(b)
		reg.add(c)
		reg.remove(b)

		got := reg.snapshot()
		if len(got) != 2 || got[0] != a || got[1] != c {
			t.Errorf("unexpected order after removal: %v", got)
		}
	})

	t.Run("Remove Unknown", func(t *testing.T) {
		var reg registry[int]
		if reg.remove(Watch("ghost", func(context.Context, int) {})) {
			t.Error("expected removal of unknown listener to report false")
		}
	})

	t.Run("Snapshot Is Independent", func(t *testing.T) {
		var reg registry[int]
		reg.add(Watch("a", func(context.Context, int) {}))
		snap := reg.snapshot()
		reg.clear()
		if len(snap) != 1 || len(reg.listeners) != 0 {
			t.Errorf("expected snapshot to survive clear, got %d / %d", len(snap), len(reg.listeners))
		}
	})
}

func TestListener(t *testing.T) {
	t.Run("Watch Always Keeps", func(t *testing.T) {
		calls := 0
		l := Watch("count", func(context.Context, string) { calls++ })
		if reply := l.fn(context.Background(), "x"); reply != Keep {
			t.Errorf("expected Keep, got %v", reply)
		}
		if calls != 1 || l.Name() != "count" {
			t.Errorf("unexpected listener state: calls=%d name=%q", calls, l.Name())
		}
	})

	t.Run("Listen Returns Handler Reply", func(t *testing.T) {
		l := Listen("once", func(context.Context, string) Reply { return Unsubscribe })
		if reply := l.fn(context.Background(), "x"); reply != Unsubscribe {
			t.Errorf("expected Unsubscribe, got %v", reply)
		}
	})
}

func TestDispatchQueue(t *testing.T) {
	t.Run("Runs Idle Work Inline", func(t *testing.T) {
		var q dispatchQueue
		ran := false
		q.do(func() { ran = true })
		if !ran {
			t.Error("expected work to run before do returns")
		}
	})

	t.Run("Nested Work Runs After The Current Delivery", func(t *testing.T) {
		var q dispatchQueue
		var order []string
		q.do(func() {
			q.do(func() { order = append(order, "nested") })
			order = append(order, "outer")
		})
		if len(order) != 2 || order[0] != "outer" || order[1] != "nested" {
			t.Errorf("expected [outer nested], got %v", order)
		}
	})

	t.Run("Never Runs Two Deliveries At Once", func(t *testing.T) {
		var q dispatchQueue
		var active, peak, total atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				q.do(func() {
					n := active.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(100 * time.Microsecond)
					active.Add(-1)
					total.Add(1)
				})
			}()
		}
		wg.Wait()

		deadline := time.Now().Add(time.Second)
		for total.Load() < 32 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		if total.Load() != 32 {
			t.Fatalf("expected 32 deliveries, got %d", total.Load())
		}
		if peak.Load() != 1 {
			t.Errorf("expected at most one delivery at a time, saw %d", peak.Load())
		}
	})
}
