package erre

import (
	"context"
	"slices"
	"sync"
)

// Reply is returned by a listener handler to tell the stream what to do
// with the listener after this invocation.
type Reply uint8

const (
	// Keep leaves the listener subscribed.
	Keep Reply = iota
	// Unsubscribe removes the listener from the registry it was invoked
	// from, right after this invocation.
	Unsubscribe
)

// Handler receives a dispatched event.
type Handler[E any] func(context.Context, E) Reply

// Listener is a named, subscribable event handler.
//
// Listeners are compared by pointer: subscribing the same *Listener twice
// is a no-op, and OffValue/OffError/OffEnd remove exactly that pointer.
type Listener[E any] struct {
	fn   Handler[E]
	name Name
}

// Listen creates a Listener from a handler that decides whether it stays
// subscribed.
//
//	firstOnly := erre.Listen("first-only", func(_ context.Context, v int) erre.Reply {
//	    fmt.Println(v)
//	    return erre.Unsubscribe
//	})
func Listen[E any](name Name, fn Handler[E]) *Listener[E] {
	return &Listener[E]{name: name, fn: fn}
}

// Watch creates a Listener that always stays subscribed.
func Watch[E any](name Name, fn func(context.Context, E)) *Listener[E] {
	return &Listener[E]{
		name: name,
		fn: func(ctx context.Context, event E) Reply {
			fn(ctx, event)
			return Keep
		},
	}
}

// Name returns the listener's name.
func (l *Listener[E]) Name() Name {
	return l.name
}

// registry is an insertion-ordered set of listeners.
// It is guarded by the owning stream's mutex.
type registry[E any] struct {
	listeners []*Listener[E]
}

func (r *registry[E]) add(l *Listener[E]) bool {
	if l == nil || slices.Contains(r.listeners, l) {
		return false
	}
	r.listeners = append(r.listeners, l)
	return true
}

func (r *registry[E]) remove(l *Listener[E]) bool {
	i := slices.Index(r.listeners, l)
	if i < 0 {
		return false
	}
	r.listeners = slices.Delete(r.listeners, i, i+1)
	return true
}

func (r *registry[E]) snapshot() []*Listener[E] {
	return slices.Clone(r.listeners)
}

func (r *registry[E]) clear() {
	clear(r.listeners)
	r.listeners = nil
}

// dispatchQueue runs deliveries one at a time. The goroutine that finds the
// queue idle drains it; deliveries queued meanwhile, including those queued
// by a listener it is running, are handed to that goroutine.
type dispatchQueue struct {
	pending []func()
	mu      sync.Mutex
	running bool
}

// do runs fn now when the queue is idle, otherwise queues it behind the
// delivery in progress. It never blocks on another delivery. fn must not
// panic; listener panics are recovered before they reach the queue.
func (q *dispatchQueue) do(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	for len(q.pending) > 0 {
		next := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()
		next()
		q.mu.Lock()
	}
	q.running = false
	q.mu.Unlock()
}
