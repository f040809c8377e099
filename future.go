package erre

import (
	"context"
	"fmt"
	"sync"
)

// Future is the eventual result of an asynchronous computation.
//
// A Future settles at most once, either resolved with a value or rejected
// with an error. Continuations registered with Then run exactly once after
// settlement, on the goroutine that settled the Future (or immediately on
// the caller's goroutine if it already settled). A Future may also stay
// pending forever; that is how a canceled chain reports "no outcome".
type Future[T any] struct {
	value     T
	err       error
	done      chan struct{}
	callbacks []func(T, error)
	abandons  []func()
	mu        sync.Mutex
	settled   bool
	abandoned bool
}

// NewFuture creates a pending Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved creates a Future already resolved with v.
func Resolved[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(v)
	return f
}

// Rejected creates a Future already rejected with err.
func Rejected[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.Reject(err)
	return f
}

// Go runs fn on a new goroutine and returns a Future for its result.
// A panic inside fn rejects the Future.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.Reject(&panicError{value: r})
			}
		}()
		v, err := fn()
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(v)
	}()
	return f
}

// Resolve settles f with v. It reports false if f had already settled.
func (f *Future[T]) Resolve(v T) bool {
	return f.settle(v, nil)
}

// Reject settles f with err. It reports false if f had already settled.
// A nil err is replaced by ErrNilRejection so a rejection is never mistaken
// for success.
func (f *Future[T]) Reject(err error) bool {
	if err == nil {
		err = ErrNilRejection
	}
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.settled || f.abandoned {
		f.mu.Unlock()
		return false
	}
	f.value = v
	f.err = err
	f.settled = true
	callbacks := f.callbacks
	f.callbacks = nil
	f.abandons = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

// Then registers fn to run once f settles.
func (f *Future[T]) Then(fn func(T, error)) {
	f.mu.Lock()
	if f.abandoned {
		f.mu.Unlock()
		return
	}
	if !f.settled {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	fn(v, err)
}

// abandon marks f as belonging to a canceled chain. An abandoned Future
// never settles; pending continuations are dropped and the internal
// abandon callbacks run instead.
func (f *Future[T]) abandon() {
	f.mu.Lock()
	if f.settled || f.abandoned {
		f.mu.Unlock()
		return
	}
	f.abandoned = true
	abandons := f.abandons
	f.abandons = nil
	f.callbacks = nil
	f.mu.Unlock()

	for _, fn := range abandons {
		fn()
	}
}

// whenAbandoned registers fn to run if f is abandoned.
func (f *Future[T]) whenAbandoned(fn func()) {
	f.mu.Lock()
	switch {
	case f.abandoned:
		f.mu.Unlock()
		fn()
	case f.settled:
		f.mu.Unlock()
	default:
		f.abandons = append(f.abandons, fn)
		f.mu.Unlock()
	}
}

// Done returns a channel closed when f settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether f has resolved or rejected.
func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Wait blocks until f settles or ctx is done.
//
// Waiting on the Future of a canceled chain only returns through ctx, so
// callers should always bound the wait.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// String is used by %v on pending futures in logs.
func (f *Future[T]) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.abandoned:
		return "future(canceled)"
	case !f.settled:
		return "future(pending)"
	case f.err != nil:
		return fmt.Sprintf("future(rejected: %v)", f.err)
	default:
		return fmt.Sprintf("future(resolved: %v)", f.value)
	}
}
