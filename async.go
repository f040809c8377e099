package erre

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// Async creates a Processor that runs fn on its own goroutine.
// The chain suspends until fn returns; its error fails the chain and a
// panic inside fn is recovered as a failure. Pushes into a stream return
// before an Async stage completes.
//
// Example:
//
//	fetch := erre.Async("fetch-user", func(ctx context.Context, id string) (string, error) {
//	    return users.Lookup(ctx, id)
//	})
func Async[T any](name Name, fn func(context.Context, T) (T, error)) Processor[T] {
	return Func(name, func(ctx context.Context, value T) Result[T] {
		return Await(Go(func() (T, error) {
			return fn(ctx, value)
		}))
	})
}

// Delay is an asynchronous stage that holds each value for a fixed duration
// before passing it on unchanged. The wait ends early with a failure when
// the context is done.
type Delay[T any] struct {
	clock    clockz.Clock
	name     Name
	duration time.Duration
	mu       sync.RWMutex
}

// NewDelay creates a Delay stage.
func NewDelay[T any](name Name, duration time.Duration) *Delay[T] {
	return &Delay[T]{
		name:     name,
		duration: duration,
	}
}

// Run implements the Stage interface.
func (d *Delay[T]) Run(ctx context.Context, value T) Result[T] {
	d.mu.RLock()
	duration := d.duration
	clock := d.getClock()
	d.mu.RUnlock()

	if duration <= 0 {
		return Value(value)
	}

	// The timer is armed before Run returns so a fake clock advanced right
	// after the push always sees it.
	timer := clock.After(duration)
	f := NewFuture[T]()
	go func() {
		select {
		case <-timer:
			f.Resolve(value)
		case <-ctx.Done():
			f.Reject(ctx.Err())
		}
	}()
	return Await(f)
}

// Name returns the name of this stage.
func (d *Delay[T]) Name() Name {
	return d.name
}

// SetDuration updates the delay applied to later values.
func (d *Delay[T]) SetDuration(duration time.Duration) *Delay[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.duration = duration
	return d
}

// GetDuration returns the current delay.
func (d *Delay[T]) GetDuration() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.duration
}

// WithClock sets a custom clock for testing.
func (d *Delay[T]) WithClock(clock clockz.Clock) *Delay[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock = clock
	return d
}

func (d *Delay[T]) getClock() clockz.Clock {
	if d.clock == nil {
		return clockz.RealClock
	}
	return d.clock
}
