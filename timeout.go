package erre

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// Timeout enforces a time limit on an asynchronous stage.
// If the wrapped stage yields a Future that has not settled when the limit
// expires, the chain fails with context.DeadlineExceeded and the stage's
// context is canceled. Synchronous outcomes pass through untouched, and a
// cancellation inside the wrapped stage still cancels the chain.
//
// Example:
//
//	lookup := erre.NewTimeout("lookup-deadline",
//	    erre.Async("lookup", lookupUser),
//	    2*time.Second,
//	)
type Timeout[T any] struct {
	stage    Stage[T]
	clock    clockz.Clock
	name     Name
	duration time.Duration
	mu       sync.RWMutex
}

// NewTimeout creates a new Timeout stage.
func NewTimeout[T any](name Name, stage Stage[T], duration time.Duration) *Timeout[T] {
	return &Timeout[T]{
		name:     name,
		stage:    stage,
		duration: duration,
	}
}

// Run implements the Stage interface.
func (t *Timeout[T]) Run(ctx context.Context, data T) Result[T] {
	t.mu.RLock()
	stage := t.stage
	duration := t.duration
	clock := t.getClock()
	t.mu.RUnlock()

	ctx, cancel := context.WithCancel(ctx)
	result := invoke(ctx, stage, data)
	if result.kind != KindAwait || result.future == nil {
		cancel()
		return result
	}

	inner := result.future
	outer := NewFuture[T]()
	timer := clock.After(duration)

	inner.whenAbandoned(func() {
		cancel()
		outer.abandon()
	})
	inner.Then(func(v T, err error) {
		cancel()
		if err != nil {
			outer.Reject(err)
			return
		}
		outer.Resolve(v)
	})

	go func() {
		select {
		case <-timer:
			if outer.Reject(context.DeadlineExceeded) {
				cancel()
			}
		case <-ctx.Done():
		}
	}()

	return Await(outer)
}

// SetDuration updates the timeout duration.
func (t *Timeout[T]) SetDuration(d time.Duration) *Timeout[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.duration = d
	return t
}

// GetDuration returns the current timeout duration.
func (t *Timeout[T]) GetDuration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.duration
}

// WithClock sets a custom clock for testing.
func (t *Timeout[T]) WithClock(clock clockz.Clock) *Timeout[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock = clock
	return t
}

// Name returns the name of this stage.
func (t *Timeout[T]) Name() Name {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

func (t *Timeout[T]) getClock() clockz.Clock {
	if t.clock == nil {
		return clockz.RealClock
	}
	return t.clock
}
