package erre

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestAsync(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns A Pending Future", func(t *testing.T) {
		release := make(chan struct{})
		stage := Async("gated", func(_ context.Context, n int) (int, error) {
			<-release
			return n + 1, nil
		})

		r := stage.Run(ctx, 1)
		if r.Kind() != KindAwait {
			t.Fatalf("expected await, got %v", r.Kind())
		}
		if r.future.Settled() {
			t.Error("expected future to be pending")
		}

		close(release)
		v, err := waitFor(t, r.future)
		if err != nil || v != 2 {
			t.Errorf("expected 2, nil; got %d, %v", v, err)
		}
	})

	t.Run("Recovers Panics", func(t *testing.T) {
		stage := Async("explode", func(context.Context, int) (int, error) { panic("async kaboom") })
		_, err := waitFor(t, Run[int](ctx, 1, stage))

		var chainErr *Error[int]
		if !errors.As(err, &chainErr) || !chainErr.Panicked {
			t.Errorf("expected panicked chain error, got %v", err)
		}
	})
}

func TestDelay(t *testing.T) {
	ctx := context.Background()

	t.Run("Holds Value Until Clock Advances", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		delay := NewDelay[int]("wait", 200*time.Millisecond).WithClock(clock)

		f := Run[int](ctx, 5, delay)
		if f.Settled() {
			t.Fatal("expected delay to suspend the chain")
		}

		clock.Advance(100 * time.Millisecond)
		clock.BlockUntilReady()
		time.Sleep(10 * time.Millisecond)
		if f.Settled() {
			t.Fatal("expected chain to still be waiting")
		}

		clock.Advance(100 * time.Millisecond)
		clock.BlockUntilReady()

		v, err := waitFor(t, f)
		if err != nil || v != 5 {
			t.Errorf("expected 5, nil; got %d, %v", v, err)
		}
	})

	t.Run("Zero Duration Is Synchronous", func(t *testing.T) {
		delay := NewDelay[int]("instant", 0)
		if r := delay.Run(ctx, 3); r.Kind() != KindValue || r.value != 3 {
			t.Errorf("expected immediate value 3, got %v", r.Kind())
		}
	})

	t.Run("Context Cancellation Fails The Wait", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		delay := NewDelay[int]("wait", time.Hour).WithClock(clock)

		cancelCtx, cancel := context.WithCancel(ctx)
		f := Run[int](cancelCtx, 1, delay)
		cancel()

		_, err := waitFor(t, f)
		var chainErr *Error[int]
		if !errors.As(err, &chainErr) || !chainErr.IsCanceled() {
			t.Errorf("expected canceled chain error, got %v", err)
		}
	})

	t.Run("Duration Accessors", func(t *testing.T) {
		delay := NewDelay[int]("wait", time.Second)
		delay.SetDuration(2 * time.Second)
		if delay.GetDuration() != 2*time.Second {
			t.Errorf("expected 2s, got %v", delay.GetDuration())
		}
		if delay.Name() != "wait" {
			t.Errorf("expected name 'wait', got %q", delay.Name())
		}
	})
}
