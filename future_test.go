package erre

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFuture(t *testing.T) {
	ctx := context.Background()

	t.Run("Settles Only Once", func(t *testing.T) {
		f := NewFuture[int]()
		if !f.Resolve(1) {
			t.Fatal("expected first resolve to win")
		}
		if f.Resolve(2) {
			t.Error("expected second resolve to be ignored")
		}
		if f.Reject(errors.New("late")) {
			t.Error("expected reject after resolve to be ignored")
		}

		v, err := f.Wait(ctx)
		if err != nil || v != 1 {
			t.Errorf("expected 1, nil; got %d, %v", v, err)
		}
	})

	t.Run("Then Runs After Settlement", func(t *testing.T) {
		f := NewFuture[string]()
		var got []string
		f.Then(func(v string, _ error) { got = append(got, "early:"+v) })
		f.Resolve("x")
		f.Then(func(v string, _ error) { got = append(got, "late:"+v) })

		if len(got) != 2 || got[0] != "early:x" || got[1] != "late:x" {
			t.Errorf("unexpected continuation order %v", got)
		}
	})

	t.Run("Reject With Nil Error", func(t *testing.T) {
		_, err := Rejected[int](nil).Wait(ctx)
		if !errors.Is(err, ErrNilRejection) {
			t.Errorf("expected ErrNilRejection, got %v", err)
		}
	})

	t.Run("Wait Honors Context", func(t *testing.T) {
		f := NewFuture[int]()
		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		if _, err := f.Wait(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if f.Settled() {
			t.Error("expected future to stay pending")
		}
	})

	t.Run("Go Resolves And Recovers Panics", func(t *testing.T) {
		v, err := Go(func() (int, error) { return 5, nil }).Wait(ctx)
		if err != nil || v != 5 {
			t.Errorf("expected 5, nil; got %d, %v", v, err)
		}

		_, err = Go(func() (int, error) { panic("boom") }).Wait(ctx)
		var pe *panicError
		if !errors.As(err, &pe) {
			t.Errorf("expected panic error, got %v", err)
		}
	})

	t.Run("Abandon Drops Continuations", func(t *testing.T) {
		f := NewFuture[int]()
		called := false
		abandoned := false
		f.Then(func(int, error) { called = true })
		f.whenAbandoned(func() { abandoned = true })

		f.abandon()
		if f.Resolve(1) {
			t.Error("expected an abandoned future to refuse settlement")
		}
		if called {
			t.Error("expected continuation to be dropped")
		}
		if !abandoned {
			t.Error("expected abandon callback to run")
		}
		if f.String() != "future(canceled)" {
			t.Errorf("unexpected string %q", f.String())
		}
	})

	t.Run("Concurrent Settlement", func(t *testing.T) {
		f := NewFuture[int]()
		var wg sync.WaitGroup
		wins := make(chan int, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				if f.Resolve(n) {
					wins <- n
				}
			}(i)
		}
		wg.Wait()
		close(wins)

		count := 0
		for range wins {
			count++
		}
		if count != 1 {
			t.Errorf("expected exactly one winner, got %d", count)
		}
	})
}
